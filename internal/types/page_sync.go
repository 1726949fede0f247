package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PageSyncStatusDirty  = "dirty"
	PageSyncStatusSynced = "synced"
	PageSyncStatusFailed = "failed"
)

// PageSync tracks reconciliation bookkeeping per notebook page.
type PageSync struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PageKey     string     `gorm:"column:page_key;not null;uniqueIndex" json:"page_key"`
	Status      string     `gorm:"column:status;not null;index" json:"status"`
	StrokeCount int        `gorm:"column:stroke_count;not null;default:0" json:"stroke_count"`
	LastPassAt  *time.Time `gorm:"column:last_pass_at" json:"last_pass_at,omitempty"`
	LastError   string     `gorm:"column:last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (PageSync) TableName() string { return "page_sync" }

func (p *PageSync) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
