package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InkRecord is one persisted ink encoding record for a page. Seq 0 is the
// metadata record; chunk records follow at Seq 1..N. Legacy pages have a
// single Seq 0 record holding the whole stroke array.
type InkRecord struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PageKey   string         `gorm:"column:page_key;not null;index:idx_ink_page_seq,priority:1" json:"page_key"`
	Seq       int            `gorm:"column:seq;not null;index:idx_ink_page_seq,priority:2" json:"seq"`
	Payload   datatypes.JSON `gorm:"type:jsonb;column:payload;not null" json:"payload"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (InkRecord) TableName() string { return "ink_record" }

func (r *InkRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
