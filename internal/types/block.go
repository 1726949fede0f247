package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Block struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PageKey    string         `gorm:"column:page_key;not null;index:idx_block_page" json:"page_key"`
	ParentID   *uuid.UUID     `gorm:"type:uuid;column:parent_id;index" json:"parent_id,omitempty"`
	IsRoot     bool           `gorm:"column:is_root;not null;default:false" json:"is_root"`
	Content    string         `gorm:"column:content;not null" json:"content"`
	Properties datatypes.JSON `gorm:"type:jsonb;column:properties" json:"properties,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Block) TableName() string { return "block" }

func (b *Block) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
