package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/inkbridge-backend/internal/logger"
	"github.com/yungbote/inkbridge-backend/internal/types"
)

type BlockRepo interface {
	Create(ctx context.Context, tx *gorm.DB, block *types.Block) (*types.Block, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Block, error)
	GetByPageKey(ctx context.Context, tx *gorm.DB, pageKey string) ([]*types.Block, error)
	GetRoot(ctx context.Context, tx *gorm.DB, pageKey string) (*types.Block, error)
	UpdateContent(ctx context.Context, tx *gorm.DB, id uuid.UUID, content string) error
	UpdateProperties(ctx context.Context, tx *gorm.DB, id uuid.UUID, properties []byte) error
	ReparentChildren(ctx context.Context, tx *gorm.DB, parentID uuid.UUID, newParentID *uuid.UUID) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type blockRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlockRepo(db *gorm.DB, baseLog *logger.Logger) BlockRepo {
	repoLog := baseLog.With("repo", "BlockRepo")
	return &blockRepo{db: db, log: repoLog}
}

func (r *blockRepo) Create(ctx context.Context, tx *gorm.DB, block *types.Block) (*types.Block, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(block).Error; err != nil {
		return nil, err
	}
	return block, nil
}

func (r *blockRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Block, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Block
	if err := transaction.WithContext(ctx).Where("id = ?", id).First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *blockRepo) GetByPageKey(ctx context.Context, tx *gorm.DB, pageKey string) ([]*types.Block, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Block
	if err := transaction.WithContext(ctx).
		Where("page_key = ?", pageKey).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *blockRepo) GetRoot(ctx context.Context, tx *gorm.DB, pageKey string) (*types.Block, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Block
	err := transaction.WithContext(ctx).
		Where("page_key = ? AND is_root = ?", pageKey, true).
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *blockRepo) UpdateContent(ctx context.Context, tx *gorm.DB, id uuid.UUID, content string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Block{}).
		Where("id = ?", id).
		Update("content", content)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *blockRepo) UpdateProperties(ctx context.Context, tx *gorm.DB, id uuid.UUID, properties []byte) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Block{}).
		Where("id = ?", id).
		Update("properties", properties)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *blockRepo) ReparentChildren(ctx context.Context, tx *gorm.DB, parentID uuid.UUID, newParentID *uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Block{}).
		Where("parent_id = ?", parentID).
		Update("parent_id", newParentID).Error
}

func (r *blockRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Block{}).Error
}
