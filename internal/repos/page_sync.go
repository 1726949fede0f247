package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/inkbridge-backend/internal/logger"
	"github.com/yungbote/inkbridge-backend/internal/types"
)

type PageSyncRepo interface {
	MarkDirty(ctx context.Context, tx *gorm.DB, pageKey string) error
	GetDirty(ctx context.Context, tx *gorm.DB, limit int) ([]*types.PageSync, error)
	MarkSynced(ctx context.Context, tx *gorm.DB, pageKey string, strokeCount int) error
	MarkFailed(ctx context.Context, tx *gorm.DB, pageKey string, passErr error) error
}

type pageSyncRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPageSyncRepo(db *gorm.DB, baseLog *logger.Logger) PageSyncRepo {
	repoLog := baseLog.With("repo", "PageSyncRepo")
	return &pageSyncRepo{db: db, log: repoLog}
}

func (r *pageSyncRepo) MarkDirty(ctx context.Context, tx *gorm.DB, pageKey string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var existing types.PageSync
	err := transaction.WithContext(ctx).Where("page_key = ?", pageKey).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return transaction.WithContext(ctx).Create(&types.PageSync{
			PageKey: pageKey,
			Status:  types.PageSyncStatusDirty,
		}).Error
	}
	if err != nil {
		return err
	}
	return transaction.WithContext(ctx).
		Model(&types.PageSync{}).
		Where("page_key = ?", pageKey).
		Update("status", types.PageSyncStatusDirty).Error
}

func (r *pageSyncRepo) GetDirty(ctx context.Context, tx *gorm.DB, limit int) ([]*types.PageSync, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var results []*types.PageSync
	if err := transaction.WithContext(ctx).
		Where("status = ?", types.PageSyncStatusDirty).
		Order("updated_at ASC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *pageSyncRepo) MarkSynced(ctx context.Context, tx *gorm.DB, pageKey string, strokeCount int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.PageSync{}).
		Where("page_key = ?", pageKey).
		Updates(map[string]interface{}{
			"status":       types.PageSyncStatusSynced,
			"stroke_count": strokeCount,
			"last_pass_at": &now,
			"last_error":   "",
		}).Error
}

func (r *pageSyncRepo) MarkFailed(ctx context.Context, tx *gorm.DB, pageKey string, passErr error) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	msg := ""
	if passErr != nil {
		msg = passErr.Error()
	}
	return transaction.WithContext(ctx).
		Model(&types.PageSync{}).
		Where("page_key = ?", pageKey).
		Updates(map[string]interface{}{
			"status":     types.PageSyncStatusFailed,
			"last_error": msg,
		}).Error
}
