package repos

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/inkbridge-backend/internal/logger"
	"github.com/yungbote/inkbridge-backend/internal/types"
)

type InkRecordRepo interface {
	GetByPageKey(ctx context.Context, tx *gorm.DB, pageKey string) ([]*types.InkRecord, error)
	ReplaceForPage(ctx context.Context, tx *gorm.DB, pageKey string, payloads []datatypes.JSON) error
}

type inkRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInkRecordRepo(db *gorm.DB, baseLog *logger.Logger) InkRecordRepo {
	repoLog := baseLog.With("repo", "InkRecordRepo")
	return &inkRecordRepo{db: db, log: repoLog}
}

func (r *inkRecordRepo) GetByPageKey(ctx context.Context, tx *gorm.DB, pageKey string) ([]*types.InkRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.InkRecord
	if err := transaction.WithContext(ctx).
		Where("page_key = ?", pageKey).
		Order("seq ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ReplaceForPage swaps a page's ink records atomically. Payload order is the
// record order (metadata record first).
func (r *inkRecordRepo) ReplaceForPage(ctx context.Context, tx *gorm.DB, pageKey string, payloads []datatypes.JSON) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.Where("page_key = ?", pageKey).Delete(&types.InkRecord{}).Error; err != nil {
			return err
		}
		if len(payloads) == 0 {
			return nil
		}
		records := make([]*types.InkRecord, 0, len(payloads))
		for i, payload := range payloads {
			records = append(records, &types.InkRecord{
				PageKey: pageKey,
				Seq:     i,
				Payload: payload,
			})
		}
		const batchSize = 50
		return inner.CreateInBatches(records, batchSize).Error
	})
}
