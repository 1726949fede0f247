package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/inkbridge-backend/internal/domain"
	"github.com/yungbote/inkbridge-backend/internal/logger"
	"github.com/yungbote/inkbridge-backend/internal/repos"
	"github.com/yungbote/inkbridge-backend/internal/types"
)

// BlockStore is the document store's block CRUD surface. Block ids are
// opaque strings to callers; parent id "" addresses the page's section root.
type BlockStore interface {
	EnsureRoot(ctx context.Context, pageKey string) (string, error)
	GetBlockTree(ctx context.Context, pageKey string) ([]domain.Block, error)
	CreateBlock(ctx context.Context, pageKey, parentID, content string, properties map[string]string) (string, error)
	UpdateBlockContent(ctx context.Context, blockID, content string) error
	UpdateBlockProperty(ctx context.Context, blockID, key, value string) error
	DeleteBlock(ctx context.Context, blockID string) error
}

type gormBlockStore struct {
	db        *gorm.DB
	log       *logger.Logger
	blockRepo repos.BlockRepo
}

func NewGormBlockStore(db *gorm.DB, log *logger.Logger, blockRepo repos.BlockRepo) (BlockStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if blockRepo == nil {
		return nil, fmt.Errorf("block repo required")
	}
	serviceLog := log.With("service", "GormBlockStore")
	return &gormBlockStore{db: db, log: serviceLog, blockRepo: blockRepo}, nil
}

func (s *gormBlockStore) EnsureRoot(ctx context.Context, pageKey string) (string, error) {
	root, err := s.blockRepo.GetRoot(ctx, nil, pageKey)
	if err == nil {
		return root.ID.String(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("get section root: %w", err)
	}
	created, err := s.blockRepo.Create(ctx, nil, &types.Block{
		PageKey: pageKey,
		IsRoot:  true,
	})
	if err != nil {
		return "", fmt.Errorf("create section root: %w", err)
	}
	s.log.Debug("Created section root", "page_key", pageKey, "block_id", created.ID)
	return created.ID.String(), nil
}

func (s *gormBlockStore) GetBlockTree(ctx context.Context, pageKey string) ([]domain.Block, error) {
	rows, err := s.blockRepo.GetByPageKey(ctx, nil, pageKey)
	if err != nil {
		return nil, fmt.Errorf("get block tree: %w", err)
	}

	var rootID uuid.UUID
	for _, row := range rows {
		if row.IsRoot {
			rootID = row.ID
			break
		}
	}

	blocks := make([]domain.Block, 0, len(rows))
	for _, row := range rows {
		if row.IsRoot {
			continue
		}
		parent := ""
		if row.ParentID != nil && *row.ParentID != rootID {
			parent = row.ParentID.String()
		}
		blocks = append(blocks, domain.Block{
			ID:       row.ID.String(),
			ParentID: parent,
			Content:  row.Content,
			Props:    domain.PropsFromBag(decodeBag(row.Properties)),
		})
	}
	return blocks, nil
}

func (s *gormBlockStore) CreateBlock(ctx context.Context, pageKey, parentID, content string, properties map[string]string) (string, error) {
	var parent uuid.UUID
	if parentID == "" {
		rootID, err := s.EnsureRoot(ctx, pageKey)
		if err != nil {
			return "", err
		}
		parent, err = uuid.Parse(rootID)
		if err != nil {
			return "", fmt.Errorf("parse section root id: %w", err)
		}
	} else {
		var err error
		parent, err = uuid.Parse(parentID)
		if err != nil {
			return "", fmt.Errorf("parse parent id %q: %w", parentID, err)
		}
		if _, err := s.blockRepo.GetByID(ctx, nil, parent); err != nil {
			return "", fmt.Errorf("parent block %s: %w", parentID, err)
		}
	}

	bag, err := encodeBag(properties)
	if err != nil {
		return "", err
	}
	created, err := s.blockRepo.Create(ctx, nil, &types.Block{
		PageKey:    pageKey,
		ParentID:   &parent,
		Content:    content,
		Properties: bag,
	})
	if err != nil {
		return "", fmt.Errorf("create block: %w", err)
	}
	return created.ID.String(), nil
}

func (s *gormBlockStore) UpdateBlockContent(ctx context.Context, blockID, content string) error {
	id, err := uuid.Parse(blockID)
	if err != nil {
		return fmt.Errorf("parse block id %q: %w", blockID, err)
	}
	if err := s.blockRepo.UpdateContent(ctx, nil, id, content); err != nil {
		return fmt.Errorf("update block content: %w", err)
	}
	return nil
}

func (s *gormBlockStore) UpdateBlockProperty(ctx context.Context, blockID, key, value string) error {
	id, err := uuid.Parse(blockID)
	if err != nil {
		return fmt.Errorf("parse block id %q: %w", blockID, err)
	}
	row, err := s.blockRepo.GetByID(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("get block: %w", err)
	}
	bag := decodeBag(row.Properties)
	bag[key] = value
	encoded, err := encodeBag(bag)
	if err != nil {
		return err
	}
	if err := s.blockRepo.UpdateProperties(ctx, nil, id, encoded); err != nil {
		return fmt.Errorf("update block properties: %w", err)
	}
	return nil
}

// DeleteBlock removes one block. Children are re-homed to the page's section
// root rather than cascaded: only the reconciler may prove a block's ink is
// gone, and it proves it block by block.
func (s *gormBlockStore) DeleteBlock(ctx context.Context, blockID string) error {
	id, err := uuid.Parse(blockID)
	if err != nil {
		return fmt.Errorf("parse block id %q: %w", blockID, err)
	}
	row, err := s.blockRepo.GetByID(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("get block: %w", err)
	}
	rootID, err := s.EnsureRoot(ctx, row.PageKey)
	if err != nil {
		return err
	}
	root, err := uuid.Parse(rootID)
	if err != nil {
		return fmt.Errorf("parse section root id: %w", err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.blockRepo.ReparentChildren(ctx, tx, id, &root); err != nil {
			return fmt.Errorf("reparent children: %w", err)
		}
		if err := s.blockRepo.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("delete block: %w", err)
		}
		return nil
	})
}

func decodeBag(raw []byte) map[string]string {
	bag := map[string]string{}
	if len(raw) == 0 {
		return bag
	}
	_ = json.Unmarshal(raw, &bag)
	return bag
}

func encodeBag(bag map[string]string) ([]byte, error) {
	if bag == nil {
		bag = map[string]string{}
	}
	raw, err := json.Marshal(bag)
	if err != nil {
		return nil, fmt.Errorf("encode property bag: %w", err)
	}
	return raw, nil
}
