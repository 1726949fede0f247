package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/inkbridge-backend/internal/domain"
)

type memBlock struct {
	id       string
	pageKey  string
	parentID string
	isRoot   bool
	content  string
	props    map[string]string
	seq      int
}

// MemBlockStore is an in-memory BlockStore for tests and offline runs. It
// enforces the same contract as the real store: creating a block whose
// parent does not exist is an error.
type MemBlockStore struct {
	mu     sync.Mutex
	blocks map[string]*memBlock
	roots  map[string]string
	nextSq int
}

func NewMemBlockStore() *MemBlockStore {
	return &MemBlockStore{
		blocks: map[string]*memBlock{},
		roots:  map[string]string{},
	}
}

func (s *MemBlockStore) EnsureRoot(ctx context.Context, pageKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.roots[pageKey]; ok {
		return id, nil
	}
	id := uuid.NewString()
	s.nextSq++
	s.blocks[id] = &memBlock{id: id, pageKey: pageKey, isRoot: true, props: map[string]string{}, seq: s.nextSq}
	s.roots[pageKey] = id
	return id, nil
}

func (s *MemBlockStore) GetBlockTree(ctx context.Context, pageKey string) ([]domain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rootID := s.roots[pageKey]

	var ordered []*memBlock
	for _, b := range s.blocks {
		if b.pageKey == pageKey && !b.isRoot {
			ordered = append(ordered, b)
		}
	}
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].seq < ordered[i].seq {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}

	blocks := make([]domain.Block, 0, len(ordered))
	for _, b := range ordered {
		parent := b.parentID
		if parent == rootID {
			parent = ""
		}
		bag := make(map[string]string, len(b.props))
		for k, v := range b.props {
			bag[k] = v
		}
		blocks = append(blocks, domain.Block{
			ID:       b.id,
			ParentID: parent,
			Content:  b.content,
			Props:    domain.PropsFromBag(bag),
		})
	}
	return blocks, nil
}

func (s *MemBlockStore) CreateBlock(ctx context.Context, pageKey, parentID, content string, properties map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if parentID == "" {
		parentID = s.roots[pageKey]
		if parentID == "" {
			return "", fmt.Errorf("page %s has no section root", pageKey)
		}
	}
	if _, ok := s.blocks[parentID]; !ok {
		return "", fmt.Errorf("parent block %s does not exist", parentID)
	}
	id := uuid.NewString()
	props := map[string]string{}
	for k, v := range properties {
		props[k] = v
	}
	s.nextSq++
	s.blocks[id] = &memBlock{
		id:       id,
		pageKey:  pageKey,
		parentID: parentID,
		content:  content,
		props:    props,
		seq:      s.nextSq,
	}
	return id, nil
}

func (s *MemBlockStore) UpdateBlockContent(ctx context.Context, blockID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[blockID]
	if !ok {
		return fmt.Errorf("block %s does not exist", blockID)
	}
	b.content = content
	return nil
}

func (s *MemBlockStore) UpdateBlockProperty(ctx context.Context, blockID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[blockID]
	if !ok {
		return fmt.Errorf("block %s does not exist", blockID)
	}
	b.props[key] = value
	return nil
}

func (s *MemBlockStore) DeleteBlock(ctx context.Context, blockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[blockID]
	if !ok {
		return fmt.Errorf("block %s does not exist", blockID)
	}
	rootID := s.roots[b.pageKey]
	for _, child := range s.blocks {
		if child.parentID == blockID {
			child.parentID = rootID
		}
	}
	delete(s.blocks, blockID)
	return nil
}

// Exists reports whether a block id is present; test helper.
func (s *MemBlockStore) Exists(blockID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocks[blockID]
	return ok
}

// ParentOf returns a block's parent id ("" for the section root); test helper.
func (s *MemBlockStore) ParentOf(blockID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[blockID]
	if !ok {
		return "", false
	}
	rootID := s.roots[b.pageKey]
	if b.parentID == rootID {
		return "", true
	}
	return b.parentID, true
}
