package services

import (
	"github.com/yungbote/inkbridge-backend/internal/domain"
	"github.com/yungbote/inkbridge-backend/internal/logger"
)

// StrokeStore is the in-memory working set of one page's captured strokes.
// It deduplicates device re-sends by stroke id and tracks block ownership.
// The block -> strokes direction is never stored; OwnedBy computes it by
// filtering on demand.
type StrokeStore struct {
	log     *logger.Logger
	order   []string
	strokes map[string]domain.Stroke
}

func NewStrokeStore(log *logger.Logger) *StrokeStore {
	return &StrokeStore{
		log:     log.With("service", "StrokeStore"),
		strokes: map[string]domain.Stroke{},
	}
}

// AddBatch inserts strokes, skipping ids already present, and returns how
// many were new. Offline-batch transfers routinely replay strokes the store
// already holds.
func (s *StrokeStore) AddBatch(strokes []domain.Stroke) int {
	added := 0
	for _, stroke := range strokes {
		if stroke.ID == "" {
			continue
		}
		if _, ok := s.strokes[stroke.ID]; ok {
			continue
		}
		s.strokes[stroke.ID] = stroke
		s.order = append(s.order, stroke.ID)
		added++
	}
	return added
}

func (s *StrokeStore) Len() int { return len(s.order) }

// All returns the strokes in insertion order.
func (s *StrokeStore) All() []domain.Stroke {
	out := make([]domain.Stroke, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.strokes[id])
	}
	return out
}

// SetOwner records which block a stroke was transcribed into.
func (s *StrokeStore) SetOwner(strokeID, blockID string) bool {
	stroke, ok := s.strokes[strokeID]
	if !ok {
		return false
	}
	stroke.BlockID = blockID
	s.strokes[strokeID] = stroke
	return true
}

// ReassignOwner moves every stroke owned by one of fromBlockIDs onto
// toBlockID and returns how many moved.
func (s *StrokeStore) ReassignOwner(fromBlockIDs []string, toBlockID string) int {
	from := make(map[string]bool, len(fromBlockIDs))
	for _, id := range fromBlockIDs {
		if id != "" {
			from[id] = true
		}
	}
	moved := 0
	for _, id := range s.order {
		stroke := s.strokes[id]
		if from[stroke.BlockID] {
			stroke.BlockID = toBlockID
			s.strokes[id] = stroke
			moved++
		}
	}
	return moved
}

// OwnedBy returns the strokes currently owned by a block, in insertion order.
func (s *StrokeStore) OwnedBy(blockID string) []domain.Stroke {
	var out []domain.Stroke
	for _, id := range s.order {
		if s.strokes[id].BlockID == blockID {
			out = append(out, s.strokes[id])
		}
	}
	return out
}
