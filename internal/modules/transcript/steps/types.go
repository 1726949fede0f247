package steps

import (
	"context"
	"fmt"
	"sort"

	"github.com/yungbote/inkbridge-backend/internal/domain"
)

// BlockStore is the block CRUD surface of the external document store.
// Implementations live in internal/services (gorm-backed and in-memory).
type BlockStore interface {
	EnsureRoot(ctx context.Context, pageKey string) (string, error)
	GetBlockTree(ctx context.Context, pageKey string) ([]domain.Block, error)
	CreateBlock(ctx context.Context, pageKey, parentID, content string, properties map[string]string) (string, error)
	UpdateBlockContent(ctx context.Context, blockID, content string) error
	UpdateBlockProperty(ctx context.Context, blockID, key, value string) error
	DeleteBlock(ctx context.Context, blockID string) error
}

type ActionKind int

const (
	ActionCreate ActionKind = iota
	ActionUpdate
	ActionSkip
	ActionPreserve
	ActionDelete
)

func (k ActionKind) String() string {
	switch k {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionSkip:
		return "skip"
	case ActionPreserve:
		return "preserve"
	case ActionDelete:
		return "delete"
	}
	return fmt.Sprintf("actionkind(%d)", int(k))
}

// Action is one reconciler decision. Block is nil for CREATE of a line with
// no existing counterpart; LineIndex is -1 for PRESERVE and DELETE. CREATE
// actions spawned by a block split carry Pinned=true and ParentHint, pinning
// the new block to the split block's parent regardless of indent resolution
// (an empty pinned hint means the section root).
type Action struct {
	Kind       ActionKind
	Block      *domain.Block
	LineIndex  int
	ParentHint string
	Pinned     bool
}

// PassContext carries the state of one reconciliation pass from the matcher
// through the reconciler into the builder. It replaces any ambient
// pass-scoped state; nothing in this package is package-level mutable.
type PassContext struct {
	PageKey string
	RootID  string

	Strokes []domain.Stroke
	// Lines is in canonical order: sorted by vertical position, so line
	// indices are stable under permutations of the recognizer's output.
	Lines []domain.RecognizedLine

	// Matcher output: stroke id -> canonical line index, and its inverse.
	Assignments map[string]int
	LineStrokes map[int][]string
}

// NewPassContext canonicalizes line order by vertical position. Line indices
// used everywhere downstream refer to this order.
func NewPassContext(pageKey, rootID string, strokes []domain.Stroke, lines []domain.RecognizedLine) *PassContext {
	ordered := make([]domain.RecognizedLine, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Bounds.MinY != ordered[j].Bounds.MinY {
			return ordered[i].Bounds.MinY < ordered[j].Bounds.MinY
		}
		return ordered[i].Bounds.MaxY < ordered[j].Bounds.MaxY
	})
	return &PassContext{
		PageKey:     pageKey,
		RootID:      rootID,
		Strokes:     strokes,
		Lines:       ordered,
		Assignments: map[string]int{},
		LineStrokes: map[int][]string{},
	}
}

// StrokesForLine returns the ids of strokes the matcher assigned to the line.
func (p *PassContext) StrokesForLine(lineIndex int) []string {
	return p.LineStrokes[lineIndex]
}
