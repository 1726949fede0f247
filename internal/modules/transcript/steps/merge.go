package steps

import (
	"context"
	"fmt"

	"github.com/yungbote/inkbridge-backend/internal/domain"
	"github.com/yungbote/inkbridge-backend/internal/logger"
)

// Merge describes one user edit that fused previously distinct blocks: the
// first source block survives and absorbs the strokes of the rest.
type Merge struct {
	SurvivorID  string
	AbsorbedIDs []string
}

// DetectMerges inspects editor-provided lines for SourceLineIDs carrying
// more than one block id. Such a line is the result of merging previously
// separate lines; the first id is the surviving block.
func DetectMerges(editedLines []domain.RecognizedLine) []Merge {
	var merges []Merge
	for _, line := range editedLines {
		if len(line.SourceLineIDs) < 2 {
			continue
		}
		merges = append(merges, Merge{
			SurvivorID:  line.SourceLineIDs[0],
			AbsorbedIDs: line.SourceLineIDs[1:],
		})
	}
	return merges
}

// StrokeOwnership is the slice of the stroke store a merge needs: moving
// ownership of strokes between blocks.
type StrokeOwnership interface {
	ReassignOwner(fromBlockIDs []string, toBlockID string) int
}

type ApplyMergeDeps struct {
	Log     *logger.Logger
	Store   BlockStore
	Strokes StrokeOwnership
}

// ApplyMerge re-homes every stroke owned by an absorbed block onto the
// survivor, then deletes the absorbed blocks from the store. The mutated
// strokes must be re-persisted before the next reconciliation pass, or they
// would dangle against the deleted block ids and look orphaned.
func ApplyMerge(ctx context.Context, deps ApplyMergeDeps, m Merge) (int, error) {
	log := deps.Log.With("step", "ApplyMerge", "survivor_id", m.SurvivorID)

	if m.SurvivorID == "" {
		return 0, fmt.Errorf("merge has no surviving block id")
	}

	absorbed := make(map[string]bool, len(m.AbsorbedIDs))
	absorbedIDs := make([]string, 0, len(m.AbsorbedIDs))
	for _, id := range m.AbsorbedIDs {
		if id != "" && id != m.SurvivorID && !absorbed[id] {
			absorbed[id] = true
			absorbedIDs = append(absorbedIDs, id)
		}
	}
	if len(absorbedIDs) == 0 {
		return 0, nil
	}

	moved := deps.Strokes.ReassignOwner(absorbedIDs, m.SurvivorID)

	for _, id := range absorbedIDs {
		if err := deps.Store.DeleteBlock(ctx, id); err != nil {
			return moved, fmt.Errorf("delete absorbed block %s: %w", id, err)
		}
	}

	log.Debug("Applied merge", "absorbed", len(absorbedIDs), "strokes_moved", moved)
	return moved, nil
}
