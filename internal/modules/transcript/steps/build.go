package steps

import (
	"context"
	"fmt"
	"sort"

	"github.com/yungbote/inkbridge-backend/internal/domain"
	"github.com/yungbote/inkbridge-backend/internal/logger"
)

// DeletePhaseLevel marks a StoreWriteError raised while applying deletes,
// which run as a final phase after every indent level has been applied.
const DeletePhaseLevel = -1

// StoreWriteError reports a block-store write failure together with the
// partial-completion boundary: every level below Level was fully applied and
// is not rolled back.
type StoreWriteError struct {
	Level int
	Err   error
}

func (e *StoreWriteError) Error() string {
	if e.Level == DeletePhaseLevel {
		return fmt.Sprintf("block store write failed during delete phase: %v", e.Err)
	}
	return fmt.Sprintf("block store write failed at indent level %d: %v", e.Level, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

type BuildDeps struct {
	Log   *logger.Logger
	Store BlockStore
}

type BuildInput struct {
	Pass    *PassContext
	Actions []Action
}

type BuildOutput struct {
	// LineBlocks maps canonical line index to the block now backing it,
	// covering created, updated and skipped lines.
	LineBlocks map[int]string
	// CompletedLevels lists the indent levels whose create/update batch
	// fully succeeded, in processing order.
	CompletedLevels []int

	Created   int
	Updated   int
	Skipped   int
	Preserved int
	Deleted   int
}

// Build materializes reconciler actions against the block store. Creates and
// updates are grouped by indent level and applied in ascending level order,
// so a child's parent always exists in the store before the child's create
// request is issued. Requests are strictly sequential. Deletes run last so a
// pending re-parent never references a just-removed block mid-pass.
func Build(ctx context.Context, deps BuildDeps, in BuildInput) (BuildOutput, error) {
	log := deps.Log.With("step", "Build", "page_key", in.Pass.PageKey)
	pass := in.Pass

	out := BuildOutput{LineBlocks: map[int]string{}}

	byLevel := map[int][]Action{}
	var deletes []Action
	for _, a := range in.Actions {
		switch a.Kind {
		case ActionCreate, ActionUpdate:
			level := pass.Lines[a.LineIndex].Indent
			if level < 0 {
				level = 0
			}
			byLevel[level] = append(byLevel[level], a)
		case ActionSkip:
			// Nothing to write, but the block still anchors parent
			// resolution and stroke ownership for its line.
			out.LineBlocks[a.LineIndex] = a.Block.ID
			out.Skipped++
		case ActionPreserve:
			out.Preserved++
			log.Debug("Preserving block with no matching line", "block_id", a.Block.ID)
		case ActionDelete:
			deletes = append(deletes, a)
		}
	}

	levels := make([]int, 0, len(byLevel))
	for level := range byLevel {
		levels = append(levels, level)
	}
	sort.Ints(levels)

	for _, level := range levels {
		batch := byLevel[level]
		sort.SliceStable(batch, func(i, j int) bool { return batch[i].LineIndex < batch[j].LineIndex })

		for _, a := range batch {
			line := pass.Lines[a.LineIndex]
			switch a.Kind {
			case ActionCreate:
				parentID := resolveParent(pass, out.LineBlocks, a)
				props := domain.BlockProps{
					Bounds:    &domain.Bounds{MinY: line.Bounds.MinY, MaxY: line.Bounds.MaxY},
					Canonical: line.Canonical,
					StrokeIDs: pass.StrokesForLine(a.LineIndex),
				}
				blockID, err := deps.Store.CreateBlock(ctx, pass.PageKey, parentID, line.Text, props.Bag())
				if err != nil {
					return out, &StoreWriteError{Level: level, Err: err}
				}
				out.LineBlocks[a.LineIndex] = blockID
				out.Created++
				log.Debug("Created block", "block_id", blockID, "parent_id", parentID, "indent", level)
			case ActionUpdate:
				if err := deps.Store.UpdateBlockContent(ctx, a.Block.ID, line.Text); err != nil {
					return out, &StoreWriteError{Level: level, Err: err}
				}
				props := domain.BlockProps{
					Bounds:    &domain.Bounds{MinY: line.Bounds.MinY, MaxY: line.Bounds.MaxY},
					Canonical: line.Canonical,
					StrokeIDs: pass.StrokesForLine(a.LineIndex),
				}
				bag := props.Bag()
				for _, key := range []string{domain.PropInkBounds, domain.PropCanonical, domain.PropStrokeIDs} {
					value, ok := bag[key]
					if !ok {
						continue
					}
					if err := deps.Store.UpdateBlockProperty(ctx, a.Block.ID, key, value); err != nil {
						return out, &StoreWriteError{Level: level, Err: err}
					}
				}
				out.LineBlocks[a.LineIndex] = a.Block.ID
				out.Updated++
				log.Debug("Updated block", "block_id", a.Block.ID, "indent", level)
			}
		}
		out.CompletedLevels = append(out.CompletedLevels, level)
	}

	for _, a := range deletes {
		if err := deps.Store.DeleteBlock(ctx, a.Block.ID); err != nil {
			return out, &StoreWriteError{Level: DeletePhaseLevel, Err: err}
		}
		out.Deleted++
		log.Debug("Deleted block with no backing ink", "block_id", a.Block.ID)
	}

	return out, nil
}

// resolveParent picks the parent block id for a create at the action's line.
// Level 0 lines parent to the section root. Deeper lines parent to the
// nearest preceding line of a lower indent level that already resolved to a
// block; with no such line the section root is the fallback. Split-spawned
// creates are pinned to the split block's parent instead.
func resolveParent(pass *PassContext, lineBlocks map[int]string, a Action) string {
	if a.Pinned {
		if a.ParentHint == "" {
			return pass.RootID
		}
		return a.ParentHint
	}
	level := pass.Lines[a.LineIndex].Indent
	if level <= 0 {
		return pass.RootID
	}
	for i := a.LineIndex - 1; i >= 0; i-- {
		if pass.Lines[i].Indent >= level {
			continue
		}
		if blockID, ok := lineBlocks[i]; ok {
			return blockID
		}
	}
	return pass.RootID
}
