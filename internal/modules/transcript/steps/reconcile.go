package steps

import (
	"sort"

	"github.com/yungbote/inkbridge-backend/internal/domain"
)

// Reconcile diffs the persisted blocks of a page against the recognized
// lines of the current pass and decides, per block and per line, what the
// builder should do. It is pure: store writes happen in Build.
//
// Matching prefers stroke-id-set overlap between a block's recorded stroke
// ids and the matcher's per-line stroke sets. Blocks persisted before stroke
// ids were recorded fall back to vertical-bounds overlap against the block's
// stored ink bounds. A line is claimed by at most one block; when two blocks
// contend for the same line, the first-seen block wins and the later one is
// treated as having no match.
//
// A block with no matching line is deleted only when its recorded strokes
// are provably absent from the current stroke set. Anything short of that
// proof preserves the block untouched: a pass that covers only part of a
// page's ink must not destroy blocks for the uncovered part.
func Reconcile(pass *PassContext, existing []domain.Block) []Action {
	strokePresent := make(map[string]bool, len(pass.Strokes))
	for _, s := range pass.Strokes {
		strokePresent[s.ID] = true
	}

	lineSets := make([]map[string]bool, len(pass.Lines))
	for i := range pass.Lines {
		set := make(map[string]bool, len(pass.LineStrokes[i]))
		for _, id := range pass.LineStrokes[i] {
			set[id] = true
		}
		lineSets[i] = set
	}

	claimed := make(map[int]bool, len(pass.Lines))
	actions := make([]Action, 0, len(existing)+len(pass.Lines))

	for bi := range existing {
		b := &existing[bi]

		var matches []int
		if len(b.Props.StrokeIDs) > 0 {
			for i := range pass.Lines {
				if claimed[i] {
					continue
				}
				for _, id := range b.Props.StrokeIDs {
					if lineSets[i][id] {
						matches = append(matches, i)
						break
					}
				}
			}
		} else if b.Props.Bounds != nil {
			for i := range pass.Lines {
				if claimed[i] {
					continue
				}
				if b.Props.Bounds.Overlap(pass.Lines[i].Bounds, 0) > 0 {
					matches = append(matches, i)
				}
			}
		}

		if len(matches) == 0 {
			if len(b.Props.StrokeIDs) > 0 {
				gone := true
				for _, id := range b.Props.StrokeIDs {
					if strokePresent[id] {
						gone = false
						break
					}
				}
				if gone {
					actions = append(actions, Action{Kind: ActionDelete, Block: b, LineIndex: -1})
					continue
				}
			}
			// No ink reference, or the ink is still around: keep hands off.
			actions = append(actions, Action{Kind: ActionPreserve, Block: b, LineIndex: -1})
			continue
		}

		sort.Ints(matches)
		first := matches[0]
		claimed[first] = true

		if len(matches) == 1 && pass.Lines[first].Canonical == b.Props.Canonical {
			actions = append(actions, Action{Kind: ActionSkip, Block: b, LineIndex: first})
			continue
		}

		actions = append(actions, Action{Kind: ActionUpdate, Block: b, LineIndex: first})

		// The block was split into finer lines since the last save: the
		// first line updates the block in place, the rest become siblings
		// pinned to the split block's parent.
		for _, li := range matches[1:] {
			claimed[li] = true
			actions = append(actions, Action{
				Kind:       ActionCreate,
				LineIndex:  li,
				ParentHint: b.ParentID,
				Pinned:     true,
			})
		}
	}

	for i := range pass.Lines {
		if !claimed[i] {
			actions = append(actions, Action{Kind: ActionCreate, LineIndex: i})
		}
	}
	return actions
}
