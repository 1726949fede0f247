package steps

import (
	"testing"

	"github.com/yungbote/inkbridge-backend/internal/domain"
)

func matchedPass(t *testing.T, strokes []domain.Stroke, lines []domain.RecognizedLine) *PassContext {
	t.Helper()
	pass := NewPassContext("b1.p1", "root", strokes, lines)
	MatchStrokes(pass, MatchInput{Tolerance: 5})
	return pass
}

func actionsOfKind(actions []Action, kind ActionKind) []Action {
	var out []Action
	for _, a := range actions {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func TestReconcileSkipWhenTranscriptUnchanged(t *testing.T) {
	strokes := []domain.Stroke{strokeAt("s1", 1, 9)}
	lines := []domain.RecognizedLine{lineAt("hello", 0, 0, 10)}
	pass := matchedPass(t, strokes, lines)

	existing := []domain.Block{{
		ID:      "blk-1",
		Content: "hello",
		Props: domain.BlockProps{
			Canonical: "hello",
			StrokeIDs: []string{"s1"},
		},
	}}

	actions := Reconcile(pass, existing)
	skips := actionsOfKind(actions, ActionSkip)
	if len(skips) != 1 || skips[0].Block.ID != "blk-1" {
		t.Fatalf("expected one SKIP for blk-1, got %+v", actions)
	}
	if creates := actionsOfKind(actions, ActionCreate); len(creates) != 0 {
		t.Fatalf("unchanged line also produced creates: %+v", creates)
	}
}

func TestReconcileUpdateWhenTranscriptChanged(t *testing.T) {
	strokes := []domain.Stroke{strokeAt("s1", 1, 9)}
	lines := []domain.RecognizedLine{lineAt("hello corrected", 0, 0, 10)}
	pass := matchedPass(t, strokes, lines)

	existing := []domain.Block{{
		ID:      "blk-1",
		Content: "hello",
		Props: domain.BlockProps{
			Canonical: "hello",
			StrokeIDs: []string{"s1"},
		},
	}}

	actions := Reconcile(pass, existing)
	updates := actionsOfKind(actions, ActionUpdate)
	if len(updates) != 1 || updates[0].Block.ID != "blk-1" || updates[0].LineIndex != 0 {
		t.Fatalf("expected one UPDATE for blk-1 at line 0, got %+v", actions)
	}
}

func TestReconcilePreservesBlockOutsidePassRegion(t *testing.T) {
	// The block's strokes are still on the page but the recognizer produced
	// no line for that region this pass. Deleting here would destroy content
	// for ink that still exists.
	strokes := []domain.Stroke{
		strokeAt("s100", 0, 10),
		strokeAt("s101", 0, 10),
		strokeAt("s200", 100, 110),
		strokeAt("s201", 100, 110),
	}
	lines := []domain.RecognizedLine{lineAt("lower region", 0, 100, 110)}
	pass := matchedPass(t, strokes, lines)

	existing := []domain.Block{{
		ID:    "blk-upper",
		Props: domain.BlockProps{Canonical: "upper region", StrokeIDs: []string{"s100", "s101"}},
	}}

	actions := Reconcile(pass, existing)
	if preserves := actionsOfKind(actions, ActionPreserve); len(preserves) != 1 {
		t.Fatalf("expected PRESERVE for blk-upper, got %+v", actions)
	}
	if deletes := actionsOfKind(actions, ActionDelete); len(deletes) != 0 {
		t.Fatalf("block with live ink was deleted: %+v", deletes)
	}
}

func TestReconcileDeletesBlockWhoseInkIsGone(t *testing.T) {
	strokes := []domain.Stroke{strokeAt("s200", 100, 110)}
	lines := []domain.RecognizedLine{lineAt("lower region", 0, 100, 110)}
	pass := matchedPass(t, strokes, lines)

	existing := []domain.Block{{
		ID:    "blk-erased",
		Props: domain.BlockProps{Canonical: "erased text", StrokeIDs: []string{"s100", "s101"}},
	}}

	actions := Reconcile(pass, existing)
	deletes := actionsOfKind(actions, ActionDelete)
	if len(deletes) != 1 || deletes[0].Block.ID != "blk-erased" {
		t.Fatalf("expected DELETE for blk-erased, got %+v", actions)
	}
}

func TestReconcilePreservesBlockWithoutInkReference(t *testing.T) {
	// Blocks persisted before stroke ids were recorded, with no stored
	// bounds either, can never be proven stale.
	strokes := []domain.Stroke{strokeAt("s1", 0, 10)}
	lines := []domain.RecognizedLine{lineAt("text", 0, 0, 10)}
	pass := matchedPass(t, strokes, lines)

	existing := []domain.Block{{ID: "blk-legacy", Content: "hand-made note"}}

	actions := Reconcile(pass, existing)
	if preserves := actionsOfKind(actions, ActionPreserve); len(preserves) != 1 {
		t.Fatalf("expected PRESERVE for legacy block, got %+v", actions)
	}
}

func TestReconcileBoundsFallbackForLegacyBlocks(t *testing.T) {
	strokes := []domain.Stroke{strokeAt("s1", 1, 9)}
	lines := []domain.RecognizedLine{lineAt("hello", 0, 0, 10)}
	pass := matchedPass(t, strokes, lines)

	existing := []domain.Block{{
		ID: "blk-legacy",
		Props: domain.BlockProps{
			Bounds:    &domain.Bounds{MinY: 2, MaxY: 8},
			Canonical: "hello",
		},
	}}

	actions := Reconcile(pass, existing)
	skips := actionsOfKind(actions, ActionSkip)
	if len(skips) != 1 || skips[0].LineIndex != 0 {
		t.Fatalf("expected bounds-matched SKIP, got %+v", actions)
	}
}

func TestReconcileSplitSpawnsPinnedSiblings(t *testing.T) {
	// One block's strokes now land on two recognized lines: the block was
	// split. The first line updates in place, the second becomes a new
	// sibling pinned to the split block's parent.
	strokes := []domain.Stroke{
		strokeAt("s1", 1, 9),
		strokeAt("s2", 21, 29),
	}
	lines := []domain.RecognizedLine{
		lineAt("first half", 0, 0, 10),
		lineAt("second half", 0, 20, 30),
	}
	pass := matchedPass(t, strokes, lines)

	existing := []domain.Block{{
		ID:       "blk-split",
		ParentID: "blk-parent",
		Props:    domain.BlockProps{Canonical: "first half second half", StrokeIDs: []string{"s1", "s2"}},
	}}

	actions := Reconcile(pass, existing)

	updates := actionsOfKind(actions, ActionUpdate)
	if len(updates) != 1 || updates[0].LineIndex != 0 {
		t.Fatalf("expected UPDATE at line 0, got %+v", actions)
	}
	creates := actionsOfKind(actions, ActionCreate)
	if len(creates) != 1 {
		t.Fatalf("expected one split CREATE, got %+v", creates)
	}
	if !creates[0].Pinned || creates[0].ParentHint != "blk-parent" || creates[0].LineIndex != 1 {
		t.Fatalf("split create not pinned to the split block's parent: %+v", creates[0])
	}
}

func TestReconcileUnclaimedLinesBecomeCreates(t *testing.T) {
	strokes := []domain.Stroke{
		strokeAt("s1", 1, 9),
		strokeAt("s2", 21, 29),
	}
	lines := []domain.RecognizedLine{
		lineAt("known", 0, 0, 10),
		lineAt("brand new", 0, 20, 30),
	}
	pass := matchedPass(t, strokes, lines)

	existing := []domain.Block{{
		ID:    "blk-1",
		Props: domain.BlockProps{Canonical: "known", StrokeIDs: []string{"s1"}},
	}}

	actions := Reconcile(pass, existing)
	creates := actionsOfKind(actions, ActionCreate)
	if len(creates) != 1 || creates[0].LineIndex != 1 || creates[0].Pinned {
		t.Fatalf("expected plain CREATE for line 1, got %+v", creates)
	}
}

func TestReconcileFirstSeenBlockWinsContendedLine(t *testing.T) {
	strokes := []domain.Stroke{strokeAt("s1", 1, 9)}
	lines := []domain.RecognizedLine{lineAt("hello", 0, 0, 10)}
	pass := matchedPass(t, strokes, lines)

	existing := []domain.Block{
		{ID: "blk-a", Props: domain.BlockProps{Canonical: "hello", StrokeIDs: []string{"s1"}}},
		{ID: "blk-b", Props: domain.BlockProps{Canonical: "hello", StrokeIDs: []string{"s1"}}},
	}

	actions := Reconcile(pass, existing)
	skips := actionsOfKind(actions, ActionSkip)
	if len(skips) != 1 || skips[0].Block.ID != "blk-a" {
		t.Fatalf("expected blk-a to claim the line, got %+v", actions)
	}
	// blk-b lost the line but its strokes are still present.
	preserves := actionsOfKind(actions, ActionPreserve)
	if len(preserves) != 1 || preserves[0].Block.ID != "blk-b" {
		t.Fatalf("expected blk-b preserved, got %+v", actions)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	// A second pass over the same ink and the state the first pass produced
	// decides SKIP for every line and changes nothing.
	strokes := []domain.Stroke{
		strokeAt("s1", 1, 9),
		strokeAt("s2", 21, 29),
	}
	lines := []domain.RecognizedLine{
		lineAt("alpha", 0, 0, 10),
		lineAt("beta", 1, 20, 30),
	}
	pass := matchedPass(t, strokes, lines)

	existing := []domain.Block{
		{ID: "blk-1", Props: domain.BlockProps{Canonical: "alpha", StrokeIDs: []string{"s1"}}},
		{ID: "blk-2", ParentID: "blk-1", Props: domain.BlockProps{Canonical: "beta", StrokeIDs: []string{"s2"}}},
	}

	actions := Reconcile(pass, existing)
	for _, a := range actions {
		if a.Kind != ActionSkip {
			t.Fatalf("second pass produced non-SKIP action %s for %+v", a.Kind, a)
		}
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 SKIPs, got %d actions", len(actions))
	}
}
