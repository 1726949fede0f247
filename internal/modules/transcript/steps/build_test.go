package steps_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/yungbote/inkbridge-backend/internal/domain"
	"github.com/yungbote/inkbridge-backend/internal/logger"
	"github.com/yungbote/inkbridge-backend/internal/modules/transcript/steps"
	"github.com/yungbote/inkbridge-backend/internal/services"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return log
}

func testLine(text string, indent int, minY, maxY float64) domain.RecognizedLine {
	return domain.RecognizedLine{
		Text:      text,
		Canonical: text,
		Indent:    indent,
		Bounds:    domain.Bounds{MinY: minY, MaxY: maxY},
	}
}

func buildPass(t *testing.T, store *services.MemBlockStore, lines []domain.RecognizedLine) (*steps.PassContext, steps.BuildOutput) {
	t.Helper()
	ctx := context.Background()
	rootID, err := store.EnsureRoot(ctx, "b1.p1")
	if err != nil {
		t.Fatalf("ensure root: %v", err)
	}
	pass := steps.NewPassContext("b1.p1", rootID, nil, lines)

	actions := make([]steps.Action, 0, len(pass.Lines))
	for i := range pass.Lines {
		actions = append(actions, steps.Action{Kind: steps.ActionCreate, LineIndex: i})
	}
	out, err := steps.Build(ctx, steps.BuildDeps{Log: testLogger(t), Store: store}, steps.BuildInput{Pass: pass, Actions: actions})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return pass, out
}

func TestBuildIndentChainInAnyInputOrder(t *testing.T) {
	// Three lines forming an indent chain. Whatever order the recognizer
	// emits them in, the resulting tree is root -> L0 -> L1 -> L2.
	l0 := testLine("top", 0, 0, 10)
	l1 := testLine("middle", 1, 20, 30)
	l2 := testLine("deep", 2, 40, 50)

	orders := [][]domain.RecognizedLine{
		{l0, l1, l2},
		{l2, l0, l1},
		{l1, l2, l0},
	}
	for oi, lines := range orders {
		store := services.NewMemBlockStore()
		_, out := buildPass(t, store, lines)
		if out.Created != 3 {
			t.Fatalf("order %d: created %d blocks, want 3", oi, out.Created)
		}

		// Canonical order is vertical, so indices 0,1,2 are l0,l1,l2.
		id0, id1, id2 := out.LineBlocks[0], out.LineBlocks[1], out.LineBlocks[2]
		if p, _ := store.ParentOf(id0); p != "" {
			t.Fatalf("order %d: top line parented to %q, want section root", oi, p)
		}
		if p, _ := store.ParentOf(id1); p != id0 {
			t.Fatalf("order %d: middle line parented to %q, want %q", oi, p, id0)
		}
		if p, _ := store.ParentOf(id2); p != id1 {
			t.Fatalf("order %d: deep line parented to %q, want %q", oi, p, id1)
		}
	}
}

func TestBuildTreeIdenticalUnderPermutation(t *testing.T) {
	lines := []domain.RecognizedLine{
		testLine("a", 0, 0, 10),
		testLine("b", 1, 20, 30),
		testLine("c", 1, 40, 50),
		testLine("d", 0, 60, 70),
		testLine("e", 2, 80, 90),
	}
	permuted := []domain.RecognizedLine{lines[4], lines[1], lines[3], lines[0], lines[2]}

	shape := func(store *services.MemBlockStore, out steps.BuildOutput) []string {
		var s []string
		for i := 0; i < len(lines); i++ {
			parent, _ := store.ParentOf(out.LineBlocks[i])
			// Express the parent as a line index so ids don't leak into the
			// comparison.
			parentLine := -1
			for j, id := range out.LineBlocks {
				if id == parent {
					parentLine = j
				}
			}
			s = append(s, fmt.Sprintf("%d<-%d", i, parentLine))
		}
		return s
	}

	storeA := services.NewMemBlockStore()
	_, outA := buildPass(t, storeA, lines)
	storeB := services.NewMemBlockStore()
	_, outB := buildPass(t, storeB, permuted)

	shapeA, shapeB := shape(storeA, outA), shape(storeB, outB)
	for i := range shapeA {
		if shapeA[i] != shapeB[i] {
			t.Fatalf("tree shape differs under permutation: %v vs %v", shapeA, shapeB)
		}
	}
}

func TestBuildIndentGapResolvesToNearestShallowerLine(t *testing.T) {
	// Indent jumps from 0 straight to 2; the level-2 line still parents to
	// the level-0 line above it, never to a nonexistent level-1 block.
	lines := []domain.RecognizedLine{
		testLine("top", 0, 0, 10),
		testLine("jumped", 2, 20, 30),
	}
	store := services.NewMemBlockStore()
	_, out := buildPass(t, store, lines)

	if p, _ := store.ParentOf(out.LineBlocks[1]); p != out.LineBlocks[0] {
		t.Fatalf("gapped line parented to %q, want %q", p, out.LineBlocks[0])
	}
}

func TestBuildIndentedFirstLineFallsBackToRoot(t *testing.T) {
	lines := []domain.RecognizedLine{testLine("orphan-risk", 3, 0, 10)}
	store := services.NewMemBlockStore()
	_, out := buildPass(t, store, lines)

	if p, ok := store.ParentOf(out.LineBlocks[0]); !ok || p != "" {
		t.Fatalf("deep first line parented to %q, want section root", p)
	}
}

func TestBuildSkipAnchorsParentResolution(t *testing.T) {
	// An unchanged level-0 block still serves as parent for a new indented
	// line beneath it.
	ctx := context.Background()
	store := services.NewMemBlockStore()
	rootID, err := store.EnsureRoot(ctx, "b1.p1")
	if err != nil {
		t.Fatalf("ensure root: %v", err)
	}
	existingID, err := store.CreateBlock(ctx, "b1.p1", "", "top", nil)
	if err != nil {
		t.Fatalf("seed block: %v", err)
	}

	lines := []domain.RecognizedLine{
		testLine("top", 0, 0, 10),
		testLine("child", 1, 20, 30),
	}
	pass := steps.NewPassContext("b1.p1", rootID, nil, lines)
	actions := []steps.Action{
		{Kind: steps.ActionSkip, Block: &domain.Block{ID: existingID}, LineIndex: 0},
		{Kind: steps.ActionCreate, LineIndex: 1},
	}
	out, err := steps.Build(ctx, steps.BuildDeps{Log: testLogger(t), Store: store}, steps.BuildInput{Pass: pass, Actions: actions})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if out.Skipped != 1 || out.Created != 1 {
		t.Fatalf("got %d skipped %d created, want 1 and 1", out.Skipped, out.Created)
	}
	if p, _ := store.ParentOf(out.LineBlocks[1]); p != existingID {
		t.Fatalf("child parented to %q, want skipped block %q", p, existingID)
	}
}

func TestBuildPinnedCreateUsesParentHint(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemBlockStore()
	rootID, err := store.EnsureRoot(ctx, "b1.p1")
	if err != nil {
		t.Fatalf("ensure root: %v", err)
	}
	parentID, err := store.CreateBlock(ctx, "b1.p1", "", "parent", nil)
	if err != nil {
		t.Fatalf("seed parent: %v", err)
	}

	lines := []domain.RecognizedLine{testLine("second half", 2, 20, 30)}
	pass := steps.NewPassContext("b1.p1", rootID, nil, lines)
	actions := []steps.Action{
		{Kind: steps.ActionCreate, LineIndex: 0, ParentHint: parentID, Pinned: true},
	}
	out, err := steps.Build(ctx, steps.BuildDeps{Log: testLogger(t), Store: store}, steps.BuildInput{Pass: pass, Actions: actions})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p, _ := store.ParentOf(out.LineBlocks[0]); p != parentID {
		t.Fatalf("pinned create parented to %q, want hint %q", p, parentID)
	}
}

// failingStore fails block creation once a marker content string shows up.
type failingStore struct {
	*services.MemBlockStore
	failContent string
}

func (s *failingStore) CreateBlock(ctx context.Context, pageKey, parentID, content string, properties map[string]string) (string, error) {
	if content == s.failContent {
		return "", errors.New("store unavailable")
	}
	return s.MemBlockStore.CreateBlock(ctx, pageKey, parentID, content, properties)
}

func TestBuildPartialFailureReportsLevelBoundary(t *testing.T) {
	ctx := context.Background()
	mem := services.NewMemBlockStore()
	rootID, err := mem.EnsureRoot(ctx, "b1.p1")
	if err != nil {
		t.Fatalf("ensure root: %v", err)
	}
	store := &failingStore{MemBlockStore: mem, failContent: "child"}

	lines := []domain.RecognizedLine{
		testLine("top", 0, 0, 10),
		testLine("child", 1, 20, 30),
	}
	pass := steps.NewPassContext("b1.p1", rootID, nil, lines)
	actions := []steps.Action{
		{Kind: steps.ActionCreate, LineIndex: 0},
		{Kind: steps.ActionCreate, LineIndex: 1},
	}
	out, err := steps.Build(ctx, steps.BuildDeps{Log: testLogger(t), Store: store}, steps.BuildInput{Pass: pass, Actions: actions})
	if err == nil {
		t.Fatalf("expected build failure")
	}

	var writeErr *steps.StoreWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("got %T, want StoreWriteError", err)
	}
	if writeErr.Level != 1 {
		t.Fatalf("failure reported at level %d, want 1", writeErr.Level)
	}
	if len(out.CompletedLevels) != 1 || out.CompletedLevels[0] != 0 {
		t.Fatalf("completed levels %v, want [0]", out.CompletedLevels)
	}
	// Level 0 landed and stays.
	if _, ok := out.LineBlocks[0]; !ok {
		t.Fatalf("level-0 block missing from output after partial failure")
	}
}

// orderingStore records the sequence of write kinds.
type orderingStore struct {
	*services.MemBlockStore
	ops []string
}

func (s *orderingStore) CreateBlock(ctx context.Context, pageKey, parentID, content string, properties map[string]string) (string, error) {
	s.ops = append(s.ops, "create")
	return s.MemBlockStore.CreateBlock(ctx, pageKey, parentID, content, properties)
}

func (s *orderingStore) DeleteBlock(ctx context.Context, blockID string) error {
	s.ops = append(s.ops, "delete")
	return s.MemBlockStore.DeleteBlock(ctx, blockID)
}

func TestBuildDeletesRunAfterCreates(t *testing.T) {
	ctx := context.Background()
	mem := services.NewMemBlockStore()
	rootID, err := mem.EnsureRoot(ctx, "b1.p1")
	if err != nil {
		t.Fatalf("ensure root: %v", err)
	}
	staleID, err := mem.CreateBlock(ctx, "b1.p1", "", "stale", nil)
	if err != nil {
		t.Fatalf("seed stale block: %v", err)
	}
	store := &orderingStore{MemBlockStore: mem}

	lines := []domain.RecognizedLine{testLine("fresh", 0, 0, 10)}
	pass := steps.NewPassContext("b1.p1", rootID, nil, lines)
	actions := []steps.Action{
		{Kind: steps.ActionDelete, Block: &domain.Block{ID: staleID}, LineIndex: -1},
		{Kind: steps.ActionCreate, LineIndex: 0},
	}
	out, err := steps.Build(ctx, steps.BuildDeps{Log: testLogger(t), Store: store}, steps.BuildInput{Pass: pass, Actions: actions})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if out.Created != 1 || out.Deleted != 1 {
		t.Fatalf("got %d created %d deleted, want 1 and 1", out.Created, out.Deleted)
	}
	if len(store.ops) != 2 || store.ops[0] != "create" || store.ops[1] != "delete" {
		t.Fatalf("write order %v, want [create delete]", store.ops)
	}
}

func TestBuildWritesPropertiesOnCreate(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemBlockStore()
	rootID, err := store.EnsureRoot(ctx, "b1.p1")
	if err != nil {
		t.Fatalf("ensure root: %v", err)
	}

	lines := []domain.RecognizedLine{testLine("annotated", 0, 5, 15)}
	pass := steps.NewPassContext("b1.p1", rootID, nil, lines)
	pass.LineStrokes[0] = []string{"s1", "s2"}

	out, err := steps.Build(ctx, steps.BuildDeps{Log: testLogger(t), Store: store}, steps.BuildInput{
		Pass:    pass,
		Actions: []steps.Action{{Kind: steps.ActionCreate, LineIndex: 0}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	tree, err := store.GetBlockTree(ctx, "b1.p1")
	if err != nil {
		t.Fatalf("get tree: %v", err)
	}
	if len(tree) != 1 {
		t.Fatalf("tree has %d blocks, want 1", len(tree))
	}
	b := tree[0]
	if b.ID != out.LineBlocks[0] {
		t.Fatalf("tree block %q is not the created block %q", b.ID, out.LineBlocks[0])
	}
	if b.Props.Bounds == nil || b.Props.Bounds.MinY != 5 || b.Props.Bounds.MaxY != 15 {
		t.Fatalf("stored bounds %+v, want 5..15", b.Props.Bounds)
	}
	if b.Props.Canonical != "annotated" {
		t.Fatalf("stored canonical %q", b.Props.Canonical)
	}
	if len(b.Props.StrokeIDs) != 2 {
		t.Fatalf("stored stroke ids %v, want 2", b.Props.StrokeIDs)
	}
}
