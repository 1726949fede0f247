package transcript

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/inkbridge-backend/internal/domain"
	"github.com/yungbote/inkbridge-backend/internal/logger"
	"github.com/yungbote/inkbridge-backend/internal/modules/transcript/steps"
	"github.com/yungbote/inkbridge-backend/internal/repos"
	"github.com/yungbote/inkbridge-backend/internal/services"
)

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Store      services.BlockStore
	Recognizer services.Recognizer

	Ink   repos.InkRecordRepo
	Pages repos.PageSyncRepo

	Tuning Tuning
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type RunPassInput struct {
	PageKey string
	// CapturedStrokes is the freshly transferred device batch, possibly
	// overlapping strokes already persisted; duplicates are dropped by id.
	CapturedStrokes []domain.Stroke
	// EditedLines are editor-side lines for this page; lines carrying
	// multiple SourceLineIDs trigger merge handling before reconciliation.
	EditedLines []domain.RecognizedLine
}

type RunPassOutput struct {
	StrokeCount   int
	MergesApplied int

	Created   int
	Updated   int
	Skipped   int
	Preserved int
	Deleted   int

	LineBlocks map[int]string
}

// RunPass executes one full reconciliation pass for a page: load persisted
// ink, fold in the captured batch, apply pending merges (and persist them,
// so re-homed strokes never show up orphaned), recognize, match, reconcile,
// build, write stroke ownership back, and re-persist the ink.
//
// A failed pass leaves the block tree exactly as far as the builder got;
// re-running the pass is safe because unchanged blocks reconcile to
// SKIP/PRESERVE.
func (u Usecases) RunPass(ctx context.Context, in RunPassInput) (RunPassOutput, error) {
	log := u.deps.Log.With("usecase", "RunPass", "page_key", in.PageKey)
	out := RunPassOutput{LineBlocks: map[int]string{}}

	strokeStore, err := u.loadStrokeStore(ctx, in.PageKey)
	if err != nil {
		return out, err
	}
	added := strokeStore.AddBatch(in.CapturedStrokes)
	if added > 0 {
		log.Debug("Folded in captured batch", "added", added)
	}

	merges := steps.DetectMerges(in.EditedLines)
	for _, m := range merges {
		moved, err := steps.ApplyMerge(ctx, steps.ApplyMergeDeps{
			Log:     u.deps.Log,
			Store:   u.deps.Store,
			Strokes: strokeStore,
		}, m)
		if err != nil {
			return out, fmt.Errorf("apply merge into %s: %w", m.SurvivorID, err)
		}
		out.MergesApplied++
		log.Info("Merged blocks", "survivor_id", m.SurvivorID, "strokes_moved", moved)
	}
	// New strokes and re-homed merge strokes hit storage before recognition
	// runs, so a recognizer failure never loses captured ink.
	if added > 0 || out.MergesApplied > 0 {
		if err := u.persistInk(ctx, in.PageKey, strokeStore.All()); err != nil {
			return out, err
		}
	}

	strokes := strokeStore.All()
	out.StrokeCount = len(strokes)

	var lines []domain.RecognizedLine
	if len(strokes) > 0 {
		lines, err = u.deps.Recognizer.Recognize(ctx, strokes)
		if err != nil {
			return out, fmt.Errorf("recognize page %s: %w", in.PageKey, err)
		}
	}

	rootID, err := u.deps.Store.EnsureRoot(ctx, in.PageKey)
	if err != nil {
		return out, err
	}
	existing, err := u.deps.Store.GetBlockTree(ctx, in.PageKey)
	if err != nil {
		return out, err
	}

	pass := steps.NewPassContext(in.PageKey, rootID, strokes, lines)
	steps.MatchStrokes(pass, steps.MatchInput{Tolerance: u.deps.Tuning.MatchTolerance})

	actions := steps.Reconcile(pass, existing)

	buildOut, buildErr := steps.Build(ctx, steps.BuildDeps{
		Log:   u.deps.Log,
		Store: u.deps.Store,
	}, steps.BuildInput{Pass: pass, Actions: actions})

	out.Created = buildOut.Created
	out.Updated = buildOut.Updated
	out.Skipped = buildOut.Skipped
	out.Preserved = buildOut.Preserved
	out.Deleted = buildOut.Deleted
	out.LineBlocks = buildOut.LineBlocks

	// Ownership writeback covers everything the builder resolved, even on
	// a partial failure: blocks that made it into the store keep their
	// strokes pointed at them.
	for lineIndex, blockID := range buildOut.LineBlocks {
		for _, strokeID := range pass.StrokesForLine(lineIndex) {
			strokeStore.SetOwner(strokeID, blockID)
		}
	}
	if err := u.persistInk(ctx, in.PageKey, strokeStore.All()); err != nil {
		if buildErr != nil {
			log.Error("Ink persistence failed after build failure", "error", err, "build_error", buildErr)
			return out, buildErr
		}
		return out, err
	}

	if buildErr != nil {
		return out, fmt.Errorf("build page %s: %w", in.PageKey, buildErr)
	}

	if out.Preserved > 0 {
		log.Info("Preserved blocks outside this pass's ink", "preserved", out.Preserved)
	}
	log.Info("Pass complete",
		"strokes", out.StrokeCount,
		"created", out.Created,
		"updated", out.Updated,
		"skipped", out.Skipped,
		"preserved", out.Preserved,
		"deleted", out.Deleted,
	)
	return out, nil
}

// IngestStrokes folds a device transfer into per-page persisted ink and
// marks the touched pages dirty for the next worker sweep. The transfer may
// span pages and may replay strokes that are already persisted.
func (u Usecases) IngestStrokes(ctx context.Context, strokes []domain.Stroke) error {
	log := u.deps.Log.With("usecase", "IngestStrokes")

	byPage := map[string][]domain.Stroke{}
	var order []string
	for _, s := range strokes {
		key := s.PageRef().Key()
		if _, ok := byPage[key]; !ok {
			order = append(order, key)
		}
		byPage[key] = append(byPage[key], s)
	}

	for _, pageKey := range order {
		strokeStore, err := u.loadStrokeStore(ctx, pageKey)
		if err != nil {
			return err
		}
		added := strokeStore.AddBatch(byPage[pageKey])
		if added == 0 {
			log.Debug("Transfer replayed only known strokes", "page_key", pageKey)
			continue
		}
		if err := u.persistInk(ctx, pageKey, strokeStore.All()); err != nil {
			return err
		}
		if err := u.deps.Pages.MarkDirty(ctx, nil, pageKey); err != nil {
			return fmt.Errorf("mark page %s dirty: %w", pageKey, err)
		}
		log.Info("Ingested strokes", "page_key", pageKey, "added", added, "total", strokeStore.Len())
	}
	return nil
}

// LoadPageStrokes returns a page's persisted strokes with block ownership
// restored.
func (u Usecases) LoadPageStrokes(ctx context.Context, pageKey string) ([]domain.Stroke, error) {
	strokeStore, err := u.loadStrokeStore(ctx, pageKey)
	if err != nil {
		return nil, err
	}
	return strokeStore.All(), nil
}

func (u Usecases) loadStrokeStore(ctx context.Context, pageKey string) (*services.StrokeStore, error) {
	rows, err := u.deps.Ink.GetByPageKey(ctx, nil, pageKey)
	if err != nil {
		return nil, fmt.Errorf("load ink records for %s: %w", pageKey, err)
	}
	records := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		records = append(records, json.RawMessage(row.Payload))
	}
	strokes, err := steps.DecodeInk(records)
	if err != nil {
		return nil, fmt.Errorf("decode ink for %s: %w", pageKey, err)
	}
	strokeStore := services.NewStrokeStore(u.deps.Log)
	strokeStore.AddBatch(strokes)
	return strokeStore, nil
}

func (u Usecases) persistInk(ctx context.Context, pageKey string, strokes []domain.Stroke) error {
	records, err := steps.EncodeInk(strokes, u.deps.Tuning.ChunkCapacity)
	if err != nil {
		return fmt.Errorf("encode ink for %s: %w", pageKey, err)
	}
	payloads := make([]datatypes.JSON, 0, len(records))
	for _, raw := range records {
		payloads = append(payloads, datatypes.JSON(raw))
	}
	if err := u.deps.Ink.ReplaceForPage(ctx, nil, pageKey, payloads); err != nil {
		return fmt.Errorf("persist ink for %s: %w", pageKey, err)
	}
	return nil
}
