package transcript

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/inkbridge-backend/internal/logger"
	"github.com/yungbote/inkbridge-backend/internal/repos"
)

// Lease is the per-page mutual exclusion the runner needs. A distributed
// implementation backs multi-worker deploys; NoopLease is for single-worker
// deploys and tests.
type Lease interface {
	Acquire(ctx context.Context, pageKey string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, pageKey string) error
}

type noopLease struct{}

func NewNoopLease() Lease { return noopLease{} }

func (noopLease) Acquire(ctx context.Context, pageKey string, ttl time.Duration) (bool, error) {
	return true, nil
}
func (noopLease) Release(ctx context.Context, pageKey string) error { return nil }

type RunnerDeps struct {
	Log      *logger.Logger
	Pages    repos.PageSyncRepo
	Lease    Lease
	Usecases Usecases

	Concurrency int
	LeaseTTL    time.Duration
}

// Runner drains dirty pages: each sweep picks up pages marked dirty by
// ingestion and runs one reconciliation pass per page. Pages run
// concurrently; within a page everything stays sequential.
type Runner struct {
	deps RunnerDeps
}

func NewRunner(deps RunnerDeps) (*Runner, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.Pages == nil {
		return nil, fmt.Errorf("page sync repo required")
	}
	if deps.Lease == nil {
		deps.Lease = NewNoopLease()
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = 4
	}
	if deps.LeaseTTL <= 0 {
		deps.LeaseTTL = 2 * time.Minute
	}
	deps.Log = deps.Log.With("component", "Runner")
	return &Runner{deps: deps}, nil
}

// RunOnce processes one batch of dirty pages and returns how many pages it
// completed. A page whose pass fails is marked failed and does not abort
// the sweep.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	dirty, err := r.deps.Pages.GetDirty(ctx, nil, 0)
	if err != nil {
		return 0, fmt.Errorf("list dirty pages: %w", err)
	}
	if len(dirty) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.deps.Concurrency)

	synced := make(chan struct{}, len(dirty))
	for _, page := range dirty {
		pageKey := page.PageKey
		g.Go(func() error {
			processed, err := r.runPage(gctx, pageKey)
			if err != nil {
				r.deps.Log.Error("Pass failed", "page_key", pageKey, "error", err)
				if markErr := r.deps.Pages.MarkFailed(gctx, nil, pageKey, err); markErr != nil {
					r.deps.Log.Error("Could not mark page failed", "page_key", pageKey, "error", markErr)
				}
				return nil
			}
			if processed {
				synced <- struct{}{}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return len(synced), err
	}
	return len(synced), nil
}

func (r *Runner) runPage(ctx context.Context, pageKey string) (bool, error) {
	ok, err := r.deps.Lease.Acquire(ctx, pageKey, r.deps.LeaseTTL)
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		r.deps.Log.Debug("Page leased elsewhere, skipping", "page_key", pageKey)
		return false, nil
	}
	defer func() {
		if err := r.deps.Lease.Release(ctx, pageKey); err != nil {
			r.deps.Log.Warn("Lease release failed", "page_key", pageKey, "error", err)
		}
	}()

	out, err := r.deps.Usecases.RunPass(ctx, RunPassInput{PageKey: pageKey})
	if err != nil {
		return false, err
	}
	if err := r.deps.Pages.MarkSynced(ctx, nil, pageKey, out.StrokeCount); err != nil {
		return false, fmt.Errorf("mark page synced: %w", err)
	}
	return true, nil
}

// Run sweeps on an interval until the context is cancelled.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.deps.Log.Info("Runner started", "interval", interval, "concurrency", r.deps.Concurrency)
	for {
		if n, err := r.RunOnce(ctx); err != nil {
			r.deps.Log.Error("Sweep failed", "error", err)
		} else if n > 0 {
			r.deps.Log.Info("Sweep complete", "pages_synced", n)
		}
		select {
		case <-ctx.Done():
			r.deps.Log.Info("Runner stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
