package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"

	"github.com/kart-io/revdiff/internal/diff/metrics"
	"github.com/kart-io/revdiff/internal/diff/store"
)

// regenReleaseTimeout bounds how long Stop waits for in-flight jobs.
const regenReleaseTimeout = 30 * time.Second

// Regenerator recomputes the latest-pair comparison for a document in the
// background, typically after a new version upload. Jobs run on a bounded
// worker pool; failures are logged and never reach the caller that enqueued
// the job.
type Regenerator struct {
	service *ComparisonService
	factory store.Factory
	workers int
	metrics *metrics.DiffMetrics

	mu   sync.Mutex
	pool *ants.Pool
}

// NewRegenerator creates a Regenerator with the given worker count.
func NewRegenerator(service *ComparisonService, factory store.Factory, workers int) *Regenerator {
	return &Regenerator{
		service: service,
		factory: factory,
		workers: workers,
		metrics: metrics.GetDiffMetrics(),
	}
}

// Name implements server.Runnable.
func (r *Regenerator) Name() string {
	return "regenerator"
}

// Start implements server.Runnable.
func (r *Regenerator) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pool != nil {
		return fmt.Errorf("regenerator already started")
	}

	pool, err := ants.NewPool(r.workers,
		ants.WithNonblocking(true),
		ants.WithMaxBlockingTasks(0),
		ants.WithPanicHandler(func(p interface{}) {
			logger.Errorw("Regeneration worker panic recovered", "panic", p)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create regeneration pool: %w", err)
	}
	r.pool = pool

	logger.Infow("Regeneration worker pool started", "workers", r.workers)
	return nil
}

// Stop implements server.Runnable. Waits for in-flight jobs up to a bound.
func (r *Regenerator) Stop(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pool == nil {
		return nil
	}
	err := r.pool.ReleaseTimeout(regenReleaseTimeout)
	r.pool = nil
	if err != nil && !stderrors.Is(err, ants.ErrPoolClosed) {
		return fmt.Errorf("failed to release regeneration pool: %w", err)
	}
	return nil
}

// Enqueue schedules a latest-pair regeneration for the document. Returns an
// error only when the job cannot be queued (pool not started or saturated);
// the job's own outcome is logged, not returned.
func (r *Regenerator) Enqueue(documentID, requestedModel string) error {
	r.mu.Lock()
	pool := r.pool
	r.mu.Unlock()

	if pool == nil {
		return fmt.Errorf("regenerator not started")
	}

	err := pool.Submit(func() {
		r.run(documentID, requestedModel)
	})
	if err != nil {
		if stderrors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("regeneration queue full for document %s: %w", documentID, err)
		}
		return err
	}
	return nil
}

// run compares the document's two most recent versions. Anonymous: background
// work is not attributed to a user and writes no usage events.
func (r *Regenerator) run(documentID, requestedModel string) {
	ctx := context.Background()

	previous, latest, err := r.factory.Versions().LatestPair(ctx, documentID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			logger.Infow("Skipping regeneration, document has fewer than two versions", "document", documentID)
			return
		}
		r.metrics.RecordRegenJob(err)
		logger.Warnw("Regeneration version lookup failed", "document", documentID, "err", err)
		return
	}

	cmp, err := r.service.Compare(ctx, CompareRequest{
		FromVersionID: previous.ID,
		ToVersionID:   latest.ID,
		Model:         requestedModel,
	})
	r.metrics.RecordRegenJob(err)
	if err != nil {
		logger.Warnw("Regeneration failed", "document", documentID,
			"from", previous.ID, "to", latest.ID, "err", err)
		return
	}

	logger.Infow("Regeneration completed", "document", documentID,
		"comparison", cmp.ID, "significance", cmp.Significance.String())
}
