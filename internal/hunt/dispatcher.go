// Package hunt runs the refresh engine: a bounded-concurrency
// dispatcher fanning entity refreshes out to per-platform hunters, and
// the service that ties hunters to the snapshot store.
package hunt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/axju/metrico/internal/models"
)

// Task refreshes a single entity. The returned error marks the task
// failed without affecting any other task in the batch.
type Task func(ctx context.Context, id int64) error

// Failure records one failed task inside an outcome.
type Failure struct {
	ID  int64  `json:"id"`
	Err string `json:"error"`
}

// Outcome summarizes one dispatched batch.
type Outcome struct {
	BatchID   string    `json:"batch_id"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`

	// Failures holds per-entity errors, capped by the dispatcher's
	// maxFailures so a large broken batch cannot balloon the outcome.
	Failures []Failure `json:"failures,omitempty"`
}

// Dispatcher fans tasks out over a bounded worker pool. Worker slots
// are a buffered channel acting as a semaphore; each submission takes
// a slot, each completion releases it.
type Dispatcher struct {
	concurrency int
	maxFailures int
	logger      *slog.Logger
}

// NewDispatcher validates the pool bounds. Concurrency must be
// positive; maxFailures <= 0 disables the failure detail cap.
func NewDispatcher(concurrency, maxFailures int, logger *slog.Logger) (*Dispatcher, error) {
	if concurrency <= 0 {
		return nil, fmt.Errorf("dispatcher concurrency %d: %w", concurrency, models.ErrInvalidConfig)
	}
	return &Dispatcher{
		concurrency: concurrency,
		maxFailures: maxFailures,
		logger:      logger,
	}, nil
}

// Dispatch runs task for every id and waits for all of them. A
// positive concurrency overrides the pool size for this batch only;
// anything else keeps the configured default. Task failures are
// isolated: they are counted and recorded, never propagated to
// sibling tasks. When ctx is cancelled mid-batch the remaining ids
// are counted as skipped while in-flight tasks drain.
func (d *Dispatcher) Dispatch(ctx context.Context, ids []int64, concurrency int, task Task) Outcome {
	workers := d.concurrency
	if concurrency > 0 {
		workers = concurrency
	}

	outcome := Outcome{
		BatchID: uuid.NewString(),
		Total:   len(ids),
		Started: time.Now().UTC(),
	}
	if len(ids) == 0 {
		outcome.Finished = outcome.Started
		return outcome
	}

	d.logger.Info("dispatching batch",
		slog.String("batch_id", outcome.BatchID),
		slog.Int("total", outcome.Total),
		slog.Int("concurrency", workers))

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, workers)
	)

	for i, id := range ids {
		if ctx.Err() == nil {
			select {
			case <-ctx.Done():
			case semaphore <- struct{}{}:
			}
		}
		if ctx.Err() != nil {
			outcome.Skipped = len(ids) - i
			break
		}

		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			defer func() { <-semaphore }()

			err := task(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				outcome.Succeeded++
				return
			}
			outcome.Failed++
			if d.maxFailures <= 0 || len(outcome.Failures) < d.maxFailures {
				outcome.Failures = append(outcome.Failures, Failure{ID: id, Err: err.Error()})
			}
			d.logger.Warn("task failed",
				slog.String("batch_id", outcome.BatchID),
				slog.Int64("id", id),
				slog.String("error", err.Error()))
		}(id)
	}

	wg.Wait()
	outcome.Finished = time.Now().UTC()

	d.logger.Info("batch finished",
		slog.String("batch_id", outcome.BatchID),
		slog.Int("succeeded", outcome.Succeeded),
		slog.Int("failed", outcome.Failed),
		slog.Int("skipped", outcome.Skipped),
		slog.Duration("elapsed", outcome.Finished.Sub(outcome.Started)))

	return outcome
}
