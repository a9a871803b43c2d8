// Package trigger implements named, reusable refresh jobs. A trigger
// binds a set of accounts and medias; running it fans one refresh per
// bound entity out through the hunt dispatcher, guarded so the same
// trigger never runs twice concurrently.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/axju/metrico/internal/hunt"
	"github.com/axju/metrico/internal/hunter"
	"github.com/axju/metrico/internal/metrics"
	"github.com/axju/metrico/internal/models"
)

// Result summarizes one trigger run: the persisted run record plus the
// per-kind dispatch outcomes.
type Result struct {
	Trigger  string       `json:"trigger"`
	BatchID  string       `json:"batch_id"`
	Success  bool         `json:"success"`
	Accounts hunt.Outcome `json:"accounts"`
	Medias   hunt.Outcome `json:"medias"`
}

// Scheduler runs triggers. The RUNNING guard lives in the store so the
// mutual exclusion holds across processes, not just goroutines.
type Scheduler struct {
	triggers  models.TriggerRepository
	service   *hunt.Service
	collector *metrics.Collector
	logger    *slog.Logger

	defaultLimit int
}

// NewScheduler wires a scheduler. defaultLimit bounds runs that do not
// pass their own limit; non-positive falls back to 100.
func NewScheduler(
	triggers models.TriggerRepository,
	service *hunt.Service,
	collector *metrics.Collector,
	logger *slog.Logger,
	defaultLimit int,
) *Scheduler {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &Scheduler{
		triggers:     triggers,
		service:      service,
		collector:    collector,
		logger:       logger,
		defaultLimit: defaultLimit,
	}
}

// Run executes the named trigger once. Concurrency overrides the
// dispatcher's pool size for this run when positive; zero keeps the
// configured default, negative fails with ErrInvalidConfig. The
// combined limit spans both kinds: bound accounts are refreshed first
// in bind order, and whatever headroom remains goes to bound medias.
// A second Run for the same trigger while one is in flight fails with
// ErrAlreadyRunning and leaves the running one untouched. The run
// counts as successful only when no task failed.
func (s *Scheduler) Run(ctx context.Context, name string, concurrency, limit int) (*Result, error) {
	if concurrency < 0 {
		return nil, fmt.Errorf("run concurrency %d: %w", concurrency, models.ErrInvalidConfig)
	}

	trigger, err := s.triggers.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}

	batchID := uuid.NewString()
	started := time.Now().UTC()

	run, err := s.triggers.MarkRunning(ctx, trigger.ID, batchID, started)
	if err != nil {
		return nil, err
	}

	s.logger.Info("trigger run started",
		slog.String("trigger", name),
		slog.String("batch_id", batchID),
		slog.Int("limit", limit))

	result, err := s.execute(ctx, trigger, batchID, concurrency, limit)
	success := err == nil && result.Success

	if closeErr := s.triggers.CloseRun(ctx, run.ID, time.Now().UTC(), success); closeErr != nil {
		s.logger.Error("could not close trigger run",
			slog.String("trigger", name),
			slog.Int64("run_id", run.ID),
			slog.String("error", closeErr.Error()))
		// The terminal status was never written, so the guard is still
		// ours; drop it directly so later runs are not blocked.
		if idleErr := s.triggers.SetStatus(ctx, trigger.ID, models.TriggerIdle); idleErr != nil {
			s.logger.Error("could not release trigger guard",
				slog.String("trigger", name),
				slog.String("error", idleErr.Error()))
		}
	} else if relErr := s.triggers.Release(ctx, trigger.ID); relErr != nil {
		// Release is a CAS on the terminal states: a guard already
		// claimed by a newer run stays untouched.
		s.logger.Error("could not release trigger guard",
			slog.String("trigger", name),
			slog.String("error", relErr.Error()))
	}
	s.collector.ObserveTriggerRun(name, success)

	if err != nil {
		return nil, err
	}

	s.logger.Info("trigger run finished",
		slog.String("trigger", name),
		slog.String("batch_id", batchID),
		slog.Bool("success", success),
		slog.Int("accounts", result.Accounts.Total),
		slog.Int("medias", result.Medias.Total))
	return result, nil
}

func (s *Scheduler) execute(ctx context.Context, trigger *models.Trigger, batchID string, concurrency, limit int) (*Result, error) {
	accountIDs, err := s.triggers.AccountIDs(ctx, trigger.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("trigger %q bound accounts: %w", trigger.Name, err)
	}

	var mediaIDs []int64
	if remaining := limit - len(accountIDs); remaining > 0 {
		mediaIDs, err = s.triggers.MediaIDs(ctx, trigger.ID, remaining)
		if err != nil {
			return nil, fmt.Errorf("trigger %q bound medias: %w", trigger.Name, err)
		}
	}

	result := &Result{Trigger: trigger.Name, BatchID: batchID}
	result.Accounts = s.service.UpdateAccounts(ctx, accountIDs, concurrency, hunter.DefaultAccountParams())
	result.Medias = s.service.UpdateMedias(ctx, mediaIDs, concurrency, hunter.DefaultMediaParams())
	result.Success = result.Accounts.Failed == 0 && result.Medias.Failed == 0
	return result, nil
}
