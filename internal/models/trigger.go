package models

import (
	"context"
	"time"
)

// Trigger is a named, reusable job binding a refresh policy to a set
// of accounts and medias. Its status is mutated only by the scheduler.
type Trigger struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Status    TriggerStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// TriggerRun is the bookkeeping record of one trigger execution.
type TriggerRun struct {
	ID        int64      `json:"id"`
	TriggerID int64      `json:"trigger_id"`
	BatchID   string     `json:"batch_id"`
	Started   time.Time  `json:"started"`
	Finished  *time.Time `json:"finished,omitempty"`
	Success   bool       `json:"success"`
}

// TriggerRepository defines storage operations for triggers and their
// run records. MarkRunning is the cross-call mutual exclusion point
// and must be an atomic check-and-set in the store.
type TriggerRepository interface {
	// Create inserts an idle trigger, returning the existing one when
	// the name is already taken.
	Create(ctx context.Context, name string) (*Trigger, error)

	// GetByName retrieves a trigger, ErrNotFound when absent.
	GetByName(ctx context.Context, name string) (*Trigger, error)

	// List returns triggers ordered by name.
	List(ctx context.Context, limit int) ([]*Trigger, error)

	// BindAccount and BindMedia attach entities to the trigger's set.
	// Rebinding the same entity is a no-op.
	BindAccount(ctx context.Context, triggerID, accountID int64) error
	BindMedia(ctx context.Context, triggerID, mediaID int64) error

	// AccountIDs and MediaIDs return bound entity ids in bind order,
	// truncated to limit.
	AccountIDs(ctx context.Context, triggerID int64, limit int) ([]int64, error)
	MediaIDs(ctx context.Context, triggerID int64, limit int) ([]int64, error)

	// MarkRunning atomically transitions the trigger to RUNNING and
	// opens a run record. It fails with ErrAlreadyRunning when the
	// guard is already held.
	MarkRunning(ctx context.Context, triggerID int64, batchID string, started time.Time) (*TriggerRun, error)

	// CloseRun records the outcome on the run record and sets the
	// trigger's terminal status. The scheduler folds the status back
	// to IDLE via Release so a later run is never blocked.
	CloseRun(ctx context.Context, runID int64, finished time.Time, success bool) error

	// Release folds a terminal SUCCESS/FAILED status back to IDLE. It
	// must be a compare-and-set on the terminal states so a RUNNING
	// guard claimed by a newer run is never clobbered; releasing an
	// already reclaimed trigger is a no-op.
	Release(ctx context.Context, triggerID int64) error

	// SetStatus updates the trigger status without guard semantics.
	SetStatus(ctx context.Context, triggerID int64, status TriggerStatus) error

	// Runs returns run records newest-first.
	Runs(ctx context.Context, triggerID int64, limit int) ([]TriggerRun, error)

	// RecoverStuck demotes triggers left in RUNNING by a crashed
	// process back to IDLE, closing their open runs as failed. It
	// returns the number of recovered triggers.
	RecoverStuck(ctx context.Context, now time.Time) (int64, error)
}
