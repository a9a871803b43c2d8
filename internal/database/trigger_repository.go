package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/axju/metrico/internal/models"
)

// TriggerRepository is the SQL-backed implementation of
// models.TriggerRepository.
type TriggerRepository struct {
	db *sql.DB
}

func NewTriggerRepository(db *sql.DB) *TriggerRepository {
	return &TriggerRepository{db: db}
}

// Create inserts an idle trigger, returning the existing one when the
// name is already taken.
func (r *TriggerRepository) Create(ctx context.Context, name string) (*models.Trigger, error) {
	if name == "" {
		return nil, fmt.Errorf("trigger name is required: %w", models.ErrInvalidConfig)
	}

	now := time.Now().UTC()
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO triggers (name, status, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`, name, models.TriggerIdle, now).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("create trigger %q: %w", name, err)
	}

	return r.GetByName(ctx, name)
}

// GetByName retrieves a trigger, ErrNotFound when absent.
func (r *TriggerRepository) GetByName(ctx context.Context, name string) (*models.Trigger, error) {
	var t models.Trigger
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, status, created_at FROM triggers WHERE name = $1
	`, name).Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trigger %q: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get trigger %q: %w", name, err)
	}
	return &t, nil
}

// List returns triggers ordered by name.
func (r *TriggerRepository) List(ctx context.Context, limit int) ([]*models.Trigger, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, status, created_at FROM triggers ORDER BY name ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	var triggers []*models.Trigger
	for rows.Next() {
		var t models.Trigger
		if err := rows.Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		triggers = append(triggers, &t)
	}
	return triggers, rows.Err()
}

// BindAccount attaches an account to the trigger's set; rebinding is a
// no-op.
func (r *TriggerRepository) BindAccount(ctx context.Context, triggerID, accountID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trigger_accounts (trigger_id, account_id, timestamp)
		VALUES ($1, $2, $3)
		ON CONFLICT (trigger_id, account_id) DO NOTHING
	`, triggerID, accountID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("bind account %d to trigger %d: %w", accountID, triggerID, err)
	}
	return nil
}

// BindMedia attaches a media to the trigger's set; rebinding is a
// no-op.
func (r *TriggerRepository) BindMedia(ctx context.Context, triggerID, mediaID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trigger_medias (trigger_id, media_id, timestamp)
		VALUES ($1, $2, $3)
		ON CONFLICT (trigger_id, media_id) DO NOTHING
	`, triggerID, mediaID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("bind media %d to trigger %d: %w", mediaID, triggerID, err)
	}
	return nil
}

// AccountIDs returns bound account ids in bind order, truncated to
// limit.
func (r *TriggerRepository) AccountIDs(ctx context.Context, triggerID int64, limit int) ([]int64, error) {
	return r.boundIDs(ctx, "trigger_accounts", "account_id", triggerID, limit)
}

// MediaIDs returns bound media ids in bind order, truncated to limit.
func (r *TriggerRepository) MediaIDs(ctx context.Context, triggerID int64, limit int) ([]int64, error) {
	return r.boundIDs(ctx, "trigger_medias", "media_id", triggerID, limit)
}

func (r *TriggerRepository) boundIDs(ctx context.Context, table, column string, triggerID int64, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	// table and column come from the two callers above, never input.
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE trigger_id = $1 ORDER BY timestamp ASC, id ASC LIMIT $2
	`, column, table)

	rows, err := r.db.QueryContext(ctx, query, triggerID, limit)
	if err != nil {
		return nil, fmt.Errorf("trigger %d bound ids from %s: %w", triggerID, table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkRunning atomically claims the RUNNING guard and opens a run
// record. The claim is a compare-and-set on status so two concurrent
// runs cannot both pass; the loser gets ErrAlreadyRunning.
func (r *TriggerRepository) MarkRunning(ctx context.Context, triggerID int64, batchID string, started time.Time) (*models.TriggerRun, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin run claim: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE triggers SET status = $2 WHERE id = $1 AND status <> $2
	`, triggerID, models.TriggerRunning)
	if err != nil {
		return nil, fmt.Errorf("claim trigger %d: %w", triggerID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Either unknown or already claimed; look to tell them apart.
		var status models.TriggerStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM triggers WHERE id = $1`, triggerID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("trigger %d: %w", triggerID, models.ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("trigger %d: %w", triggerID, models.ErrAlreadyRunning)
	}

	run := models.TriggerRun{TriggerID: triggerID, BatchID: batchID, Started: started}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO trigger_runs (trigger_id, batch_id, started, success)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id
	`, triggerID, batchID, started).Scan(&run.ID)
	if err != nil {
		return nil, fmt.Errorf("open run for trigger %d: %w", triggerID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit run claim: %w", err)
	}
	return &run, nil
}

// CloseRun records the outcome on the run record and sets the
// trigger's terminal status.
func (r *TriggerRepository) CloseRun(ctx context.Context, runID int64, finished time.Time, success bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run close: %w", err)
	}
	defer tx.Rollback()

	var triggerID int64
	err = tx.QueryRowContext(ctx, `
		UPDATE trigger_runs SET finished = $2, success = $3 WHERE id = $1
		RETURNING trigger_id
	`, runID, finished, success).Scan(&triggerID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("trigger run %d: %w", runID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("close run %d: %w", runID, err)
	}

	status := models.TriggerSuccess
	if !success {
		status = models.TriggerFailed
	}
	if _, err := tx.ExecContext(ctx, `UPDATE triggers SET status = $2 WHERE id = $1`, triggerID, status); err != nil {
		return fmt.Errorf("set trigger %d terminal status: %w", triggerID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run close: %w", err)
	}
	return nil
}

// Release folds a terminal status back to IDLE. The update matches
// only SUCCESS and FAILED, so a RUNNING guard already claimed by a
// newer run stays untouched and releasing twice is a no-op.
func (r *TriggerRepository) Release(ctx context.Context, triggerID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE triggers SET status = $2 WHERE id = $1 AND status IN ($3, $4)
	`, triggerID, models.TriggerIdle, models.TriggerSuccess, models.TriggerFailed)
	if err != nil {
		return fmt.Errorf("release trigger %d: %w", triggerID, err)
	}
	return nil
}

// SetStatus updates the trigger status without guard semantics.
func (r *TriggerRepository) SetStatus(ctx context.Context, triggerID int64, status models.TriggerStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE triggers SET status = $2 WHERE id = $1`, triggerID, status)
	if err != nil {
		return fmt.Errorf("set trigger %d status: %w", triggerID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("trigger %d: %w", triggerID, models.ErrNotFound)
	}
	return nil
}

// Runs returns run records newest-first.
func (r *TriggerRepository) Runs(ctx context.Context, triggerID int64, limit int) ([]models.TriggerRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trigger_id, batch_id, started, finished, success
		FROM trigger_runs
		WHERE trigger_id = $1
		ORDER BY started DESC, id DESC
		LIMIT $2
	`, triggerID, limit)
	if err != nil {
		return nil, fmt.Errorf("trigger %d runs: %w", triggerID, err)
	}
	defer rows.Close()

	var runs []models.TriggerRun
	for rows.Next() {
		var run models.TriggerRun
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.TriggerID, &run.BatchID, &run.Started, &finished, &run.Success); err != nil {
			return nil, err
		}
		if finished.Valid {
			run.Finished = &finished.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecoverStuck demotes triggers left in RUNNING by a crashed process
// back to IDLE and closes their open runs as failed. Called once at
// startup, before the scheduler accepts work.
func (r *TriggerRepository) RecoverStuck(ctx context.Context, now time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin recovery: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE trigger_runs SET finished = $1, success = FALSE
		WHERE finished IS NULL
		  AND trigger_id IN (SELECT id FROM triggers WHERE status = $2)
	`, now, models.TriggerRunning); err != nil {
		return 0, fmt.Errorf("close stuck runs: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE triggers SET status = $2 WHERE status = $1
	`, models.TriggerRunning, models.TriggerIdle)
	if err != nil {
		return 0, fmt.Errorf("recover stuck triggers: %w", err)
	}
	recovered, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit recovery: %w", err)
	}
	return recovered, nil
}
