package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/axju/metrico/internal/models"
)

// AccountRepository is the SQL-backed implementation of
// models.AccountRepository.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `
	id, platform, identifier, status, created_at,
	info_name, info_bio, info_updated_at,
	stats_medias, stats_views, stats_followers, stats_subscriptions, stats_updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	var account models.Account
	var infoAt, statsAt sql.NullTime

	err := row.Scan(
		&account.ID, &account.Platform, &account.Identifier, &account.Status, &account.CreatedAt,
		&account.InfoName, &account.InfoBio, &infoAt,
		&account.StatsMedias, &account.StatsViews, &account.StatsFollowers, &account.StatsSubscriptions, &statsAt,
	)
	if err != nil {
		return nil, err
	}
	if infoAt.Valid {
		account.InfoUpdatedAt = &infoAt.Time
	}
	if statsAt.Valid {
		account.StatsUpdatedAt = &statsAt.Time
	}
	return &account, nil
}

// Resolve returns the account for (platform, identifier), creating it
// with initial snapshots from data when absent. Discovery never
// duplicates accounts: repeated calls return the first call's row.
func (r *AccountRepository) Resolve(ctx context.Context, platform string, data models.AccountData) (*models.Account, error) {
	if platform == "" || data.Identifier == "" {
		return nil, fmt.Errorf("platform and identifier are required: %w", models.ErrInvalidConfig)
	}

	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resolve: %w", err)
	}
	defer tx.Rollback()

	id, created, err := resolveAccountTx(ctx, tx, platform, data.Identifier, now)
	if err != nil {
		return nil, err
	}
	if created {
		// Initial snapshots and edges come from the discovery payload.
		if err := ingestAccountTx(ctx, tx, id, platform, data, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resolve: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID retrieves an account, ErrNotFound when absent.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return account, nil
}

// List returns accounts matching the query.
func (r *AccountRepository) List(ctx context.Context, q models.AccountQuery) ([]*models.Account, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT` + accountColumns + ` FROM accounts WHERE 1=1`
	args := []any{}
	if q.Platform != "" {
		args = append(args, q.Platform)
		query += fmt.Sprintf(" AND platform = $%d", len(args))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	// OrderBy is validated against a fixed column list above.
	direction := "DESC"
	if q.OrderAsc {
		direction = "ASC"
	}
	args = append(args, q.Limit, q.Offset)
	query += fmt.Sprintf(" ORDER BY %s %s LIMIT $%d OFFSET $%d", q.OrderBy, direction, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// Ingest appends one refresh payload inside a single transaction.
func (r *AccountRepository) Ingest(ctx context.Context, id int64, data models.AccountData) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest: %w", err)
	}
	defer tx.Rollback()

	var platform string
	err = tx.QueryRowContext(ctx, `SELECT platform FROM accounts WHERE id = $1`, id).Scan(&platform)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("account %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load account %d: %w", id, err)
	}

	if err := ingestAccountTx(ctx, tx, id, platform, data, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ingest for account %d: %w", id, err)
	}
	return nil
}

// SetStatus updates the lifecycle state.
func (r *AccountRepository) SetStatus(ctx context.Context, id int64, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("status %q: %w", status, models.ErrInvalidConfig)
	}
	result, err := r.db.ExecContext(ctx, `UPDATE accounts SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set account %d status: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("account %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// StatsHistory returns stats snapshots newest-first.
func (r *AccountRepository) StatsHistory(ctx context.Context, id int64, limit int) ([]models.AccountStats, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, timestamp, medias, views, followers, subscriptions
		FROM account_stats
		WHERE account_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("account %d stats history: %w", id, err)
	}
	defer rows.Close()

	var history []models.AccountStats
	for rows.Next() {
		var s models.AccountStats
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Timestamp, &s.Medias, &s.Views, &s.Followers, &s.Subscriptions); err != nil {
			return nil, err
		}
		history = append(history, s)
	}
	return history, rows.Err()
}

// InfoHistory returns info snapshots newest-first.
func (r *AccountRepository) InfoHistory(ctx context.Context, id int64, limit int) ([]models.AccountInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, timestamp, name, bio
		FROM account_info
		WHERE account_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("account %d info history: %w", id, err)
	}
	defer rows.Close()

	var history []models.AccountInfo
	for rows.Next() {
		var info models.AccountInfo
		if err := rows.Scan(&info.ID, &info.AccountID, &info.Timestamp, &info.Name, &info.Bio); err != nil {
			return nil, err
		}
		history = append(history, info)
	}
	return history, rows.Err()
}

// Subscriptions returns outgoing follow edges for an account.
func (r *AccountRepository) Subscriptions(ctx context.Context, id int64, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, subscribed_account_id, timestamp
		FROM account_subscriptions
		WHERE account_id = $1
		ORDER BY timestamp ASC, id ASC
		LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("account %d subscriptions: %w", id, err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var s models.Subscription
		if err := rows.Scan(&s.ID, &s.AccountID, &s.SubscribedAccountID, &s.Timestamp); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
