package models

import (
	"context"
	"time"
)

// Account is a tracked social-media account. The row carries the
// latest denormalized info/stats values; the full history lives in
// the append-only AccountInfo and AccountStats tables.
type Account struct {
	ID         int64     `json:"id"`
	Platform   string    `json:"platform"`
	Identifier string    `json:"identifier"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`

	InfoName      string     `json:"info_name,omitempty"`
	InfoBio       string     `json:"info_bio,omitempty"`
	InfoUpdatedAt *time.Time `json:"info_updated_at,omitempty"`

	StatsMedias        int64      `json:"stats_medias"`
	StatsViews         int64      `json:"stats_views"`
	StatsFollowers     int64      `json:"stats_followers"`
	StatsSubscriptions int64      `json:"stats_subscriptions"`
	StatsUpdatedAt     *time.Time `json:"stats_updated_at,omitempty"`
}

// AccountInfo is one descriptive snapshot of an account. A new row is
// appended only when a tracked field differs from the latest snapshot.
type AccountInfo struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio"`
}

// AccountStats is one numeric snapshot of an account. Every successful
// refresh appends exactly one row.
type AccountStats struct {
	ID            int64     `json:"id"`
	AccountID     int64     `json:"account_id"`
	Timestamp     time.Time `json:"timestamp"`
	Medias        int64     `json:"medias"`
	Views         int64     `json:"views"`
	Followers     int64     `json:"followers"`
	Subscriptions int64     `json:"subscriptions"`
}

// Subscription is a directed account-follows-account edge.
type Subscription struct {
	ID                  int64     `json:"id"`
	AccountID           int64     `json:"account_id"`
	SubscribedAccountID int64     `json:"subscribed_account_id"`
	Timestamp           time.Time `json:"timestamp"`
}

// AccountRepository defines storage operations for accounts and their
// snapshot history.
type AccountRepository interface {
	// Resolve returns the account for (platform, identifier), creating
	// it with initial snapshots from data when absent. Repeated calls
	// with the same key always return the same account.
	Resolve(ctx context.Context, platform string, data AccountData) (*Account, error)

	// GetByID retrieves an account, ErrNotFound when absent.
	GetByID(ctx context.Context, id int64) (*Account, error)

	// List returns accounts matching the query.
	List(ctx context.Context, q AccountQuery) ([]*Account, error)

	// Ingest appends snapshots and edges from one refresh in a single
	// transaction: a stats row whenever data.Stats is set, an info row
	// only when data.Info differs from the latest stored one.
	Ingest(ctx context.Context, id int64, data AccountData) error

	// SetStatus updates the lifecycle state.
	SetStatus(ctx context.Context, id int64, status Status) error

	// StatsHistory returns stats snapshots newest-first.
	StatsHistory(ctx context.Context, id int64, limit int) ([]AccountStats, error)

	// InfoHistory returns info snapshots newest-first.
	InfoHistory(ctx context.Context, id int64, limit int) ([]AccountInfo, error)

	// Subscriptions returns outgoing edges for an account.
	Subscriptions(ctx context.Context, id int64, limit int) ([]Subscription, error)
}
