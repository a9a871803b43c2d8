package models

import (
	"context"
	"time"
)

// Media is a tracked piece of content owned by an account. Like
// Account it carries the latest denormalized info/stats values next
// to the append-only history tables.
type Media struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	Identifier string    `json:"identifier"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`

	InfoTitle     string     `json:"info_title,omitempty"`
	InfoCaption   string     `json:"info_caption,omitempty"`
	InfoUpdatedAt *time.Time `json:"info_updated_at,omitempty"`

	StatsComments  int64      `json:"stats_comments"`
	StatsLikes     int64      `json:"stats_likes"`
	StatsViews     int64      `json:"stats_views"`
	StatsUpdatedAt *time.Time `json:"stats_updated_at,omitempty"`
}

// MediaInfo is one descriptive snapshot of a media.
type MediaInfo struct {
	ID              int64     `json:"id"`
	MediaID         int64     `json:"media_id"`
	Timestamp       time.Time `json:"timestamp"`
	Title           string    `json:"title"`
	Caption         string    `json:"caption"`
	DisableComments bool      `json:"disable_comments"`
}

// MediaStats is one numeric snapshot of a media.
type MediaStats struct {
	ID        int64     `json:"id"`
	MediaID   int64     `json:"media_id"`
	Timestamp time.Time `json:"timestamp"`
	Comments  int64     `json:"comments"`
	Likes     int64     `json:"likes"`
	Views     int64     `json:"views"`
}

// MediaComment is an account-authored comment on a media. Comments are
// append-only edges deduplicated by (media_id, identifier).
type MediaComment struct {
	ID         int64     `json:"id"`
	MediaID    int64     `json:"media_id"`
	AccountID  int64     `json:"account_id"`
	Identifier string    `json:"identifier"`
	Text       string    `json:"text"`
	Likes      int64     `json:"likes"`
	CreatedAt  time.Time `json:"created_at"`
}

// MediaRepository defines storage operations for medias and their
// snapshot history.
type MediaRepository interface {
	// GetByID retrieves a media, ErrNotFound when absent.
	GetByID(ctx context.Context, id int64) (*Media, error)

	// List returns medias matching the query.
	List(ctx context.Context, q MediaQuery) ([]*Media, error)

	// Ingest appends snapshots and comment edges from one refresh in a
	// single transaction, with the same info-dedup and stats-always
	// rules as account ingest.
	Ingest(ctx context.Context, id int64, data MediaData) error

	// SetStatus updates the lifecycle state.
	SetStatus(ctx context.Context, id int64, status Status) error

	// StatsHistory returns stats snapshots newest-first.
	StatsHistory(ctx context.Context, id int64, limit int) ([]MediaStats, error)

	// InfoHistory returns info snapshots newest-first.
	InfoHistory(ctx context.Context, id int64, limit int) ([]MediaInfo, error)

	// Comments returns comment edges for a media, newest-first.
	Comments(ctx context.Context, id int64, limit int) ([]MediaComment, error)
}
