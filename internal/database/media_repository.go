package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/axju/metrico/internal/models"
)

// MediaRepository is the SQL-backed implementation of
// models.MediaRepository.
type MediaRepository struct {
	db *sql.DB
}

func NewMediaRepository(db *sql.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

const mediaColumns = `
	id, account_id, identifier, status, created_at,
	info_title, info_caption, info_updated_at,
	stats_comments, stats_likes, stats_views, stats_updated_at`

func scanMedia(row interface{ Scan(...any) error }) (*models.Media, error) {
	var media models.Media
	var infoAt, statsAt sql.NullTime

	err := row.Scan(
		&media.ID, &media.AccountID, &media.Identifier, &media.Status, &media.CreatedAt,
		&media.InfoTitle, &media.InfoCaption, &infoAt,
		&media.StatsComments, &media.StatsLikes, &media.StatsViews, &statsAt,
	)
	if err != nil {
		return nil, err
	}
	if infoAt.Valid {
		media.InfoUpdatedAt = &infoAt.Time
	}
	if statsAt.Valid {
		media.StatsUpdatedAt = &statsAt.Time
	}
	return &media, nil
}

// GetByID retrieves a media, ErrNotFound when absent.
func (r *MediaRepository) GetByID(ctx context.Context, id int64) (*models.Media, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+mediaColumns+` FROM medias WHERE id = $1`, id)
	media, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("media %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get media %d: %w", id, err)
	}
	return media, nil
}

// List returns medias matching the query.
func (r *MediaRepository) List(ctx context.Context, q models.MediaQuery) ([]*models.Media, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT` + mediaColumns + ` FROM medias WHERE 1=1`
	args := []any{}
	if q.AccountID != 0 {
		args = append(args, q.AccountID)
		query += fmt.Sprintf(" AND account_id = $%d", len(args))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	direction := "DESC"
	if q.OrderAsc {
		direction = "ASC"
	}
	args = append(args, q.Limit, q.Offset)
	query += fmt.Sprintf(" ORDER BY %s %s LIMIT $%d OFFSET $%d", q.OrderBy, direction, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list medias: %w", err)
	}
	defer rows.Close()

	var medias []*models.Media
	for rows.Next() {
		media, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		medias = append(medias, media)
	}
	return medias, rows.Err()
}

// Ingest appends one refresh payload inside a single transaction.
func (r *MediaRepository) Ingest(ctx context.Context, id int64, data models.MediaData) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest: %w", err)
	}
	defer tx.Rollback()

	// The owning account's platform scopes author resolution for
	// comment edges.
	var platform string
	err = tx.QueryRowContext(ctx, `
		SELECT a.platform FROM medias m JOIN accounts a ON a.id = m.account_id WHERE m.id = $1
	`, id).Scan(&platform)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("media %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load media %d: %w", id, err)
	}

	if err := ingestMediaTx(ctx, tx, id, platform, data, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ingest for media %d: %w", id, err)
	}
	return nil
}

// SetStatus updates the lifecycle state.
func (r *MediaRepository) SetStatus(ctx context.Context, id int64, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("status %q: %w", status, models.ErrInvalidConfig)
	}
	result, err := r.db.ExecContext(ctx, `UPDATE medias SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set media %d status: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("media %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// StatsHistory returns stats snapshots newest-first.
func (r *MediaRepository) StatsHistory(ctx context.Context, id int64, limit int) ([]models.MediaStats, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, media_id, timestamp, comments, likes, views
		FROM media_stats
		WHERE media_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("media %d stats history: %w", id, err)
	}
	defer rows.Close()

	var history []models.MediaStats
	for rows.Next() {
		var s models.MediaStats
		if err := rows.Scan(&s.ID, &s.MediaID, &s.Timestamp, &s.Comments, &s.Likes, &s.Views); err != nil {
			return nil, err
		}
		history = append(history, s)
	}
	return history, rows.Err()
}

// InfoHistory returns info snapshots newest-first.
func (r *MediaRepository) InfoHistory(ctx context.Context, id int64, limit int) ([]models.MediaInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, media_id, timestamp, title, caption, disable_comments
		FROM media_info
		WHERE media_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("media %d info history: %w", id, err)
	}
	defer rows.Close()

	var history []models.MediaInfo
	for rows.Next() {
		var info models.MediaInfo
		if err := rows.Scan(&info.ID, &info.MediaID, &info.Timestamp, &info.Title, &info.Caption, &info.DisableComments); err != nil {
			return nil, err
		}
		history = append(history, info)
	}
	return history, rows.Err()
}

// Comments returns comment edges for a media, newest-first.
func (r *MediaRepository) Comments(ctx context.Context, id int64, limit int) ([]models.MediaComment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, media_id, account_id, identifier, text, likes, created_at
		FROM media_comments
		WHERE media_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("media %d comments: %w", id, err)
	}
	defer rows.Close()

	var comments []models.MediaComment
	for rows.Next() {
		var c models.MediaComment
		if err := rows.Scan(&c.ID, &c.MediaID, &c.AccountID, &c.Identifier, &c.Text, &c.Likes, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
