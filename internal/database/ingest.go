package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/axju/metrico/internal/models"
)

// Transaction-scoped ingest helpers shared by the account and media
// repositories. Everything here runs inside the caller's transaction
// so one entity's Info, Stats and edges land atomically.

// resolveAccountTx returns the account id for (platform, identifier),
// inserting the row when absent. The insert uses ON CONFLICT DO
// NOTHING so a lost identity race falls through to re-reading the
// winner's row; if that read also misses, the conflict is surfaced.
func resolveAccountTx(ctx context.Context, tx *sql.Tx, platform, identifier string, now time.Time) (id int64, created bool, err error) {
	const selectQuery = `SELECT id FROM accounts WHERE platform = $1 AND identifier = $2`

	err = tx.QueryRowContext(ctx, selectQuery, platform, identifier).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO accounts (platform, identifier, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (platform, identifier) DO NOTHING
		RETURNING id
	`, platform, identifier, models.StatusActive, now).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}

	// Lost the race: the winner's row must be visible now.
	err = tx.QueryRowContext(ctx, selectQuery, platform, identifier).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("identity race on %s/%s not settled: %w", platform, identifier, models.ErrConflict)
	}
	if err != nil {
		return 0, false, err
	}
	return id, false, nil
}

// ingestAccountTx appends one refresh payload for an account: a stats
// row whenever stats are present, an info row only when it differs
// from the latest one, plus media, comment and subscription edges.
func ingestAccountTx(ctx context.Context, tx *sql.Tx, accountID int64, platform string, data models.AccountData, now time.Time) error {
	if data.Stats != nil {
		if err := appendAccountStatsTx(ctx, tx, accountID, data.Stats, now); err != nil {
			return err
		}
	}
	if data.Info != nil {
		if err := appendAccountInfoTx(ctx, tx, accountID, data.Info, now); err != nil {
			return err
		}
	}

	for _, media := range data.Medias {
		mediaID, err := resolveMediaTx(ctx, tx, accountID, media, now)
		if err != nil {
			return err
		}
		if err := ingestMediaTx(ctx, tx, mediaID, platform, media, now); err != nil {
			return err
		}
	}

	for _, sub := range data.Subscriptions {
		subID, err := resolveRelatedAccountTx(ctx, tx, platform, sub, now)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO account_subscriptions (account_id, subscribed_account_id, timestamp)
			VALUES ($1, $2, $3)
			ON CONFLICT (account_id, subscribed_account_id) DO NOTHING
		`, accountID, subID, now); err != nil {
			return fmt.Errorf("record subscription %d -> %d: %w", accountID, subID, err)
		}
	}

	return nil
}

// resolveRelatedAccountTx resolves an account referenced by an edge
// (comment author, subscription target). A newly created one gets its
// initial snapshots, but its own medias and subscriptions are not
// followed.
func resolveRelatedAccountTx(ctx context.Context, tx *sql.Tx, platform string, data models.AccountData, now time.Time) (int64, error) {
	id, created, err := resolveAccountTx(ctx, tx, platform, data.Identifier, now)
	if err != nil {
		return 0, err
	}
	if !created {
		return id, nil
	}
	if data.Stats != nil {
		if err := appendAccountStatsTx(ctx, tx, id, data.Stats, now); err != nil {
			return 0, err
		}
	}
	if data.Info != nil {
		if err := appendAccountInfoTx(ctx, tx, id, data.Info, now); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func appendAccountStatsTx(ctx context.Context, tx *sql.Tx, accountID int64, stats *models.AccountStatsData, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_stats (account_id, timestamp, medias, views, followers, subscriptions)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, accountID, now, stats.Medias, stats.Views, stats.Followers, stats.Subscriptions); err != nil {
		return fmt.Errorf("append account stats: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET stats_medias = $2, stats_views = $3, stats_followers = $4,
		    stats_subscriptions = $5, stats_updated_at = $6
		WHERE id = $1
	`, accountID, stats.Medias, stats.Views, stats.Followers, stats.Subscriptions, now); err != nil {
		return fmt.Errorf("update account stats columns: %w", err)
	}
	return nil
}

func appendAccountInfoTx(ctx context.Context, tx *sql.Tx, accountID int64, info *models.AccountInfoData, now time.Time) error {
	var latest models.AccountInfo
	err := tx.QueryRowContext(ctx, `
		SELECT name, bio FROM account_info
		WHERE account_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, accountID).Scan(&latest.Name, &latest.Bio)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First snapshot, always written.
	case err != nil:
		return fmt.Errorf("load latest account info: %w", err)
	default:
		if !info.Differs(&latest) {
			return nil
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_info (account_id, timestamp, name, bio)
		VALUES ($1, $2, $3, $4)
	`, accountID, now, info.Name, info.Bio); err != nil {
		return fmt.Errorf("append account info: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts SET info_name = $2, info_bio = $3, info_updated_at = $4 WHERE id = $1
	`, accountID, info.Name, info.Bio, now); err != nil {
		return fmt.Errorf("update account info columns: %w", err)
	}
	return nil
}

// resolveMediaTx returns the media id for (account_id, identifier),
// inserting the row when absent, with the same race handling as
// account resolution.
func resolveMediaTx(ctx context.Context, tx *sql.Tx, accountID int64, data models.MediaData, now time.Time) (int64, error) {
	const selectQuery = `SELECT id FROM medias WHERE account_id = $1 AND identifier = $2`

	var id int64
	err := tx.QueryRowContext(ctx, selectQuery, accountID, data.Identifier).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	created := data.Created
	if created.IsZero() {
		created = now
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO medias (account_id, identifier, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, identifier) DO NOTHING
		RETURNING id
	`, accountID, data.Identifier, models.StatusActive, created).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	err = tx.QueryRowContext(ctx, selectQuery, accountID, data.Identifier).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("identity race on media %d/%s not settled: %w", accountID, data.Identifier, models.ErrConflict)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ingestMediaTx appends one refresh payload for a media, including
// its comment edges. Comment authors are resolved through account
// identity resolution first.
func ingestMediaTx(ctx context.Context, tx *sql.Tx, mediaID int64, platform string, data models.MediaData, now time.Time) error {
	if data.Stats != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO media_stats (media_id, timestamp, comments, likes, views)
			VALUES ($1, $2, $3, $4, $5)
		`, mediaID, now, data.Stats.Comments, data.Stats.Likes, data.Stats.Views); err != nil {
			return fmt.Errorf("append media stats: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE medias
			SET stats_comments = $2, stats_likes = $3, stats_views = $4, stats_updated_at = $5
			WHERE id = $1
		`, mediaID, data.Stats.Comments, data.Stats.Likes, data.Stats.Views, now); err != nil {
			return fmt.Errorf("update media stats columns: %w", err)
		}
	}

	if data.Info != nil {
		if err := appendMediaInfoTx(ctx, tx, mediaID, data.Info, now); err != nil {
			return err
		}
	}

	for _, comment := range data.Comments {
		authorID, err := resolveRelatedAccountTx(ctx, tx, platform, comment.Author, now)
		if err != nil {
			return err
		}
		created := comment.Created
		if created.IsZero() {
			created = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO media_comments (media_id, account_id, identifier, text, likes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (media_id, identifier) DO NOTHING
		`, mediaID, authorID, comment.Identifier, comment.Text, comment.Likes, created); err != nil {
			return fmt.Errorf("record comment on media %d: %w", mediaID, err)
		}
	}

	return nil
}

func appendMediaInfoTx(ctx context.Context, tx *sql.Tx, mediaID int64, info *models.MediaInfoData, now time.Time) error {
	var latest models.MediaInfo
	err := tx.QueryRowContext(ctx, `
		SELECT title, caption, disable_comments FROM media_info
		WHERE media_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, mediaID).Scan(&latest.Title, &latest.Caption, &latest.DisableComments)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First snapshot, always written.
	case err != nil:
		return fmt.Errorf("load latest media info: %w", err)
	default:
		if !info.Differs(&latest) {
			return nil
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO media_info (media_id, timestamp, title, caption, disable_comments)
		VALUES ($1, $2, $3, $4, $5)
	`, mediaID, now, info.Title, info.Caption, info.DisableComments); err != nil {
		return fmt.Errorf("append media info: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE medias SET info_title = $2, info_caption = $3, info_updated_at = $4 WHERE id = $1
	`, mediaID, info.Title, info.Caption, now); err != nil {
		return fmt.Errorf("update media info columns: %w", err)
	}
	return nil
}
