package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// A migration carries one DDL step per dialect. Steps are embedded in
// the binary so a deployment is a single file.
type migration struct {
	version  string
	postgres string
	sqlite   string
}

var migrations = []migration{
	{
		version: "0001_accounts",
		postgres: `
CREATE TABLE IF NOT EXISTS accounts (
	id BIGSERIAL PRIMARY KEY,
	platform TEXT NOT NULL,
	identifier TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL,
	info_name TEXT NOT NULL DEFAULT '',
	info_bio TEXT NOT NULL DEFAULT '',
	info_updated_at TIMESTAMPTZ,
	stats_medias BIGINT NOT NULL DEFAULT 0,
	stats_views BIGINT NOT NULL DEFAULT 0,
	stats_followers BIGINT NOT NULL DEFAULT 0,
	stats_subscriptions BIGINT NOT NULL DEFAULT 0,
	stats_updated_at TIMESTAMPTZ,
	UNIQUE (platform, identifier)
);
CREATE TABLE IF NOT EXISTS account_info (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	timestamp TIMESTAMPTZ NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS account_stats (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	timestamp TIMESTAMPTZ NOT NULL,
	medias BIGINT NOT NULL DEFAULT 0,
	views BIGINT NOT NULL DEFAULT 0,
	followers BIGINT NOT NULL DEFAULT 0,
	subscriptions BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS account_subscriptions (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	subscribed_account_id BIGINT NOT NULL REFERENCES accounts(id),
	timestamp TIMESTAMPTZ NOT NULL,
	UNIQUE (account_id, subscribed_account_id)
);
CREATE INDEX IF NOT EXISTS idx_account_stats_history ON account_stats (account_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_account_info_history ON account_info (account_id, timestamp DESC);`,
		sqlite: `
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	platform TEXT NOT NULL,
	identifier TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMP NOT NULL,
	info_name TEXT NOT NULL DEFAULT '',
	info_bio TEXT NOT NULL DEFAULT '',
	info_updated_at TIMESTAMP,
	stats_medias INTEGER NOT NULL DEFAULT 0,
	stats_views INTEGER NOT NULL DEFAULT 0,
	stats_followers INTEGER NOT NULL DEFAULT 0,
	stats_subscriptions INTEGER NOT NULL DEFAULT 0,
	stats_updated_at TIMESTAMP,
	UNIQUE (platform, identifier)
);
CREATE TABLE IF NOT EXISTS account_info (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	timestamp TIMESTAMP NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS account_stats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	timestamp TIMESTAMP NOT NULL,
	medias INTEGER NOT NULL DEFAULT 0,
	views INTEGER NOT NULL DEFAULT 0,
	followers INTEGER NOT NULL DEFAULT 0,
	subscriptions INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS account_subscriptions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	subscribed_account_id INTEGER NOT NULL REFERENCES accounts(id),
	timestamp TIMESTAMP NOT NULL,
	UNIQUE (account_id, subscribed_account_id)
);
CREATE INDEX IF NOT EXISTS idx_account_stats_history ON account_stats (account_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_account_info_history ON account_info (account_id, timestamp DESC);`,
	},
	{
		version: "0002_medias",
		postgres: `
CREATE TABLE IF NOT EXISTS medias (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	identifier TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL,
	info_title TEXT NOT NULL DEFAULT '',
	info_caption TEXT NOT NULL DEFAULT '',
	info_updated_at TIMESTAMPTZ,
	stats_comments BIGINT NOT NULL DEFAULT 0,
	stats_likes BIGINT NOT NULL DEFAULT 0,
	stats_views BIGINT NOT NULL DEFAULT 0,
	stats_updated_at TIMESTAMPTZ,
	UNIQUE (account_id, identifier)
);
CREATE TABLE IF NOT EXISTS media_info (
	id BIGSERIAL PRIMARY KEY,
	media_id BIGINT NOT NULL REFERENCES medias(id),
	timestamp TIMESTAMPTZ NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	caption TEXT NOT NULL DEFAULT '',
	disable_comments BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS media_stats (
	id BIGSERIAL PRIMARY KEY,
	media_id BIGINT NOT NULL REFERENCES medias(id),
	timestamp TIMESTAMPTZ NOT NULL,
	comments BIGINT NOT NULL DEFAULT 0,
	likes BIGINT NOT NULL DEFAULT 0,
	views BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS media_comments (
	id BIGSERIAL PRIMARY KEY,
	media_id BIGINT NOT NULL REFERENCES medias(id),
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	identifier TEXT NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	likes BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (media_id, identifier)
);
CREATE INDEX IF NOT EXISTS idx_media_stats_history ON media_stats (media_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_media_info_history ON media_info (media_id, timestamp DESC);`,
		sqlite: `
CREATE TABLE IF NOT EXISTS medias (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	identifier TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMP NOT NULL,
	info_title TEXT NOT NULL DEFAULT '',
	info_caption TEXT NOT NULL DEFAULT '',
	info_updated_at TIMESTAMP,
	stats_comments INTEGER NOT NULL DEFAULT 0,
	stats_likes INTEGER NOT NULL DEFAULT 0,
	stats_views INTEGER NOT NULL DEFAULT 0,
	stats_updated_at TIMESTAMP,
	UNIQUE (account_id, identifier)
);
CREATE TABLE IF NOT EXISTS media_info (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	media_id INTEGER NOT NULL REFERENCES medias(id),
	timestamp TIMESTAMP NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	caption TEXT NOT NULL DEFAULT '',
	disable_comments BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS media_stats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	media_id INTEGER NOT NULL REFERENCES medias(id),
	timestamp TIMESTAMP NOT NULL,
	comments INTEGER NOT NULL DEFAULT 0,
	likes INTEGER NOT NULL DEFAULT 0,
	views INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS media_comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	media_id INTEGER NOT NULL REFERENCES medias(id),
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	identifier TEXT NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	likes INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (media_id, identifier)
);
CREATE INDEX IF NOT EXISTS idx_media_stats_history ON media_stats (media_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_media_info_history ON media_info (media_id, timestamp DESC);`,
	},
	{
		version: "0003_triggers",
		postgres: `
CREATE TABLE IF NOT EXISTS triggers (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'idle',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS trigger_accounts (
	id BIGSERIAL PRIMARY KEY,
	trigger_id BIGINT NOT NULL REFERENCES triggers(id),
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	timestamp TIMESTAMPTZ NOT NULL,
	UNIQUE (trigger_id, account_id)
);
CREATE TABLE IF NOT EXISTS trigger_medias (
	id BIGSERIAL PRIMARY KEY,
	trigger_id BIGINT NOT NULL REFERENCES triggers(id),
	media_id BIGINT NOT NULL REFERENCES medias(id),
	timestamp TIMESTAMPTZ NOT NULL,
	UNIQUE (trigger_id, media_id)
);
CREATE TABLE IF NOT EXISTS trigger_runs (
	id BIGSERIAL PRIMARY KEY,
	trigger_id BIGINT NOT NULL REFERENCES triggers(id),
	batch_id TEXT NOT NULL,
	started TIMESTAMPTZ NOT NULL,
	finished TIMESTAMPTZ,
	success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_trigger_runs_history ON trigger_runs (trigger_id, started DESC);`,
		sqlite: `
CREATE TABLE IF NOT EXISTS triggers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'idle',
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS trigger_accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trigger_id INTEGER NOT NULL REFERENCES triggers(id),
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	timestamp TIMESTAMP NOT NULL,
	UNIQUE (trigger_id, account_id)
);
CREATE TABLE IF NOT EXISTS trigger_medias (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trigger_id INTEGER NOT NULL REFERENCES triggers(id),
	media_id INTEGER NOT NULL REFERENCES medias(id),
	timestamp TIMESTAMP NOT NULL,
	UNIQUE (trigger_id, media_id)
);
CREATE TABLE IF NOT EXISTS trigger_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trigger_id INTEGER NOT NULL REFERENCES triggers(id),
	batch_id TEXT NOT NULL,
	started TIMESTAMP NOT NULL,
	finished TIMESTAMP,
	success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_trigger_runs_history ON trigger_runs (trigger_id, started DESC);`,
	},
}

// RunMigrations applies all pending migrations inside transactions,
// tracked in a schema_migrations table.
func RunMigrations(ctx context.Context, db *sql.DB, driver string, logger *slog.Logger) error {
	logger.Info("checking for pending database migrations")

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	pending := 0
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		ddl := m.postgres
		if driver == "sqlite" {
			ddl = m.sqlite
		}

		pending++
		logger.Info("applying migration", "version", m.version)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for %s: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, applied_at) VALUES ($1, CURRENT_TIMESTAMP)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.version, err)
		}
	}

	if pending == 0 {
		logger.Info("database schema up to date")
	} else {
		logger.Info("migrations applied", "count", pending)
	}
	return nil
}
