// Package database implements the snapshot store on database/sql.
// Two dialects are supported: PostgreSQL for shared deployments and
// SQLite for single-user ones. All DML is written to run unchanged on
// both; dialect differences live in the migration DDL only.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/axju/metrico/internal/config"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // CGO-free SQLite driver
)

// Connect opens the store connection and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	driver, dsn := cfg.Driver, cfg.URL
	if driver == "sqlite" {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// sqliteDSN appends the pragmas concurrent ingest needs: a busy
// timeout so writers queue instead of failing, and foreign keys on.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// HealthCheck performs a store health check.
func HealthCheck(ctx context.Context, db *sql.DB) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// TableCounts returns row counts of the main tables, the aggregate
// view the reporting surface exposes as store stats.
func TableCounts(ctx context.Context, db *sql.DB) (map[string]int64, error) {
	tables := []string{
		"accounts", "account_info", "account_stats", "account_subscriptions",
		"medias", "media_info", "media_stats", "media_comments",
		"triggers", "trigger_runs",
	}

	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		var n int64
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
