// pkg/testsession/sqlcache/connect.go
package sqlcache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Open opens the draft cache database for driver ("sqlite" or "postgres")
// and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := Connect(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// Connect opens a *sql.DB and tunes the pool for the driver.
func Connect(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch normalizeDriver(driver) {
	case "sqlite":
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:testseries-drafts.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case "postgres":
		drvName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported driver %q (expected postgres/sqlite)", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if drvName == "sqlite" {
		// one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(4)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the draft table if missing. Safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var schema string
	switch normalizeDriver(driver) {
	case "sqlite":
		schema = schemaSQLite
	case "postgres":
		schema = schemaPostgres
	default:
		return fmt.Errorf("unsupported driver %q (expected postgres/sqlite)", driver)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("draft cache migration: %w", err)
	}
	return nil
}

func normalizeDriver(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	switch d {
	case "pgx", "pgsql", "postgresql":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	}
	return d
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS draft_attempts (
  test_id    TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS draft_attempts (
  test_id    TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);
`
