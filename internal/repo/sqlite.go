package repo

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/medtrack/backend/migrations"
)

// OpenSQLite opens the database file at path, creating it if needed, and
// applies every pending schema migration.
//
// The rollback journal is used instead of WAL so that every committed change
// lives in the main file, which is the unit uploaded as a snapshot.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "DELETE")
	q.Set("_busy_timeout", "5000")
	dsn := "file:" + path + "?" + q.Encode()

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("repo.OpenSQLite: open: %w", err)
	}
	// A single connection keeps the file handle count at one and serializes
	// writers the same way SQLite would anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("repo.OpenSQLite: ping: %w", err)
	}

	if err := Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate applies the embedded SQLite migrations. It is safe to call on an
// already migrated database.
func Migrate(ctx context.Context, conn *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrations.SQLite())
	if err != nil {
		return fmt.Errorf("repo.Migrate: create goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("repo.Migrate: up: %w", err)
	}
	return nil
}
