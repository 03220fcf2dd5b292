package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/medtrack/backend/migrations"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn and pgx.Tx.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps objects in the snapshots table. Put is a single
// version-guarded statement, so the row lock serializes concurrent writers.
type PostgresStore struct {
	db db
}

// NewPostgresStore returns a Store over an open connection or pool.
func NewPostgresStore(conn db) *PostgresStore {
	return &PostgresStore{db: conn}
}

// MigratePostgres creates the snapshots table if needed.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	// The pool owns the connections; the *sql.DB is only a goose adapter.
	sqlDB := stdlib.OpenDBFromPool(pool)

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations.Postgres())
	if err != nil {
		return fmt.Errorf("objectstore.MigratePostgres: create goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("objectstore.MigratePostgres: up: %w", err)
	}
	return nil
}

func (s *PostgresStore) Stat(ctx context.Context, key string) (string, error) {
	const q = `SELECT version FROM snapshots WHERE key = @key`

	var version string
	err := s.db.QueryRow(ctx, q, pgx.NamedArgs{"key": key}).Scan(&version)
	if err != nil {
		return "", fmt.Errorf("objectstore.PostgresStore.Stat %q: %w", key, noRows(err))
	}
	return version, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (Object, error) {
	const q = `SELECT data, version FROM snapshots WHERE key = @key`

	var obj Object
	err := s.db.QueryRow(ctx, q, pgx.NamedArgs{"key": key}).Scan(&obj.Data, &obj.Version)
	if err != nil {
		return Object{}, fmt.Errorf("objectstore.PostgresStore.Get %q: %w", key, noRows(err))
	}
	return obj, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, data []byte, ifVersion string) (string, error) {
	const insertQ = `
		INSERT INTO snapshots (key, data, version)
		VALUES (@key, @data, @version)
		ON CONFLICT (key) DO NOTHING`
	const updateQ = `
		UPDATE snapshots
		SET data       = @data,
		    version    = @version,
		    updated_at = now()
		WHERE key = @key AND version = @if_version`

	next := uuid.NewString()
	args := pgx.NamedArgs{"key": key, "data": data, "version": next, "if_version": ifVersion}

	q := updateQ
	if ifVersion == "" {
		q = insertQ
	}
	tag, err := s.db.Exec(ctx, q, args)
	if err != nil {
		return "", fmt.Errorf("objectstore.PostgresStore.Put %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("objectstore.PostgresStore.Put %q: %w", key, ErrVersionConflict)
	}
	return next, nil
}

func noRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
