// Package repo contains all database access logic for the medication tracker.
// Each resource has its own file with an interface and a SQLite implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/medtrack/backend/internal/domain"
)

// db is the minimal interface satisfied by both *sql.DB and *sql.Tx.
// Accepting this interface lets Store.WithinTx hand the same repo
// implementations a transaction, so a multi-row operation commits or rolls
// back as one unit.
type db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the repositories that share one database handle.
// The service layer depends on this interface so it can be unit-tested with
// an in-memory fake.
type Store interface {
	Recipients() RecipientRepo
	Medications() MedicationRepo
	Doses() DoseRepo

	// WithinTx runs fn against a Store bound to a single transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	// Calling WithinTx on a Store that is already transactional runs fn
	// inside the existing transaction.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

type sqlStore struct {
	db   db
	conn *sql.DB // nil when db is a transaction
}

// NewStore constructs a Store backed by an open SQLite database.
func NewStore(conn *sql.DB) Store {
	return &sqlStore{db: conn, conn: conn}
}

func (s *sqlStore) Recipients() RecipientRepo   { return &sqliteRecipientRepo{db: s.db} }
func (s *sqlStore) Medications() MedicationRepo { return &sqliteMedicationRepo{db: s.db} }
func (s *sqlStore) Doses() DoseRepo             { return &sqliteDoseRepo{db: s.db} }

func (s *sqlStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.conn == nil {
		return fn(s)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repo.Store.WithinTx: begin: %w", err)
	}
	if err := fn(&sqlStore{db: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repo.Store.WithinTx: commit: %w", err)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows, allowing the scanX
// helpers to be reused for QueryRowContext and QueryContext calls.
type scanner interface {
	Scan(dest ...any) error
}

// instantLayout is how UTC instants are stored in TEXT columns. It sorts
// lexically in chronological order, so range queries compare strings.
const instantLayout = "2006-01-02T15:04:05.000Z07:00"

// dateLayout is how calendar dates are stored.
const dateLayout = "2006-01-02"

func formatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

func parseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse instant %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullInstant(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatInstant(*t), Valid: true}
}

func parseNullInstant(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseInstant(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", s.String, err)
	}
	return &t, nil
}

// notFound converts sql.ErrNoRows into domain.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
