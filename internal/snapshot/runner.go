package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"

	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/objectstore"
)

// DefaultConflictRetries is how many times Run re-executes an invocation
// after losing an upload race.
const DefaultConflictRetries = 3

// Runner runs invocations against the snapshot one at a time. Each attempt
// gets its own Manager: activate, run, release.
type Runner struct {
	store   objectstore.Store
	opts    Options
	retries int
	log     *slog.Logger

	mu sync.Mutex
}

// NewRunner returns a Runner. A negative retries selects
// DefaultConflictRetries; zero disables retrying.
func NewRunner(store objectstore.Store, opts Options, retries int) *Runner {
	if retries < 0 {
		retries = DefaultConflictRetries
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{store: store, opts: opts, retries: retries, log: log}
}

// Run activates the snapshot, calls fn with the ready database and releases
// it, flushing any change. If the flush loses a race with another writer the
// local copy is discarded and fn runs again on the newer snapshot, up to the
// configured number of retries; after that domain.ErrSnapshotConflict is
// returned. An error from fn is returned as is.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; ; attempt++ {
		err := r.once(ctx, fn)
		if !errors.Is(err, domain.ErrSnapshotConflict) || attempt >= r.retries {
			return err
		}
		r.log.Warn("snapshot conflict; retrying on a fresh copy", "attempt", attempt+1, "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(err, ctxErr)
		}
	}
}

func (r *Runner) once(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	m := NewManager(r.store, r.opts)
	db, err := m.Activate(ctx)
	if err != nil {
		return err
	}

	fnErr := fn(ctx, db)
	relErr := m.Release(ctx)

	if errors.Is(relErr, domain.ErrSnapshotConflict) {
		if err := m.Discard(); err != nil {
			r.log.Error("discard local snapshot", "error", err)
		}
	}
	if fnErr != nil {
		if relErr != nil {
			r.log.Error("snapshot release after failed operation", "error", relErr)
		}
		return fnErr
	}
	return relErr
}
