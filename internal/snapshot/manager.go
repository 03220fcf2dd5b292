// Package snapshot keeps the embedded SQLite database in step with a remote
// object store across short-lived invocations.
//
// A Manager covers one invocation: Activate materializes the database file
// (from the local cache, the remote snapshot, or empty), the caller runs its
// queries, and Release uploads the file if it changed and closes it. Uploads
// are conditional on the version read at activation, so an invocation that
// raced another one fails with domain.ErrSnapshotConflict instead of
// overwriting it.
package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/objectstore"
	"github.com/medtrack/backend/internal/repo"
)

// DefaultKey is the object key the snapshot is stored under.
const DefaultKey = "database.sqlite"

// Options configures a Manager.
type Options struct {
	// Path is the local cache file of the database.
	Path string

	// Key is the remote object key. Defaults to DefaultKey.
	Key string

	// AllowEmptyOnFetchError starts from an empty database when the remote
	// snapshot cannot be fetched, instead of failing the activation. The
	// empty database can still never overwrite an existing remote snapshot:
	// its first upload is create-only and fails with a conflict.
	AllowEmptyOnFetchError bool

	// Seed, if set, runs once on a freshly created database.
	Seed func(ctx context.Context, db *sql.DB) error

	Logger *slog.Logger
}

type state int

const (
	stateUninitialized state = iota
	stateReady
	stateClosed
)

// Source says where an activation got its database from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceRemote   Source = "remote"
	SourceEmpty    Source = "empty"
	SourceDegraded Source = "degraded"
)

// Manager owns the database file for one invocation. It is not safe for
// concurrent use; Runner serializes invocations within a process.
type Manager struct {
	store objectstore.Store
	opts  Options
	log   *slog.Logger

	state   state
	db      *sql.DB
	source  Source
	version string // remote version the local file corresponds to; "" if none
	synced  [sha256.Size]byte
	hasSync bool
}

// NewManager returns a Manager in the Uninitialized state.
func NewManager(store objectstore.Store, opts Options) *Manager {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, opts: opts, log: log.With("component", "snapshot", "key", opts.Key)}
}

// Source reports where the active database came from.
func (m *Manager) Source() Source { return m.source }

// Activate makes the database ready and returns it. The local cache is
// reused only when it was written from the snapshot version that is
// currently remote; otherwise the snapshot is downloaded. A missing remote
// snapshot yields a fresh database. Any other fetch failure returns
// domain.ErrStorageUnavailable unless AllowEmptyOnFetchError is set.
// Schema migrations run on every activation.
func (m *Manager) Activate(ctx context.Context) (*sql.DB, error) {
	if m.state != stateUninitialized {
		return nil, errors.New("snapshot.Manager.Activate: already activated")
	}
	if err := os.MkdirAll(filepath.Dir(m.opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("snapshot.Manager.Activate: %w", err)
	}

	if err := m.materialize(ctx); err != nil {
		return nil, err
	}

	db, err := repo.OpenSQLite(ctx, m.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("snapshot.Manager.Activate: %w", err)
	}

	if (m.source == SourceEmpty || m.source == SourceDegraded) && m.opts.Seed != nil {
		if err := m.opts.Seed(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("snapshot.Manager.Activate: seed: %w", err)
		}
	}

	m.db = db
	m.state = stateReady
	m.log.Info("snapshot activated", "source", m.source, "version", m.version)
	return db, nil
}

// materialize puts the right bytes at Path and records source and version.
func (m *Manager) materialize(ctx context.Context) error {
	remote, err := m.store.Stat(ctx, m.opts.Key)
	switch {
	case errors.Is(err, objectstore.ErrNotFound):
		if err := m.removeLocal(); err != nil {
			return fmt.Errorf("snapshot.Manager.Activate: %w", err)
		}
		m.source, m.version = SourceEmpty, ""
		return nil
	case err != nil:
		return m.fetchFailed(err)
	}

	if cached, ok := m.cachedVersion(); ok && cached == remote {
		data, err := os.ReadFile(m.opts.Path)
		if err == nil {
			m.source, m.version = SourceCache, remote
			m.markSynced(data)
			return nil
		}
	}

	obj, err := m.store.Get(ctx, m.opts.Key)
	if errors.Is(err, objectstore.ErrNotFound) {
		// Deleted between Stat and Get.
		if err := m.removeLocal(); err != nil {
			return fmt.Errorf("snapshot.Manager.Activate: %w", err)
		}
		m.source, m.version = SourceEmpty, ""
		return nil
	}
	if err != nil {
		return m.fetchFailed(err)
	}

	if err := m.writeLocal(obj.Data, obj.Version); err != nil {
		return fmt.Errorf("snapshot.Manager.Activate: %w", err)
	}
	m.source, m.version = SourceRemote, obj.Version
	m.markSynced(obj.Data)
	return nil
}

func (m *Manager) fetchFailed(err error) error {
	if !m.opts.AllowEmptyOnFetchError {
		return fmt.Errorf("snapshot.Manager.Activate: %w: %v", domain.ErrStorageUnavailable, err)
	}
	m.log.Error("snapshot fetch failed; starting from an empty database", "error", err)
	if rmErr := m.removeLocal(); rmErr != nil {
		return fmt.Errorf("snapshot.Manager.Activate: %w", rmErr)
	}
	m.source, m.version = SourceDegraded, ""
	return nil
}

// Flush uploads the database file if it changed since it was last synced.
// Returns domain.ErrSnapshotConflict if the remote snapshot moved on since
// activation, and domain.ErrStorageUnavailable for any other upload failure.
func (m *Manager) Flush(ctx context.Context) error {
	if m.state != stateReady {
		return errors.New("snapshot.Manager.Flush: not active")
	}

	data, err := os.ReadFile(m.opts.Path)
	if err != nil {
		return fmt.Errorf("snapshot.Manager.Flush: read: %w", err)
	}
	sum := sha256.Sum256(data)
	if m.hasSync && sum == m.synced {
		m.log.Debug("snapshot unchanged; upload skipped", "version", m.version)
		return nil
	}

	next, err := m.store.Put(ctx, m.opts.Key, data, m.version)
	if errors.Is(err, objectstore.ErrVersionConflict) {
		return fmt.Errorf("snapshot.Manager.Flush: %w: %v", domain.ErrSnapshotConflict, err)
	}
	if err != nil {
		return fmt.Errorf("snapshot.Manager.Flush: %w: %v", domain.ErrStorageUnavailable, err)
	}

	m.version = next
	m.synced, m.hasSync = sum, true
	if err := m.writeVersion(next); err != nil {
		// The upload succeeded; a stale sidecar only costs a download next time.
		m.log.Warn("snapshot version sidecar not written", "error", err)
	}
	m.log.Info("snapshot flushed", "bytes", len(data), "version", next)
	return nil
}

// Release flushes and closes the database. It is safe to call more than once
// and on a Manager that never activated.
func (m *Manager) Release(ctx context.Context) error {
	switch m.state {
	case stateClosed:
		return nil
	case stateUninitialized:
		m.state = stateClosed
		return nil
	}

	flushErr := m.Flush(ctx)
	closeErr := m.db.Close()
	m.db = nil
	m.state = stateClosed
	if closeErr != nil {
		closeErr = fmt.Errorf("snapshot.Manager.Release: close: %w", closeErr)
	}
	return errors.Join(flushErr, closeErr)
}

// Discard closes the database without uploading and deletes the local cache,
// so the next activation starts from the remote snapshot.
func (m *Manager) Discard() error {
	if m.db != nil {
		m.db.Close()
		m.db = nil
	}
	m.state = stateClosed
	return m.removeLocal()
}

func (m *Manager) markSynced(data []byte) {
	m.synced, m.hasSync = sha256.Sum256(data), true
}

func (m *Manager) versionPath() string { return m.opts.Path + ".version" }

func (m *Manager) cachedVersion() (string, bool) {
	b, err := os.ReadFile(m.versionPath())
	if err != nil {
		return "", false
	}
	v := string(bytes.TrimSpace(b))
	return v, v != ""
}

// writeLocal replaces the cache file and its version sidecar. The data goes
// through a temp file and rename so a crash never leaves a torn database.
func (m *Manager) writeLocal(data []byte, version string) error {
	// Drop the sidecar first: a file without one is never trusted.
	if err := removeIfExists(m.versionPath()); err != nil {
		return err
	}
	tmp := m.opts.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, m.opts.Path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	if err := removeIfExists(m.opts.Path + "-journal"); err != nil {
		return err
	}
	return m.writeVersion(version)
}

func (m *Manager) writeVersion(version string) error {
	return os.WriteFile(m.versionPath(), []byte(version), 0o600)
}

func (m *Manager) removeLocal() error {
	for _, p := range []string{m.versionPath(), m.opts.Path, m.opts.Path + "-journal"} {
		if err := removeIfExists(p); err != nil {
			return err
		}
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
