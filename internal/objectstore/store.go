// Package objectstore holds the remote stores a database snapshot can live
// in: S3, Redis, Postgres, or process memory for tests and local runs.
//
// Every store versions the object it holds. Put is conditional on the
// version the caller last saw, so two invocations that started from the same
// snapshot cannot silently overwrite each other: the slower one gets
// ErrVersionConflict.
package objectstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no object exists under the key.
	ErrNotFound = errors.New("object not found")
	// ErrVersionConflict is returned by Put when the stored version differs
	// from the one the caller expected.
	ErrVersionConflict = errors.New("object version conflict")
)

// Object is a stored blob and the opaque version token it was read at.
type Object struct {
	Data    []byte
	Version string
}

// Store is a versioned key/blob store.
type Store interface {
	// Stat returns the current version of key, or ErrNotFound.
	Stat(ctx context.Context, key string) (string, error)

	// Get returns the object stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (Object, error)

	// Put stores data under key if the current version equals ifVersion and
	// returns the new version. An empty ifVersion means the key must not
	// exist yet. A mismatch fails with ErrVersionConflict.
	Put(ctx context.Context, key string, data []byte, ifVersion string) (string, error)
}
