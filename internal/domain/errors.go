package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist, or does not belong to the stated parent
// (e.g. a medication id that belongs to a different recipient).
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing name, empty schedule, malformed time of day).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrDuplicateActiveMedication is returned when a recipient already has an
// active medication with the same name. Archived medications do not count.
// Handlers should map this to HTTP 409 Conflict.
var ErrDuplicateActiveMedication = errors.New("an active medication with this name already exists")

// ErrInvalidTimezone is returned when an IANA timezone name cannot be resolved.
// Callers must not fall back to a default zone when they see it.
var ErrInvalidTimezone = errors.New("invalid timezone")

// ErrStorageUnavailable is returned when the remote snapshot store cannot be
// read or written. Handlers should map this to HTTP 503.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrSnapshotConflict is returned when a flush loses the race against another
// invocation that wrote the snapshot first.
var ErrSnapshotConflict = errors.New("snapshot was modified concurrently")
