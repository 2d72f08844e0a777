// Package errs defines the error taxonomy shared across memstore's
// subsystems: stores, indexes, the graph manager, and the sync kernel all
// wrap one of the sentinels below so callers can dispatch on kind with
// errors.Is rather than string matching.
package errs

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("...: %w", Sentinel) to attach
// context while keeping errors.Is/errors.As working.
var (
	// NotFound indicates an absent key or id. Callers should treat this as
	// normal control flow (return a nil/zero value), not log it as a failure.
	NotFound = errors.New("not found")

	// InvalidInput indicates a shape or range violation in caller-supplied
	// data: wrong embedding dimension, negative vector clock value, a path
	// that escapes the data directory, an unknown synapse type, and so on.
	InvalidInput = errors.New("invalid input")

	// IntegrityFailure indicates a hash mismatch, Merkle mismatch, or
	// dimension mismatch discovered during verification. Never swallowed
	// silently; always surfaced in a verification report and logged.
	IntegrityFailure = errors.New("integrity failure")

	// Conflict indicates a concurrent update was detected by the sync
	// kernel's vector-clock comparison.
	Conflict = errors.New("conflict")

	// Transient indicates a retryable condition: a store-level lock, an I/O
	// hiccup. Callers use Retry (backoff.go) around operations that can
	// return this.
	Transient = errors.New("transient error")

	// Fatal indicates the process cannot continue: the data directory is
	// corrupt or unopenable, disk is full. Callers should shut down.
	Fatal = errors.New("fatal error")

	// AlreadyExists indicates an attempt to insert a duplicate id where
	// duplicates are a usage error (e.g. re-inserting an HNSW node id).
	AlreadyExists = errors.New("already exists")

	// Closed indicates an operation against a store or index that has
	// already been closed/shut down.
	Closed = errors.New("closed")
)

// IsNotFound reports whether err (or anything it wraps) is NotFound.
func IsNotFound(err error) bool { return errors.Is(err, NotFound) }

// IsTransient reports whether err (or anything it wraps) is Transient.
func IsTransient(err error) bool { return errors.Is(err, Transient) }

// IsConflict reports whether err (or anything it wraps) is Conflict.
func IsConflict(err error) bool { return errors.Is(err, Conflict) }
