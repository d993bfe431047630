// Package registry provides persistence for pipeline artifact records.
// This package implements the storage layer for the artifact registry,
// with atomic writes, per-record file locking, and optimistic concurrency
// via record revisions.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/flock, std lib
//   - MUST NOT import: internal/lifecycle, internal/pipeline, internal/cli
package registry

import (
	"context"

	"github.com/ideaforge/fab/internal/domain"
)

// Store defines the interface for artifact record persistence.
// The registry is a single logical table keyed by artifact id. Concurrent
// readers are allowed; writers serialize per record. Implementations hand
// out deep copies so callers never share mutable state with the store.
type Store interface {
	// Put creates a new record. Fails with ErrInvariantViolation if a
	// record with the same id already exists; no partial record is left
	// behind on failure.
	Put(ctx context.Context, artifact *domain.Artifact) error

	// Get retrieves a record by id. Fails with ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.Artifact, error)

	// CompareAndSwap persists an updated record if and only if the stored
	// revision matches artifact.Revision. On success the stored revision
	// is incremented and reflected in the passed artifact. Fails with
	// ErrInvariantViolation on a stale revision and ErrNotFound if the
	// record does not exist.
	CompareAndSwap(ctx context.Context, artifact *domain.Artifact) error

	// Delete removes a record and its content bodies. Used only for
	// rolling back partially linked children; fails with ErrNotFound if
	// the record does not exist.
	Delete(ctx context.Context, id string) error

	// List returns all records, sorted by creation time (oldest first).
	List(ctx context.Context) ([]*domain.Artifact, error)

	// SaveContent appends a new versioned content body for the artifact
	// and returns its content ref (e.g. "body.2.md"). Bodies are
	// append-only; existing versions are never rewritten.
	SaveContent(ctx context.Context, id string, body []byte) (string, error)

	// GetContent retrieves a content body by ref.
	GetContent(ctx context.Context, id, ref string) ([]byte, error)
}
