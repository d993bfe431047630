// Package domain provides shared domain types for the FAB pipeline.
// These types are used across all internal packages to ensure consistent
// data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"time"

	"github.com/ideaforge/fab/internal/constants"
)

// Artifact is the unit of lineage in the pipeline registry. Every record
// is owned exclusively by the registry; all writes funnel through the
// lifecycle manager to preserve invariants.
//
// Example JSON representation:
//
//	{
//	    "id": "chunk-7f3a2c1e",
//	    "type": "chunk",
//	    "status": "backlog",
//	    "parent_id": "prd-91b04d22",
//	    "children_ids": [],
//	    "content_ref": "body.1.md",
//	    "metadata": {"title": "Login flow"},
//	    "created_at": "2026-08-24T10:00:00Z",
//	    "updated_at": "2026-08-24T10:00:00Z",
//	    "revision": 1,
//	    "schema_version": 1
//	}
type Artifact struct {
	// ID is the globally unique identifier, prefixed by type
	// (idea-, prd-, chunk-, story-, validation-). Immutable once assigned.
	ID string `json:"id"`

	// Type identifies the artifact's pipeline stage.
	Type constants.ArtifactType `json:"type"`

	// Status is the current state in the type-scoped state machine.
	Status constants.ArtifactStatus `json:"status"`

	// ParentID references the artifact this one was derived from.
	// Empty for ideas; every non-idea artifact has exactly one parent
	// of the preceding type.
	ParentID string `json:"parent_id,omitempty"`

	// ChildrenIDs lists artifacts derived from this one, in creation order.
	ChildrenIDs []string `json:"children_ids"`

	// ContentRef locates the artifact's textual body within its registry
	// directory. Bodies are append-only; revisions create new content
	// files, never mutate history in place.
	ContentRef string `json:"content_ref,omitempty"`

	// Metadata stores arbitrary key-value data (priority, story points,
	// error_class, log_excerpt, files_changed, ...).
	Metadata map[string]any `json:"metadata,omitempty"`

	// Transitions is the audit trail of every status change applied to
	// this record, in order.
	Transitions []Transition `json:"transitions,omitempty"`

	// CreatedAt is when the artifact was registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// Revision is a monotonically increasing counter used for optimistic
	// concurrency control in the registry store.
	Revision int64 `json:"revision"`

	// SchemaVersion indicates the version of the Artifact struct schema.
	SchemaVersion int `json:"schema_version"`
}

// Transition records a single status change in an artifact's history.
type Transition struct {
	// FromStatus is the status before the transition.
	FromStatus constants.ArtifactStatus `json:"from_status"`

	// ToStatus is the status after the transition.
	ToStatus constants.ArtifactStatus `json:"to_status"`

	// Timestamp is when the transition was applied.
	Timestamp time.Time `json:"timestamp"`

	// Reason is an optional explanation for the transition.
	Reason string `json:"reason,omitempty"`
}

// Clone returns a deep copy of the artifact. Stores hand out clones so
// concurrent readers never observe in-place mutation.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	out := *a
	if a.ChildrenIDs != nil {
		out.ChildrenIDs = make([]string, len(a.ChildrenIDs))
		copy(out.ChildrenIDs, a.ChildrenIDs)
	}
	if a.Transitions != nil {
		out.Transitions = make([]Transition, len(a.Transitions))
		copy(out.Transitions, a.Transitions)
	}
	if a.Metadata != nil {
		out.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// SetMeta assigns a metadata key, allocating the map on first use.
func (a *Artifact) SetMeta(key string, value any) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = value
}

// MetaString returns the string value for a metadata key, or "" when the
// key is absent or holds a non-string value.
func (a *Artifact) MetaString(key string) string {
	if a.Metadata == nil {
		return ""
	}
	s, _ := a.Metadata[key].(string)
	return s
}

// Metadata keys written by the pipeline.
const (
	// MetaTitle is the parsed artifact title.
	MetaTitle = "title"

	// MetaStoryPoints is the parsed story point estimate.
	MetaStoryPoints = "story_points"

	// MetaPassed is the boolean verdict carried by validation artifacts.
	MetaPassed = "passed"

	// MetaPersona is the reviewer persona used for a validation run.
	MetaPersona = "persona"

	// MetaFilesChanged lists files modified by a sandbox run.
	MetaFilesChanged = "files_changed"

	// MetaErrorClass records the sandbox failure classification.
	MetaErrorClass = "error_class"

	// MetaLogExcerpt holds the tail of the sandbox log on failure.
	MetaLogExcerpt = "log_excerpt"

	// MetaFailureReason records why a collaborator invocation failed.
	MetaFailureReason = "failure_reason"
)
