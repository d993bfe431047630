// Package lifecycle provides artifact lifecycle management for FAB.
//
// This file implements the per-type artifact state machines, which enforce
// valid status transitions and maintain an audit trail of all changes.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/registry, internal/clock, std lib
//   - MUST NOT import: internal/sandbox, internal/pipeline, internal/cli
package lifecycle

import (
	"github.com/ideaforge/fab/internal/constants"
)

// ValidTransitions defines all allowed status transitions per artifact type.
// Format: type -> from_status -> []to_statuses
//
// The state machines follow this flow:
//
//	idea:  new → expanded
//	prd:   draft → chunked
//	chunk: backlog → validated | needs_revision
//	       needs_revision → backlog (explicit back-edge after correction)
//	       validated → storified
//	story: ready → in_progress
//	       in_progress → review_pending | blocked | cancelled
//	       blocked → ready (human-driven retry)
//	       cancelled → ready (re-run after abort)
//	validation: completed (immutable, no transitions)
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[constants.ArtifactType]map[constants.ArtifactStatus][]constants.ArtifactStatus{
	constants.ArtifactTypeIdea: {
		constants.IdeaStatusNew: {constants.IdeaStatusExpanded},
	},
	constants.ArtifactTypePRD: {
		constants.PRDStatusDraft: {constants.PRDStatusChunked},
	},
	constants.ArtifactTypeChunk: {
		constants.ChunkStatusBacklog: {
			constants.ChunkStatusValidated,
			constants.ChunkStatusNeedsRevision,
		},
		constants.ChunkStatusNeedsRevision: {constants.ChunkStatusBacklog},
		constants.ChunkStatusValidated:     {constants.ChunkStatusStorified},
	},
	constants.ArtifactTypeStory: {
		constants.StoryStatusReady: {constants.StoryStatusInProgress},
		constants.StoryStatusInProgress: {
			constants.StoryStatusReviewPending,
			constants.StoryStatusBlocked,
			constants.StoryStatusCancelled,
		},
		constants.StoryStatusBlocked:   {constants.StoryStatusReady},
		constants.StoryStatusCancelled: {constants.StoryStatusReady},
	},
	constants.ArtifactTypeValidation: {},
}

// initialStatuses maps each artifact type to its initial status.
//
//nolint:gochecknoglobals // Read-only lookup table
var initialStatuses = map[constants.ArtifactType]constants.ArtifactStatus{
	constants.ArtifactTypeIdea:       constants.IdeaStatusNew,
	constants.ArtifactTypePRD:        constants.PRDStatusDraft,
	constants.ArtifactTypeChunk:      constants.ChunkStatusBacklog,
	constants.ArtifactTypeStory:      constants.StoryStatusReady,
	constants.ArtifactTypeValidation: constants.ValidationStatusCompleted,
}

// parentTypes maps each artifact type to the type its parent must have.
// Ideas have no parent. Validation artifacts hang off the chunk they judge.
//
//nolint:gochecknoglobals // Read-only lookup table
var parentTypes = map[constants.ArtifactType]constants.ArtifactType{
	constants.ArtifactTypePRD:        constants.ArtifactTypeIdea,
	constants.ArtifactTypeChunk:      constants.ArtifactTypePRD,
	constants.ArtifactTypeStory:      constants.ArtifactTypeChunk,
	constants.ArtifactTypeValidation: constants.ArtifactTypeChunk,
}

// linkAdvance maps a parent type to the status it advances to when
// pipeline children are linked (idea gains a prd, prd gains chunks,
// chunk gains stories).
//
//nolint:gochecknoglobals // Read-only lookup table
var linkAdvance = map[constants.ArtifactType]constants.ArtifactStatus{
	constants.ArtifactTypeIdea:  constants.IdeaStatusExpanded,
	constants.ArtifactTypePRD:   constants.PRDStatusChunked,
	constants.ArtifactTypeChunk: constants.ChunkStatusStorified,
}

// KnownType reports whether t is a registered artifact type.
func KnownType(t constants.ArtifactType) bool {
	_, ok := initialStatuses[t]
	return ok
}

// InitialStatus returns the initial status for an artifact type.
func InitialStatus(t constants.ArtifactType) constants.ArtifactStatus {
	return initialStatuses[t]
}

// ParentType returns the required parent type for t and whether t takes a
// parent at all (ideas do not).
func ParentType(t constants.ArtifactType) (constants.ArtifactType, bool) {
	pt, ok := parentTypes[t]
	return pt, ok
}

// IsValidTransition checks if a transition is allowed for the given type.
// Returns false for self-transitions, terminal statuses, and unknown types.
func IsValidTransition(t constants.ArtifactType, from, to constants.ArtifactStatus) bool {
	if from == to {
		return false
	}
	targets, ok := ValidTransitions[t][from]
	if !ok {
		return false
	}
	for _, target := range targets {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no further transitions exist for the
// given type and status.
func IsTerminalStatus(t constants.ArtifactType, s constants.ArtifactStatus) bool {
	targets, ok := ValidTransitions[t][s]
	return !ok || len(targets) == 0
}
