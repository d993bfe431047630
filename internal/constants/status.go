package constants

// ArtifactType identifies the kind of pipeline artifact a record holds.
// Type values use snake_case for JSON serialization compatibility.
type ArtifactType string

// Artifact type constants define the stages of the content-to-code pipeline.
// Each non-idea artifact has exactly one parent of the preceding type.
const (
	// ArtifactTypeIdea is a raw idea submitted to the pipeline.
	ArtifactTypeIdea ArtifactType = "idea"

	// ArtifactTypePRD is a product requirements document generated from an idea.
	ArtifactTypePRD ArtifactType = "prd"

	// ArtifactTypeChunk is a self-contained slice of a PRD.
	ArtifactTypeChunk ArtifactType = "chunk"

	// ArtifactTypeStory is an implementable user story derived from a chunk.
	ArtifactTypeStory ArtifactType = "story"

	// ArtifactTypeValidation is a side artifact recording a validation verdict
	// for a chunk. It is immutable once written.
	ArtifactTypeValidation ArtifactType = "validation"
)

// String returns the string representation of the ArtifactType.
func (t ArtifactType) String() string {
	return string(t)
}

// IDPrefix returns the identifier prefix for this artifact type,
// e.g. "idea-" for ideas. Artifact IDs are always prefixed by type.
func (t ArtifactType) IDPrefix() string {
	return string(t) + "-"
}

// ArtifactStatus represents the state of an artifact in its type-scoped
// state machine. Status values use snake_case for JSON serialization.
type ArtifactStatus string

// Idea statuses.
const (
	// IdeaStatusNew indicates an idea has been submitted but not expanded.
	IdeaStatusNew ArtifactStatus = "new"

	// IdeaStatusExpanded indicates a PRD child has been generated and linked.
	IdeaStatusExpanded ArtifactStatus = "expanded"
)

// PRD statuses.
const (
	// PRDStatusDraft indicates a PRD exists but has not been chunked.
	PRDStatusDraft ArtifactStatus = "draft"

	// PRDStatusChunked indicates chunk children have been produced.
	// Chunking is the terminal transform for a PRD.
	PRDStatusChunked ArtifactStatus = "chunked"
)

// Chunk statuses.
const (
	// ChunkStatusBacklog indicates a chunk is awaiting validation.
	ChunkStatusBacklog ArtifactStatus = "backlog"

	// ChunkStatusValidated indicates the chunk passed validation.
	ChunkStatusValidated ArtifactStatus = "validated"

	// ChunkStatusNeedsRevision indicates the chunk failed validation and
	// requires external correction before re-entering the backlog.
	ChunkStatusNeedsRevision ArtifactStatus = "needs_revision"

	// ChunkStatusStorified indicates story children have been generated.
	ChunkStatusStorified ArtifactStatus = "storified"
)

// Story statuses.
const (
	// StoryStatusReady indicates a story is ready for implementation.
	StoryStatusReady ArtifactStatus = "ready"

	// StoryStatusInProgress indicates a sandbox run is executing the story.
	StoryStatusInProgress ArtifactStatus = "in_progress"

	// StoryStatusReviewPending indicates the sandbox run succeeded and the
	// changes await human review.
	StoryStatusReviewPending ArtifactStatus = "review_pending"

	// StoryStatusBlocked indicates the sandbox run failed. Terminal pending
	// human intervention.
	StoryStatusBlocked ArtifactStatus = "blocked"

	// StoryStatusCancelled indicates the caller aborted the sandbox run.
	// A story is never left in_progress without a terminal outcome.
	StoryStatusCancelled ArtifactStatus = "cancelled"
)

// Validation statuses.
const (
	// ValidationStatusCompleted is the only status a validation artifact
	// can hold; validation records are immutable once written.
	ValidationStatusCompleted ArtifactStatus = "completed"
)

// String returns the string representation of the ArtifactStatus.
func (s ArtifactStatus) String() string {
	return string(s)
}
