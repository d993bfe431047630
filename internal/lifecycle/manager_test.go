package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaforge/fab/internal/clock"
	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/domain"
	"github.com/ideaforge/fab/internal/errors"
	"github.com/ideaforge/fab/internal/registry"
)

func newTestManager(t *testing.T) (*Manager, *registry.MemoryStore) {
	t.Helper()
	store := registry.NewMemoryStore()
	m := NewManager(store, WithClock(clock.Fixed{T: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}))
	return m, store
}

// registerLineage creates idea → prd → chunk and returns all three.
func registerLineage(t *testing.T, m *Manager) (idea, prd, chunk *domain.Artifact) {
	t.Helper()
	ctx := context.Background()

	idea, err := m.Register(ctx, constants.ArtifactTypeIdea, "", []byte("an idea"))
	require.NoError(t, err)

	prds, err := m.LinkChildren(ctx, idea.ID, constants.ArtifactTypePRD, []ChildSpec{{Body: []byte("# PRD")}})
	require.NoError(t, err)
	prd = prds[0]

	chunks, err := m.LinkChildren(ctx, prd.ID, constants.ArtifactTypeChunk, []ChildSpec{{Body: []byte("# Chunk")}})
	require.NoError(t, err)
	chunk = chunks[0]
	return idea, prd, chunk
}

func TestManager_Register(t *testing.T) {
	t.Run("idea starts in new with content", func(t *testing.T) {
		m, store := newTestManager(t)
		ctx := context.Background()

		idea, err := m.Register(ctx, constants.ArtifactTypeIdea, "", []byte("build a rate limiter"))
		require.NoError(t, err)

		assert.Regexp(t, `^idea-[0-9a-f]{12}$`, idea.ID)
		assert.Equal(t, constants.IdeaStatusNew, idea.Status)
		assert.Empty(t, idea.ParentID)
		assert.Equal(t, constants.ArtifactSchemaVersion, idea.SchemaVersion)

		body, err := store.GetContent(ctx, idea.ID, idea.ContentRef)
		require.NoError(t, err)
		assert.Equal(t, "build a rate limiter", string(body))
	})

	t.Run("idea rejects a parent", func(t *testing.T) {
		m, _ := newTestManager(t)

		_, err := m.Register(context.Background(), constants.ArtifactTypeIdea, "idea-aaaaaaaaaaaa", []byte("x"))
		require.ErrorIs(t, err, errors.ErrInvalidLineage)
	})

	t.Run("prd requires an existing idea parent", func(t *testing.T) {
		m, store := newTestManager(t)
		ctx := context.Background()

		_, err := m.Register(ctx, constants.ArtifactTypePRD, "", []byte("x"))
		require.ErrorIs(t, err, errors.ErrInvalidLineage)

		_, err = m.Register(ctx, constants.ArtifactTypePRD, "idea-000000000000", []byte("x"))
		require.ErrorIs(t, err, errors.ErrInvalidLineage)

		// No partial record may survive a lineage failure.
		all, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("parent of wrong type is rejected", func(t *testing.T) {
		m, _ := newTestManager(t)
		ctx := context.Background()

		idea, err := m.Register(ctx, constants.ArtifactTypeIdea, "", []byte("x"))
		require.NoError(t, err)

		_, err = m.Register(ctx, constants.ArtifactTypeChunk, idea.ID, []byte("x"))
		require.ErrorIs(t, err, errors.ErrInvalidLineage)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		m, _ := newTestManager(t)

		_, err := m.Register(context.Background(), constants.ArtifactType("widget"), "", nil)
		require.ErrorIs(t, err, errors.ErrInvariantViolation)
	})
}

func TestManager_Transition(t *testing.T) {
	t.Run("legal transition appends audit record", func(t *testing.T) {
		m, _ := newTestManager(t)
		ctx := context.Background()

		_, _, chunk := registerLineage(t, m)
		stories, err := m.LinkChildren(ctx, mustValidated(t, m, chunk).ID, constants.ArtifactTypeStory, []ChildSpec{{Body: []byte("story")}})
		require.NoError(t, err)
		story := stories[0]

		got, err := m.Transition(ctx, story.ID, constants.StoryStatusInProgress, "implementation started")
		require.NoError(t, err)
		assert.Equal(t, constants.StoryStatusInProgress, got.Status)
		require.Len(t, got.Transitions, 1)
		assert.Equal(t, constants.StoryStatusReady, got.Transitions[0].FromStatus)
		assert.Equal(t, constants.StoryStatusInProgress, got.Transitions[0].ToStatus)
		assert.Equal(t, "implementation started", got.Transitions[0].Reason)
	})

	t.Run("illegal transition leaves record unchanged", func(t *testing.T) {
		m, store := newTestManager(t)
		ctx := context.Background()

		idea, err := m.Register(ctx, constants.ArtifactTypeIdea, "", []byte("x"))
		require.NoError(t, err)

		_, err = m.Transition(ctx, idea.ID, constants.StoryStatusBlocked, "")
		require.ErrorIs(t, err, errors.ErrIllegalTransition)

		stored, err := store.Get(ctx, idea.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.IdeaStatusNew, stored.Status)
		assert.Empty(t, stored.Transitions)
	})

	t.Run("missing artifact", func(t *testing.T) {
		m, _ := newTestManager(t)

		_, err := m.Transition(context.Background(), "story-000000000000", constants.StoryStatusInProgress, "")
		require.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestManager_LinkChildren(t *testing.T) {
	t.Run("advances parent and links all children", func(t *testing.T) {
		m, store := newTestManager(t)
		ctx := context.Background()

		idea, err := m.Register(ctx, constants.ArtifactTypeIdea, "", []byte("x"))
		require.NoError(t, err)

		prds, err := m.LinkChildren(ctx, idea.ID, constants.ArtifactTypePRD, []ChildSpec{{
			Body:     []byte("# PRD"),
			Metadata: map[string]any{domain.MetaTitle: "PRD"},
		}})
		require.NoError(t, err)
		require.Len(t, prds, 1)
		assert.Equal(t, "PRD", prds[0].MetaString(domain.MetaTitle))

		parent, err := store.Get(ctx, idea.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.IdeaStatusExpanded, parent.Status)
		assert.Equal(t, []string{prds[0].ID}, parent.ChildrenIDs)
	})

	t.Run("already advanced parent accepts more children", func(t *testing.T) {
		m, store := newTestManager(t)
		ctx := context.Background()

		_, prd, _ := registerLineage(t, m)

		more, err := m.LinkChildren(ctx, prd.ID, constants.ArtifactTypeChunk, []ChildSpec{{Body: []byte("late chunk")}})
		require.NoError(t, err)

		parent, err := store.Get(ctx, prd.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.PRDStatusChunked, parent.Status)
		assert.Len(t, parent.ChildrenIDs, 2)
		assert.Contains(t, parent.ChildrenIDs, more[0].ID)
		// Status did not change again, so no extra audit record.
		assert.Len(t, parent.Transitions, 1)
	})

	t.Run("no children is an error", func(t *testing.T) {
		m, _ := newTestManager(t)
		ctx := context.Background()

		idea, err := m.Register(ctx, constants.ArtifactTypeIdea, "", []byte("x"))
		require.NoError(t, err)

		_, err = m.LinkChildren(ctx, idea.ID, constants.ArtifactTypePRD, nil)
		require.ErrorIs(t, err, errors.ErrEmptyValue)
	})

	t.Run("story parent does not take pipeline children", func(t *testing.T) {
		m, _ := newTestManager(t)
		ctx := context.Background()

		_, _, chunk := registerLineage(t, m)
		stories, err := m.LinkChildren(ctx, mustValidated(t, m, chunk).ID, constants.ArtifactTypeStory, []ChildSpec{{Body: []byte("s")}})
		require.NoError(t, err)

		_, err = m.LinkChildren(ctx, stories[0].ID, constants.ArtifactTypeStory, []ChildSpec{{Body: []byte("x")}})
		require.ErrorIs(t, err, errors.ErrInvalidLineage)
	})

	t.Run("failed child rolls back the batch", func(t *testing.T) {
		m, store := newTestManager(t)
		ctx := context.Background()

		idea, err := m.Register(ctx, constants.ArtifactTypeIdea, "", []byte("x"))
		require.NoError(t, err)

		// A chunk child under an idea fails lineage after the first prd
		// was already created; everything must roll back.
		_, err = m.LinkChildren(ctx, idea.ID, constants.ArtifactTypeChunk, []ChildSpec{{Body: []byte("c")}})
		require.Error(t, err)

		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, idea.ID, all[0].ID)
		assert.Equal(t, constants.IdeaStatusNew, all[0].Status)
	})
}

// mustValidated records a passing validation for the chunk and returns it.
func mustValidated(t *testing.T, m *Manager, chunk *domain.Artifact) *domain.Artifact {
	t.Helper()
	_, validated, err := m.RecordValidation(context.Background(), chunk.ID, true, "staff engineer", []byte("looks good"))
	require.NoError(t, err)
	return validated
}

func TestManager_RecordValidation(t *testing.T) {
	t.Run("pass moves chunk to validated", func(t *testing.T) {
		m, store := newTestManager(t)
		ctx := context.Background()

		_, _, chunk := registerLineage(t, m)

		verdict, updated, err := m.RecordValidation(ctx, chunk.ID, true, "security reviewer", []byte("report"))
		require.NoError(t, err)

		assert.Equal(t, constants.ArtifactTypeValidation, verdict.Type)
		assert.Equal(t, constants.ValidationStatusCompleted, verdict.Status)
		assert.Equal(t, chunk.ID, verdict.ParentID)
		assert.Equal(t, true, verdict.Metadata[domain.MetaPassed])
		assert.Equal(t, "security reviewer", verdict.MetaString(domain.MetaPersona))

		assert.Equal(t, constants.ChunkStatusValidated, updated.Status)
		assert.Contains(t, updated.ChildrenIDs, verdict.ID)

		body, err := store.GetContent(ctx, verdict.ID, verdict.ContentRef)
		require.NoError(t, err)
		assert.Equal(t, "report", string(body))
	})

	t.Run("fail moves chunk to needs_revision and back to backlog on resubmit", func(t *testing.T) {
		m, _ := newTestManager(t)
		ctx := context.Background()

		_, _, chunk := registerLineage(t, m)

		_, updated, err := m.RecordValidation(ctx, chunk.ID, false, "", []byte("too vague"))
		require.NoError(t, err)
		assert.Equal(t, constants.ChunkStatusNeedsRevision, updated.Status)

		back, err := m.Transition(ctx, chunk.ID, constants.ChunkStatusBacklog, "corrected")
		require.NoError(t, err)
		assert.Equal(t, constants.ChunkStatusBacklog, back.Status)

		// Second round can now pass.
		_, revalidated, err := m.RecordValidation(ctx, chunk.ID, true, "", []byte("fixed"))
		require.NoError(t, err)
		assert.Equal(t, constants.ChunkStatusValidated, revalidated.Status)
		assert.Len(t, revalidated.ChildrenIDs, 2)
	})

	t.Run("non-chunk target is a type mismatch", func(t *testing.T) {
		m, _ := newTestManager(t)
		ctx := context.Background()

		idea, err := m.Register(ctx, constants.ArtifactTypeIdea, "", []byte("x"))
		require.NoError(t, err)

		_, _, err = m.RecordValidation(ctx, idea.ID, true, "", nil)
		require.ErrorIs(t, err, errors.ErrTypeMismatch)
	})

	t.Run("storified chunk cannot be validated again", func(t *testing.T) {
		m, store := newTestManager(t)
		ctx := context.Background()

		_, _, chunk := registerLineage(t, m)
		validated := mustValidated(t, m, chunk)
		_, err := m.LinkChildren(ctx, validated.ID, constants.ArtifactTypeStory, []ChildSpec{{Body: []byte("s")}})
		require.NoError(t, err)

		before, err := store.List(ctx)
		require.NoError(t, err)

		_, _, err = m.RecordValidation(ctx, chunk.ID, true, "", nil)
		require.ErrorIs(t, err, errors.ErrIllegalTransition)

		// No orphaned validation artifact was left behind.
		after, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})
}

func TestManager_UpdateMetadata(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	idea, err := m.Register(ctx, constants.ArtifactTypeIdea, "", []byte("x"))
	require.NoError(t, err)

	updated, err := m.UpdateMetadata(ctx, idea.ID, map[string]any{
		domain.MetaTitle:         "rate limiter",
		domain.MetaFailureReason: "prd stage: timeout",
	})
	require.NoError(t, err)
	assert.Equal(t, "rate limiter", updated.MetaString(domain.MetaTitle))

	stored, err := store.Get(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, "prd stage: timeout", stored.MetaString(domain.MetaFailureReason))
	assert.Equal(t, constants.IdeaStatusNew, stored.Status)
}

func TestManager_ReplaceContent(t *testing.T) {
	t.Run("appends a version and repoints the record", func(t *testing.T) {
		m, store := newTestManager(t)
		ctx := context.Background()
		_, _, chunk := registerLineage(t, m)

		updated, err := m.ReplaceContent(ctx, chunk.ID, []byte("# Chunk v2"))
		require.NoError(t, err)
		assert.NotEqual(t, chunk.ContentRef, updated.ContentRef)

		body, err := store.GetContent(ctx, chunk.ID, updated.ContentRef)
		require.NoError(t, err)
		assert.Equal(t, "# Chunk v2", string(body))

		// The first version stays readable.
		body, err = store.GetContent(ctx, chunk.ID, chunk.ContentRef)
		require.NoError(t, err)
		assert.Equal(t, "# Chunk", string(body))
	})

	t.Run("empty body rejected", func(t *testing.T) {
		m, _ := newTestManager(t)
		_, _, chunk := registerLineage(t, m)

		_, err := m.ReplaceContent(context.Background(), chunk.ID, nil)
		require.ErrorIs(t, err, errors.ErrEmptyValue)
	})

	t.Run("missing artifact", func(t *testing.T) {
		m, _ := newTestManager(t)

		_, err := m.ReplaceContent(context.Background(), "chunk-000000000000", []byte("x"))
		require.ErrorIs(t, err, errors.ErrNotFound)
	})
}
