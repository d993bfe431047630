package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/domain"
	"github.com/ideaforge/fab/internal/errors"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func testArtifact(id string, typ constants.ArtifactType) *domain.Artifact {
	now := time.Now().UTC()
	return &domain.Artifact{
		ID:            id,
		Type:          typ,
		Status:        constants.IdeaStatusNew,
		ChildrenIDs:   []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: constants.ArtifactSchemaVersion,
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"idea-1a2b3c4d5e6f", true},
		{"prd-abcdef012345", true},
		{"chunk-000000000000", true},
		{"story-ffffffffffff", true},
		{"validation-1a2b3c4d5e6f", true},
		{"idea-xyz", false},
		{"widget-1a2b3c4d5e6f", false},
		{"idea-", false},
		{"", false},
		{"idea-1A2B3C4D5E6F", false},
		{"../../etc/passwd", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidID(tt.id))
		})
	}
}

func TestFileStore_PutGet(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		store := newTestFileStore(t)
		ctx := context.Background()

		a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
		require.NoError(t, store.Put(ctx, a))
		assert.Equal(t, int64(1), a.Revision)

		got, err := store.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, a.Type, got.Type)
		assert.Equal(t, a.Status, got.Status)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		store := newTestFileStore(t)
		ctx := context.Background()

		a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
		require.NoError(t, store.Put(ctx, a))

		err := store.Put(ctx, testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea))
		require.ErrorIs(t, err, errors.ErrInvariantViolation)
	})

	t.Run("missing record", func(t *testing.T) {
		store := newTestFileStore(t)

		_, err := store.Get(context.Background(), "idea-000000000000")
		require.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("id must match type prefix", func(t *testing.T) {
		store := newTestFileStore(t)

		a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeStory)
		err := store.Put(context.Background(), a)
		require.ErrorIs(t, err, errors.ErrInvariantViolation)
	})

	t.Run("malformed id rejected", func(t *testing.T) {
		store := newTestFileStore(t)

		a := testArtifact("not-an-id", constants.ArtifactTypeIdea)
		err := store.Put(context.Background(), a)
		require.ErrorIs(t, err, errors.ErrInvariantViolation)
	})
}

func TestFileStore_CompareAndSwap(t *testing.T) {
	t.Run("increments revision", func(t *testing.T) {
		store := newTestFileStore(t)
		ctx := context.Background()

		a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
		require.NoError(t, store.Put(ctx, a))

		a.Status = constants.IdeaStatusExpanded
		require.NoError(t, store.CompareAndSwap(ctx, a))
		assert.Equal(t, int64(2), a.Revision)

		got, err := store.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.IdeaStatusExpanded, got.Status)
		assert.Equal(t, int64(2), got.Revision)
	})

	t.Run("stale revision rejected", func(t *testing.T) {
		store := newTestFileStore(t)
		ctx := context.Background()

		a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
		require.NoError(t, store.Put(ctx, a))

		stale := a.Clone()
		a.Status = constants.IdeaStatusExpanded
		require.NoError(t, store.CompareAndSwap(ctx, a))

		stale.Status = constants.IdeaStatusNew
		err := store.CompareAndSwap(ctx, stale)
		require.ErrorIs(t, err, errors.ErrInvariantViolation)

		// The earlier write survived.
		got, err := store.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.IdeaStatusExpanded, got.Status)
	})

	t.Run("missing record", func(t *testing.T) {
		store := newTestFileStore(t)

		a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
		a.Revision = 1
		err := store.CompareAndSwap(context.Background(), a)
		require.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestFileStore_Delete(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
	require.NoError(t, store.Put(ctx, a))
	_, err := store.SaveContent(ctx, a.ID, []byte("body"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, a.ID))

	_, err = store.Get(ctx, a.ID)
	require.ErrorIs(t, err, errors.ErrNotFound)

	err = store.Delete(ctx, a.ID)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestFileStore_List(t *testing.T) {
	t.Run("empty registry", func(t *testing.T) {
		store := newTestFileStore(t)

		all, err := store.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("sorted oldest first", func(t *testing.T) {
		store := newTestFileStore(t)
		ctx := context.Background()

		older := testArtifact("idea-aaaaaaaaaaaa", constants.ArtifactTypeIdea)
		older.CreatedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		newer := testArtifact("prd-bbbbbbbbbbbb", constants.ArtifactTypePRD)
		newer.CreatedAt = time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

		require.NoError(t, store.Put(ctx, newer))
		require.NoError(t, store.Put(ctx, older))

		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, older.ID, all[0].ID)
		assert.Equal(t, newer.ID, all[1].ID)
	})

	t.Run("skips foreign directories", func(t *testing.T) {
		tmp := t.TempDir()
		store, err := NewFileStore(tmp)
		require.NoError(t, err)
		ctx := context.Background()

		a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
		require.NoError(t, store.Put(ctx, a))
		require.NoError(t, os.MkdirAll(filepath.Join(tmp, constants.RegistryDir, "not-an-artifact"), 0o750))

		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
	})
}

func TestFileStore_Content(t *testing.T) {
	t.Run("versions are append-only", func(t *testing.T) {
		store := newTestFileStore(t)
		ctx := context.Background()

		a := testArtifact("chunk-1a2b3c4d5e6f", constants.ArtifactTypeChunk)
		a.Status = constants.ChunkStatusBacklog
		require.NoError(t, store.Put(ctx, a))

		ref1, err := store.SaveContent(ctx, a.ID, []byte("first"))
		require.NoError(t, err)
		assert.Equal(t, "body.1.md", ref1)

		ref2, err := store.SaveContent(ctx, a.ID, []byte("second"))
		require.NoError(t, err)
		assert.Equal(t, "body.2.md", ref2)

		// Earlier versions remain readable.
		first, err := store.GetContent(ctx, a.ID, ref1)
		require.NoError(t, err)
		assert.Equal(t, "first", string(first))

		second, err := store.GetContent(ctx, a.ID, ref2)
		require.NoError(t, err)
		assert.Equal(t, "second", string(second))
	})

	t.Run("missing content", func(t *testing.T) {
		store := newTestFileStore(t)
		ctx := context.Background()

		a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
		require.NoError(t, store.Put(ctx, a))

		_, err := store.GetContent(ctx, a.ID, "body.9.md")
		require.ErrorIs(t, err, errors.ErrContentNotFound)
	})

	t.Run("traversal refs rejected", func(t *testing.T) {
		store := newTestFileStore(t)
		ctx := context.Background()

		a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
		require.NoError(t, store.Put(ctx, a))

		for _, ref := range []string{"../record.json", "a/b.md", `a\b.md`} {
			_, err := store.GetContent(ctx, a.ID, ref)
			require.ErrorIs(t, err, errors.ErrPathTraversal, "ref %q", ref)
		}
	})

	t.Run("content for missing artifact", func(t *testing.T) {
		store := newTestFileStore(t)

		_, err := store.SaveContent(context.Background(), "idea-000000000000", []byte("x"))
		require.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestFileStore_GetReturnsCopy(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
	require.NoError(t, store.Put(ctx, a))

	first, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	first.Status = constants.IdeaStatusExpanded

	second, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.IdeaStatusNew, second.Status)
}
