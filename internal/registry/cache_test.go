package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/domain"
	"github.com/ideaforge/fab/internal/errors"
	"github.com/ideaforge/fab/internal/testutil"
)

func newTestCachingStore(t *testing.T) (*CachingStore, *MemoryStore) {
	t.Helper()
	inner := NewMemoryStore()
	cached, err := NewCachingStore(inner, 8)
	require.NoError(t, err)
	return cached, inner
}

func TestCachingStore_GetPopulatesCache(t *testing.T) {
	cached, inner := newTestCachingStore(t)
	ctx := context.Background()

	a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
	require.NoError(t, inner.Put(ctx, a))

	// First read goes through to the inner store and caches.
	got, err := cached.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	// Delete underneath; the cache still serves the entry.
	require.NoError(t, inner.Delete(ctx, a.ID))
	got, err = cached.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestCachingStore_WritesRefreshCache(t *testing.T) {
	cached, _ := newTestCachingStore(t)
	ctx := context.Background()

	a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
	require.NoError(t, cached.Put(ctx, a))

	a.Status = constants.IdeaStatusExpanded
	require.NoError(t, cached.CompareAndSwap(ctx, a))

	got, err := cached.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.IdeaStatusExpanded, got.Status)
	assert.Equal(t, int64(2), got.Revision)
}

func TestCachingStore_FailedSwapEvicts(t *testing.T) {
	cached, inner := newTestCachingStore(t)
	ctx := context.Background()

	a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
	require.NoError(t, cached.Put(ctx, a))

	// Another writer advances the record through the inner store.
	behind, err := inner.Get(ctx, a.ID)
	require.NoError(t, err)
	behind.Status = constants.IdeaStatusExpanded
	require.NoError(t, inner.CompareAndSwap(ctx, behind))

	// The cached revision is now stale; the failed swap must evict it
	// so the next read sees the inner store's state.
	a.Status = constants.IdeaStatusExpanded
	err = cached.CompareAndSwap(ctx, a)
	require.ErrorIs(t, err, errors.ErrInvariantViolation)

	got, err := cached.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Revision)
}

func TestCachingStore_DeleteEvicts(t *testing.T) {
	cached, _ := newTestCachingStore(t)
	ctx := context.Background()

	a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
	require.NoError(t, cached.Put(ctx, a))
	require.NoError(t, cached.Delete(ctx, a.ID))

	_, err := cached.Get(ctx, a.ID)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCachingStore_ListBypassesCache(t *testing.T) {
	cached, inner := newTestCachingStore(t)
	ctx := context.Background()

	a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
	require.NoError(t, cached.Put(ctx, a))
	b := testArtifact("prd-bbbbbbbbbbbb", constants.ArtifactTypePRD)
	b.Status = constants.PRDStatusDraft
	require.NoError(t, inner.Put(ctx, b))

	all, err := cached.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCachingStore_ContentDelegates(t *testing.T) {
	cached, _ := newTestCachingStore(t)
	ctx := context.Background()

	a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
	require.NoError(t, cached.Put(ctx, a))

	ref, err := cached.SaveContent(ctx, a.ID, []byte("body"))
	require.NoError(t, err)

	body, err := cached.GetContent(ctx, a.ID, ref)
	require.NoError(t, err)
	assert.Equal(t, "body", string(body))
}

// failingStore returns ErrMockStoreUnavailable from every operation.
type failingStore struct{}

func (failingStore) Put(context.Context, *domain.Artifact) error { return testutil.ErrMockStoreUnavailable }
func (failingStore) Get(context.Context, string) (*domain.Artifact, error) {
	return nil, testutil.ErrMockStoreUnavailable
}
func (failingStore) CompareAndSwap(context.Context, *domain.Artifact) error {
	return testutil.ErrMockStoreUnavailable
}
func (failingStore) Delete(context.Context, string) error { return testutil.ErrMockStoreUnavailable }
func (failingStore) List(context.Context) ([]*domain.Artifact, error) {
	return nil, testutil.ErrMockStoreUnavailable
}
func (failingStore) SaveContent(context.Context, string, []byte) (string, error) {
	return "", testutil.ErrMockStoreUnavailable
}
func (failingStore) GetContent(context.Context, string, string) ([]byte, error) {
	return nil, testutil.ErrMockStoreUnavailable
}

func TestCachingStore_InnerFailurePropagates(t *testing.T) {
	cached, err := NewCachingStore(failingStore{}, 8)
	require.NoError(t, err)
	ctx := context.Background()

	a := testArtifact("idea-1a2b3c4d5e6f", constants.ArtifactTypeIdea)
	require.ErrorIs(t, cached.Put(ctx, a), testutil.ErrMockStoreUnavailable)

	// A failed write must not leave the record readable through the cache.
	_, err = cached.Get(ctx, a.ID)
	require.ErrorIs(t, err, testutil.ErrMockStoreUnavailable)
}
