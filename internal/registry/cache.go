package registry

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/domain"
)

// CachingStore layers an LRU record cache over another Store. Reads are
// served from the cache when possible; every successful write refreshes
// or invalidates the cached entry, so the cache never serves a record
// older than the last write through this store.
//
// Content bodies are not cached: they are append-only and read rarely.
type CachingStore struct {
	inner Store
	cache *lru.Cache[string, *domain.Artifact]
}

// NewCachingStore wraps inner with an LRU cache of the given size.
// A size of zero uses constants.RecordCacheSize.
func NewCachingStore(inner Store, size int) (*CachingStore, error) {
	if size <= 0 {
		size = constants.RecordCacheSize
	}
	c, err := lru.New[string, *domain.Artifact](size)
	if err != nil {
		return nil, err
	}
	return &CachingStore{inner: inner, cache: c}, nil
}

// Put creates a new record and caches it.
func (s *CachingStore) Put(ctx context.Context, artifact *domain.Artifact) error {
	if err := s.inner.Put(ctx, artifact); err != nil {
		return err
	}
	s.cache.Add(artifact.ID, artifact.Clone())
	return nil
}

// Get retrieves a record, preferring the cache.
func (s *CachingStore) Get(ctx context.Context, id string) (*domain.Artifact, error) {
	if a, ok := s.cache.Get(id); ok {
		return a.Clone(), nil
	}
	a, err := s.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, a.Clone())
	return a, nil
}

// CompareAndSwap persists an update and refreshes the cache entry.
func (s *CachingStore) CompareAndSwap(ctx context.Context, artifact *domain.Artifact) error {
	if err := s.inner.CompareAndSwap(ctx, artifact); err != nil {
		// The write may have failed against state newer than our cache.
		s.cache.Remove(artifact.ID)
		return err
	}
	s.cache.Add(artifact.ID, artifact.Clone())
	return nil
}

// Delete removes a record and evicts it from the cache.
func (s *CachingStore) Delete(ctx context.Context, id string) error {
	s.cache.Remove(id)
	return s.inner.Delete(ctx, id)
}

// List delegates to the inner store; listing bypasses the cache to avoid
// serving a partial view.
func (s *CachingStore) List(ctx context.Context) ([]*domain.Artifact, error) {
	return s.inner.List(ctx)
}

// SaveContent delegates to the inner store.
func (s *CachingStore) SaveContent(ctx context.Context, id string, body []byte) (string, error) {
	return s.inner.SaveContent(ctx, id, body)
}

// GetContent delegates to the inner store.
func (s *CachingStore) GetContent(ctx context.Context, id, ref string) ([]byte, error) {
	return s.inner.GetContent(ctx, id, ref)
}

// Compile-time check that CachingStore implements Store.
var _ Store = (*CachingStore)(nil)
