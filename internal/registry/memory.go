package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/domain"
	faberrors "github.com/ideaforge/fab/internal/errors"
)

// MemoryStore implements Store with an in-memory map. It is the test
// double for FileStore and is safe for concurrent use. Records are
// deep-copied on the way in and out so callers never share state with
// the store.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]*domain.Artifact
	contents map[string]map[string][]byte // id -> ref -> body
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]*domain.Artifact),
		contents: make(map[string]map[string][]byte),
	}
}

// Put creates a new record.
func (s *MemoryStore) Put(ctx context.Context, artifact *domain.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(artifact); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[artifact.ID]; ok {
		return fmt.Errorf("artifact '%s' already exists: %w", artifact.ID, faberrors.ErrInvariantViolation)
	}
	artifact.SchemaVersion = constants.ArtifactSchemaVersion
	if artifact.Revision == 0 {
		artifact.Revision = 1
	}
	s.records[artifact.ID] = artifact.Clone()
	return nil
}

// Get retrieves a record by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("artifact '%s': %w", id, faberrors.ErrNotFound)
	}
	return a.Clone(), nil
}

// CompareAndSwap persists an updated record if the stored revision matches.
func (s *MemoryStore) CompareAndSwap(ctx context.Context, artifact *domain.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(artifact); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[artifact.ID]
	if !ok {
		return fmt.Errorf("artifact '%s': %w", artifact.ID, faberrors.ErrNotFound)
	}
	if current.Revision != artifact.Revision {
		return fmt.Errorf("artifact '%s' revision %d is stale (stored %d): %w",
			artifact.ID, artifact.Revision, current.Revision, faberrors.ErrInvariantViolation)
	}
	if current.Type != artifact.Type {
		return fmt.Errorf("artifact '%s' identity fields are immutable: %w",
			artifact.ID, faberrors.ErrInvariantViolation)
	}

	artifact.Revision++
	artifact.UpdatedAt = time.Now().UTC()
	s.records[artifact.ID] = artifact.Clone()
	return nil
}

// Delete removes a record and its content bodies.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("artifact '%s': %w", id, faberrors.ErrNotFound)
	}
	delete(s.records, id)
	delete(s.contents, id)
	return nil
}

// List returns all records, sorted by creation time (oldest first).
func (s *MemoryStore) List(ctx context.Context) ([]*domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Artifact, 0, len(s.records))
	for _, a := range s.records {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// SaveContent appends a new versioned content body and returns its ref.
func (s *MemoryStore) SaveContent(ctx context.Context, id string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return "", fmt.Errorf("artifact '%s': %w", id, faberrors.ErrNotFound)
	}
	if s.contents[id] == nil {
		s.contents[id] = make(map[string][]byte)
	}
	ref := fmt.Sprintf("body.%d.md", len(s.contents[id])+1)
	buf := make([]byte, len(body))
	copy(buf, body)
	s.contents[id][ref] = buf
	return ref, nil
}

// GetContent retrieves a content body by ref.
func (s *MemoryStore) GetContent(ctx context.Context, id, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	body, ok := s.contents[id][ref]
	if !ok {
		return nil, fmt.Errorf("content '%s' for artifact '%s': %w", ref, id, faberrors.ErrContentNotFound)
	}
	buf := make([]byte, len(body))
	copy(buf, body)
	return buf, nil
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
