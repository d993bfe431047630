package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/domain"
	faberrors "github.com/ideaforge/fab/internal/errors"
	"github.com/ideaforge/fab/internal/flock"
)

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// validArtifactIDRegex matches valid artifact IDs (type prefix plus a
// lowercase hex suffix).
var validArtifactIDRegex = regexp.MustCompile(`^(idea|prd|chunk|story|validation)-[0-9a-f]{8,32}$`)

// ValidID reports whether id is a well-formed artifact identifier.
func ValidID(id string) bool {
	return validArtifactIDRegex.MatchString(id)
}

// FileStore implements Store using the local filesystem. Each artifact
// occupies one directory under <fabHome>/registry/<id>/ holding
// record.json, a lock file, and append-only content bodies. Record writes
// are atomic (write-then-rename) and serialized by a per-record flock, so
// concurrent readers never observe a partially written record.
type FileStore struct {
	fabHome string // Usually ~/.fab
}

// NewFileStore creates a FileStore rooted at the given FAB home directory.
// If fabHome is empty, uses the default ~/.fab directory.
func NewFileStore(fabHome string) (*FileStore, error) {
	if fabHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		fabHome = filepath.Join(home, constants.FabHome)
	}
	return &FileStore{fabHome: fabHome}, nil
}

// Put creates a new record.
func (s *FileStore) Put(ctx context.Context, artifact *domain.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(artifact); err != nil {
		return err
	}

	dir := s.artifactDir(artifact.ID)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("artifact '%s' already exists: %w", artifact.ID, faberrors.ErrInvariantViolation)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	artifact.SchemaVersion = constants.ArtifactSchemaVersion
	if artifact.Revision == 0 {
		artifact.Revision = 1
	}

	lockFile, err := s.acquireLock(ctx, artifact.ID)
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to create artifact '%s': %w", artifact.ID, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	if err := s.writeRecord(artifact); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to create artifact '%s': %w", artifact.ID, err)
	}
	return nil
}

// Get retrieves a record by id.
func (s *FileStore) Get(ctx context.Context, id string) (*domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("failed to get artifact: id %w", faberrors.ErrEmptyValue)
	}

	dir := s.artifactDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("artifact '%s': %w", id, faberrors.ErrNotFound)
	}

	lockFile, err := s.acquireLock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact '%s': %w", id, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	return s.readRecord(id)
}

// CompareAndSwap persists an updated record if the stored revision matches.
func (s *FileStore) CompareAndSwap(ctx context.Context, artifact *domain.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(artifact); err != nil {
		return err
	}

	dir := s.artifactDir(artifact.ID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("artifact '%s': %w", artifact.ID, faberrors.ErrNotFound)
	}

	lockFile, err := s.acquireLock(ctx, artifact.ID)
	if err != nil {
		return fmt.Errorf("failed to update artifact '%s': %w", artifact.ID, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	current, err := s.readRecord(artifact.ID)
	if err != nil {
		return err
	}
	if current.Revision != artifact.Revision {
		return fmt.Errorf("artifact '%s' revision %d is stale (stored %d): %w",
			artifact.ID, artifact.Revision, current.Revision, faberrors.ErrInvariantViolation)
	}
	if current.ID != artifact.ID || current.Type != artifact.Type {
		return fmt.Errorf("artifact '%s' identity fields are immutable: %w",
			artifact.ID, faberrors.ErrInvariantViolation)
	}

	artifact.Revision++
	artifact.UpdatedAt = time.Now().UTC()
	if err := s.writeRecord(artifact); err != nil {
		artifact.Revision--
		return fmt.Errorf("failed to update artifact '%s': %w", artifact.ID, err)
	}
	return nil
}

// Delete removes a record and its content bodies.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("failed to delete artifact: id %w", faberrors.ErrEmptyValue)
	}

	dir := s.artifactDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("artifact '%s': %w", id, faberrors.ErrNotFound)
	}

	// Acquire the lock to drain concurrent writers, then release before
	// removal since the lock file lives inside the artifact directory.
	lockFile, err := s.acquireLock(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete artifact '%s': %w", id, err)
	}
	_ = s.releaseLock(lockFile)

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete artifact '%s': %w", id, err)
	}
	return nil
}

// List returns all records, sorted by creation time (oldest first).
func (s *FileStore) List(ctx context.Context) ([]*domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root := s.registryDir()
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return []*domain.Artifact{}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	artifacts := make([]*domain.Artifact, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !ValidID(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := s.Get(ctx, entry.Name())
		if err != nil {
			// Skip directories without a readable record.
			continue
		}
		artifacts = append(artifacts, a)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].ID < artifacts[j].ID
		}
		return artifacts[i].CreatedAt.Before(artifacts[j].CreatedAt)
	})
	return artifacts, nil
}

// SaveContent appends a new versioned content body and returns its ref.
func (s *FileStore) SaveContent(ctx context.Context, id string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("failed to save content: id %w", faberrors.ErrEmptyValue)
	}

	dir := s.artifactDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("artifact '%s': %w", id, faberrors.ErrNotFound)
	}

	ext := filepath.Ext(constants.ContentBaseName)
	base := strings.TrimSuffix(constants.ContentBaseName, ext)

	version := 1
	for {
		ref := fmt.Sprintf("%s.%d%s", base, version, ext)
		full := filepath.Join(dir, ref)
		if _, err := os.Stat(full); os.IsNotExist(err) {
			if err := atomicWrite(full, body); err != nil {
				return "", fmt.Errorf("failed to save content for '%s': %w", id, err)
			}
			return ref, nil
		}
		version++
		if version > 10000 {
			return "", fmt.Errorf("failed to save content for '%s': %w", id, faberrors.ErrTooManyVersions)
		}
	}
}

// GetContent retrieves a content body by ref.
func (s *FileStore) GetContent(ctx context.Context, id, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" || ref == "" {
		return nil, fmt.Errorf("failed to get content: %w", faberrors.ErrEmptyValue)
	}
	if strings.Contains(ref, "..") || strings.ContainsAny(ref, `/\`) {
		return nil, fmt.Errorf("failed to get content: %w", faberrors.ErrPathTraversal)
	}

	data, err := os.ReadFile(filepath.Join(s.artifactDir(id), ref)) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content '%s' for artifact '%s': %w", ref, id, faberrors.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to read content '%s': %w", ref, err)
	}
	return data, nil
}

// validateRecord checks the structural fields required for persistence.
func validateRecord(a *domain.Artifact) error {
	if a == nil {
		return fmt.Errorf("artifact %w", faberrors.ErrEmptyValue)
	}
	if a.ID == "" {
		return fmt.Errorf("artifact id %w", faberrors.ErrEmptyValue)
	}
	if !ValidID(a.ID) {
		return fmt.Errorf("artifact id '%s' is malformed: %w", a.ID, faberrors.ErrInvariantViolation)
	}
	if !strings.HasPrefix(a.ID, a.Type.IDPrefix()) {
		return fmt.Errorf("artifact id '%s' does not match type '%s': %w",
			a.ID, a.Type, faberrors.ErrInvariantViolation)
	}
	return nil
}

// Path helpers.

func (s *FileStore) registryDir() string {
	return filepath.Join(s.fabHome, constants.RegistryDir)
}

func (s *FileStore) artifactDir(id string) string {
	return filepath.Join(s.registryDir(), id)
}

func (s *FileStore) recordPath(id string) string {
	return filepath.Join(s.artifactDir(id), constants.RecordFileName)
}

func (s *FileStore) lockPath(id string) string {
	return filepath.Join(s.artifactDir(id), constants.RecordFileName+".lock")
}

// readRecord reads and parses a record file. Caller holds the lock.
func (s *FileStore) readRecord(id string) (*domain.Artifact, error) {
	data, err := os.ReadFile(s.recordPath(id)) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact '%s': %w", id, faberrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read artifact '%s': %w", id, err)
	}
	var a domain.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse artifact '%s': corrupted record: %w", id, err)
	}
	return &a, nil
}

// writeRecord marshals and atomically writes a record. Caller holds the lock.
func (s *FileStore) writeRecord(a *domain.Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.recordPath(a.ID), data)
}

// acquireLock acquires an exclusive per-record file lock, retrying until
// constants.LockTimeout. It respects context cancellation during the
// retry loop.
func (s *FileStore) acquireLock(ctx context.Context, id string) (*os.File, error) {
	if err := os.MkdirAll(s.artifactDir(id), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(s.lockPath(id), os.O_CREATE|os.O_RDWR, filePerm) //#nosec G302,G304 -- lock file needs write access, path is constructed from validated id
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(constants.LockTimeout)
	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		default:
		}

		if err := flock.Exclusive(f.Fd()); err == nil {
			return f, nil
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock: %w", faberrors.ErrLockTimeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// releaseLock releases a file lock.
func (s *FileStore) releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}
	if err := flock.Unlock(f.Fd()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return f.Close()
}

// atomicWrite writes data to a file atomically using write-then-rename.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}
	// Data must reach disk before the rename publishes it.
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Compile-time check that FileStore implements Store.
var _ Store = (*FileStore)(nil)
