package lifecycle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ideaforge/fab/internal/clock"
	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/ctxutil"
	"github.com/ideaforge/fab/internal/domain"
	faberrors "github.com/ideaforge/fab/internal/errors"
	"github.com/ideaforge/fab/internal/registry"
)

// Manager gates and applies every artifact mutation. It is the sole
// writer of artifact records: registration, status transitions, and
// lineage linking all funnel through it so registry invariants hold.
//
// Mutations are serialized per artifact id with an in-process keyed
// mutex; the store's compare-and-swap catches writers from other
// processes.
type Manager struct {
	store  registry.Store
	clk    clock.Clock
	logger zerolog.Logger
	locks  *keyedMutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the clock used for record timestamps.
func WithClock(clk clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clk = clk
	}
}

// WithLogger sets the manager's logger.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a lifecycle manager backed by the given store.
func NewManager(store registry.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		clk:    clock.RealClock{},
		logger: zerolog.Nop(),
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register validates lineage and creates a new artifact in its initial
// status, with body persisted as the first content version.
//
// Ideas take no parent; every other type requires an existing parent of
// the preceding type. Fails with ErrInvalidLineage if the parent is
// missing or of the wrong type; no partial record is created.
//
// Register does not link the child into the parent's children list --
// that is LinkChildren's job, so the link and the parent's status advance
// stay atomic.
func (m *Manager) Register(ctx context.Context, typ constants.ArtifactType, parentID string, body []byte) (*domain.Artifact, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if !KnownType(typ) {
		return nil, fmt.Errorf("unknown artifact type '%s': %w", typ, faberrors.ErrInvariantViolation)
	}

	if err := m.checkLineage(ctx, typ, parentID); err != nil {
		return nil, err
	}

	now := m.clk.Now().UTC()
	artifact := &domain.Artifact{
		ID:            NewID(typ),
		Type:          typ,
		Status:        InitialStatus(typ),
		ParentID:      parentID,
		ChildrenIDs:   []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: constants.ArtifactSchemaVersion,
	}

	if err := m.store.Put(ctx, artifact); err != nil {
		return nil, faberrors.Wrapf(err, "failed to register %s", typ)
	}

	if len(body) > 0 {
		ref, err := m.store.SaveContent(ctx, artifact.ID, body)
		if err != nil {
			// Roll back so no partial record survives.
			_ = m.store.Delete(ctx, artifact.ID)
			return nil, faberrors.Wrapf(err, "failed to store content for %s", artifact.ID)
		}
		artifact.ContentRef = ref
		if err := m.store.CompareAndSwap(ctx, artifact); err != nil {
			_ = m.store.Delete(ctx, artifact.ID)
			return nil, faberrors.Wrapf(err, "failed to finalize %s", artifact.ID)
		}
	}

	m.logger.Info().
		Str("artifact_id", artifact.ID).
		Str("type", string(typ)).
		Str("parent_id", parentID).
		Msg("registered artifact")

	return artifact, nil
}

// checkLineage verifies the parent requirement for typ.
func (m *Manager) checkLineage(ctx context.Context, typ constants.ArtifactType, parentID string) error {
	wantParent, takesParent := ParentType(typ)
	if !takesParent {
		if parentID != "" {
			return fmt.Errorf("%s artifacts take no parent: %w", typ, faberrors.ErrInvalidLineage)
		}
		return nil
	}
	if parentID == "" {
		return fmt.Errorf("%s artifacts require a %s parent: %w", typ, wantParent, faberrors.ErrInvalidLineage)
	}
	parent, err := m.store.Get(ctx, parentID)
	if err != nil {
		return fmt.Errorf("parent '%s' for new %s: %w", parentID, typ, faberrors.ErrInvalidLineage)
	}
	if parent.Type != wantParent {
		return fmt.Errorf("parent '%s' is a %s, %s requires a %s: %w",
			parentID, parent.Type, typ, wantParent, faberrors.ErrInvalidLineage)
	}
	return nil
}

// Transition looks up the artifact, applies the single legal transition
// matching its type and the target status, and persists the update.
// Fails with ErrIllegalTransition if no matching edge exists for the
// current status; the record is left unchanged on any failure.
func (m *Manager) Transition(ctx context.Context, id string, to constants.ArtifactStatus, reason string) (*domain.Artifact, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	artifact, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := m.applyTransition(artifact, to, reason); err != nil {
		return nil, err
	}

	if err := m.store.CompareAndSwap(ctx, artifact); err != nil {
		return nil, faberrors.Wrapf(err, "failed to persist transition for %s", id)
	}

	m.logger.Info().
		Str("artifact_id", id).
		Str("from", string(artifact.Transitions[len(artifact.Transitions)-1].FromStatus)).
		Str("to", string(to)).
		Str("reason", reason).
		Msg("artifact transitioned")

	return artifact, nil
}

// applyTransition mutates the in-memory record after validating the edge.
func (m *Manager) applyTransition(artifact *domain.Artifact, to constants.ArtifactStatus, reason string) error {
	from := artifact.Status
	if !IsValidTransition(artifact.Type, from, to) {
		return fmt.Errorf("%s '%s' cannot transition from %s to %s: %w",
			artifact.Type, artifact.ID, from, to, faberrors.ErrIllegalTransition)
	}

	now := m.clk.Now().UTC()
	artifact.Transitions = append(artifact.Transitions, domain.Transition{
		FromStatus: from,
		ToStatus:   to,
		Timestamp:  now,
		Reason:     reason,
	})
	artifact.Status = to
	artifact.UpdatedAt = now
	return nil
}

// ChildSpec describes one child artifact to be created by LinkChildren.
type ChildSpec struct {
	// Body is the child's content.
	Body []byte

	// Metadata is merged into the child's metadata bag at creation.
	Metadata map[string]any
}

// LinkChildren atomically registers children of childType under parentID,
// links them into the parent's children list, and advances the parent's
// status (idea → expanded, prd → chunked, chunk → storified). Either all
// children are linked and the parent advances, or none are: on any
// failure the created children are rolled back and the parent keeps its
// prior status.
func (m *Manager) LinkChildren(ctx context.Context, parentID string, childType constants.ArtifactType, specs []ChildSpec) ([]*domain.Artifact, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no children to link: %w", faberrors.ErrEmptyValue)
	}

	m.locks.Lock(parentID)
	defer m.locks.Unlock(parentID)

	parent, err := m.store.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}

	advance, ok := linkAdvance[parent.Type]
	if !ok {
		return nil, fmt.Errorf("%s '%s' does not take pipeline children: %w",
			parent.Type, parentID, faberrors.ErrInvalidLineage)
	}
	// Idempotent re-entry: a parent that already advanced may accept more
	// children without a status change. Validate the advance edge before
	// creating anything otherwise.
	alreadyAdvanced := parent.Status == advance
	if !alreadyAdvanced && !IsValidTransition(parent.Type, parent.Status, advance) {
		return nil, fmt.Errorf("%s '%s' in status %s cannot accept children: %w",
			parent.Type, parentID, parent.Status, faberrors.ErrIllegalTransition)
	}

	children := make([]*domain.Artifact, 0, len(specs))
	rollback := func() {
		for _, c := range children {
			_ = m.store.Delete(ctx, c.ID)
		}
	}

	for _, spec := range specs {
		child, err := m.Register(ctx, childType, parentID, spec.Body)
		if err != nil {
			rollback()
			return nil, faberrors.Wrapf(err, "failed to link children under %s", parentID)
		}
		if len(spec.Metadata) > 0 {
			for k, v := range spec.Metadata {
				child.SetMeta(k, v)
			}
			if err := m.store.CompareAndSwap(ctx, child); err != nil {
				children = append(children, child)
				rollback()
				return nil, faberrors.Wrapf(err, "failed to link children under %s", parentID)
			}
		}
		children = append(children, child)
	}

	for _, c := range children {
		parent.ChildrenIDs = append(parent.ChildrenIDs, c.ID)
	}
	if alreadyAdvanced {
		parent.UpdatedAt = m.clk.Now().UTC()
	} else if err := m.applyTransition(parent, advance, fmt.Sprintf("linked %d %s children", len(children), childType)); err != nil {
		rollback()
		return nil, err
	}
	if err := m.store.CompareAndSwap(ctx, parent); err != nil {
		rollback()
		return nil, faberrors.Wrapf(err, "failed to persist parent %s", parentID)
	}

	m.logger.Info().
		Str("parent_id", parentID).
		Str("child_type", string(childType)).
		Int("count", len(children)).
		Msg("linked children")

	return children, nil
}

// RecordValidation writes an immutable validation artifact under the
// chunk and drives the chunk's transition from the verdict:
// passed → validated, failed → needs_revision. The chunk must currently
// be in the backlog.
func (m *Manager) RecordValidation(ctx context.Context, chunkID string, passed bool, persona string, report []byte) (*domain.Artifact, *domain.Artifact, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, nil, err
	}

	m.locks.Lock(chunkID)
	defer m.locks.Unlock(chunkID)

	chunk, err := m.store.Get(ctx, chunkID)
	if err != nil {
		return nil, nil, err
	}
	if chunk.Type != constants.ArtifactTypeChunk {
		return nil, nil, fmt.Errorf("artifact '%s' is a %s, not a chunk: %w",
			chunkID, chunk.Type, faberrors.ErrTypeMismatch)
	}

	target := constants.ChunkStatusValidated
	if !passed {
		target = constants.ChunkStatusNeedsRevision
	}
	// Validate the chunk edge before writing the side artifact.
	if !IsValidTransition(chunk.Type, chunk.Status, target) {
		return nil, nil, fmt.Errorf("chunk '%s' in status %s cannot record a validation: %w",
			chunkID, chunk.Status, faberrors.ErrIllegalTransition)
	}

	verdict, err := m.Register(ctx, constants.ArtifactTypeValidation, chunkID, report)
	if err != nil {
		return nil, nil, err
	}
	verdict.SetMeta(domain.MetaPassed, passed)
	if persona != "" {
		verdict.SetMeta(domain.MetaPersona, persona)
	}
	if err := m.store.CompareAndSwap(ctx, verdict); err != nil {
		_ = m.store.Delete(ctx, verdict.ID)
		return nil, nil, faberrors.Wrapf(err, "failed to finalize validation for %s", chunkID)
	}

	chunk.ChildrenIDs = append(chunk.ChildrenIDs, verdict.ID)
	reason := "validation passed"
	if !passed {
		reason = "validation failed"
	}
	if err := m.applyTransition(chunk, target, reason); err != nil {
		_ = m.store.Delete(ctx, verdict.ID)
		return nil, nil, err
	}
	if err := m.store.CompareAndSwap(ctx, chunk); err != nil {
		_ = m.store.Delete(ctx, verdict.ID)
		return nil, nil, faberrors.Wrapf(err, "failed to persist chunk %s", chunkID)
	}

	m.logger.Info().
		Str("chunk_id", chunkID).
		Str("validation_id", verdict.ID).
		Bool("passed", passed).
		Msg("recorded validation verdict")

	return verdict, chunk, nil
}

// ReplaceContent appends a new content version and points the record at
// it. Earlier versions stay readable through their refs; bodies are
// append-only.
func (m *Manager) ReplaceContent(ctx context.Context, id string, body []byte) (*domain.Artifact, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("content body %w", faberrors.ErrEmptyValue)
	}

	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	artifact, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ref, err := m.store.SaveContent(ctx, id, body)
	if err != nil {
		return nil, faberrors.Wrapf(err, "failed to store content for %s", id)
	}
	artifact.ContentRef = ref
	artifact.UpdatedAt = m.clk.Now().UTC()
	if err := m.store.CompareAndSwap(ctx, artifact); err != nil {
		return nil, faberrors.Wrapf(err, "failed to persist content ref for %s", id)
	}
	return artifact, nil
}

// UpdateMetadata merges the given keys into the artifact's metadata under
// the per-id lock. Status is not touched.
func (m *Manager) UpdateMetadata(ctx context.Context, id string, meta map[string]any) (*domain.Artifact, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	artifact, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for k, v := range meta {
		artifact.SetMeta(k, v)
	}
	artifact.UpdatedAt = m.clk.Now().UTC()
	if err := m.store.CompareAndSwap(ctx, artifact); err != nil {
		return nil, faberrors.Wrapf(err, "failed to update metadata for %s", id)
	}
	return artifact, nil
}

// Store exposes the underlying registry store for read paths.
func (m *Manager) Store() registry.Store {
	return m.store
}
