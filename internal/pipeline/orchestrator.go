package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/domain"
	faberrors "github.com/ideaforge/fab/internal/errors"
	"github.com/ideaforge/fab/internal/lifecycle"
	"github.com/ideaforge/fab/internal/sandbox"
)

// SandboxRunner is the engine surface the orchestrator depends on.
// Satisfied by *sandbox.Engine; tests substitute stubs.
type SandboxRunner interface {
	Preflight(ctx context.Context) error
	Run(ctx context.Context, spec *domain.SandboxSpec, onLog sandbox.LogCallback) (*domain.SandboxResult, error)
}

// Options holds orchestrator-wide defaults for sandbox runs.
type Options struct {
	// Model is the model identifier passed to the agent runtime.
	Model string

	// DefaultBudget bounds implementation runs when the request does not
	// override it.
	DefaultBudget domain.ResourceBudget

	// EnvAllowlist names the host environment variables injected into
	// sandbox runs (credential injection only; values are never logged).
	EnvAllowlist []string

	// LookupEnv resolves allowlist names; defaults to os.LookupEnv.
	// Injected for tests.
	LookupEnv func(string) (string, bool)
}

// Orchestrator sequences artifacts through their applicable stages.
// Independent artifacts may be processed in parallel; per-artifact
// mutation is serialized by the lifecycle manager, and at most one
// implementation attempt per story is in flight at a time.
type Orchestrator struct {
	manager  *lifecycle.Manager
	gen      Generator
	val      Validator
	engine   SandboxRunner
	opts     Options
	logger   zerolog.Logger
	inflight sync.Map // story id -> struct{}
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger sets the orchestrator's logger.
func WithOrchestratorLogger(logger zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(manager *lifecycle.Manager, gen Generator, val Validator, engine SandboxRunner, opts Options, orchOpts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		manager: manager,
		gen:     gen,
		val:     val,
		engine:  engine,
		opts:    opts,
		logger:  zerolog.Nop(),
	}
	for _, opt := range orchOpts {
		opt(o)
	}
	return o
}

// SubmitIdea registers a new idea artifact from raw content.
func (o *Orchestrator) SubmitIdea(ctx context.Context, content string) (*domain.Artifact, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("idea content %w", faberrors.ErrEmptyValue)
	}
	return o.manager.Register(ctx, constants.ArtifactTypeIdea, "", []byte(content))
}

// GeneratePRD drives the idea → prd stage: invokes the generation
// service on the idea's content and links the resulting PRD as a child,
// advancing the idea to expanded.
func (o *Orchestrator) GeneratePRD(ctx context.Context, ideaID string) (*domain.Artifact, error) {
	idea, err := o.loadTyped(ctx, ideaID, constants.ArtifactTypeIdea, constants.IdeaStatusExpanded, "prd")
	if err != nil {
		return nil, err
	}

	body, err := o.generate(ctx, idea, StagePRD, nil)
	if err != nil {
		return nil, err
	}

	children, err := o.manager.LinkChildren(ctx, ideaID, constants.ArtifactTypePRD, []lifecycle.ChildSpec{{
		Body:     body,
		Metadata: map[string]any{domain.MetaTitle: ParseTitle(string(body), "untitled prd")},
	}})
	if err != nil {
		return nil, err
	}
	return children[0], nil
}

// ChunkPRD drives the prd → chunk stage: the generation output is split
// into chunk bodies and linked as children, advancing the PRD to chunked.
func (o *Orchestrator) ChunkPRD(ctx context.Context, prdID string) ([]*domain.Artifact, error) {
	prd, err := o.loadTyped(ctx, prdID, constants.ArtifactTypePRD, constants.PRDStatusChunked, "chunk")
	if err != nil {
		return nil, err
	}

	output, err := o.generate(ctx, prd, StageChunk, nil)
	if err != nil {
		return nil, err
	}

	sections := SplitSections(string(output))
	if len(sections) == 0 {
		return nil, o.recordStageFailure(ctx, prdID, "chunk", faberrors.ErrGenerationFailed, "generation produced no chunks")
	}

	specs := make([]lifecycle.ChildSpec, 0, len(sections))
	for _, section := range sections {
		specs = append(specs, lifecycle.ChildSpec{
			Body:     []byte(section),
			Metadata: map[string]any{domain.MetaTitle: ParseTitle(section, "untitled chunk")},
		})
	}
	return o.manager.LinkChildren(ctx, prdID, constants.ArtifactTypeChunk, specs)
}

// ValidateChunk drives chunk validation: the validation adapter judges
// the chunk's content from a reviewer persona, and the verdict is
// recorded as an immutable validation artifact that transitions the chunk
// to validated or needs_revision.
func (o *Orchestrator) ValidateChunk(ctx context.Context, chunkID, persona string) (*domain.Artifact, *domain.Artifact, error) {
	chunk, err := o.loadTyped(ctx, chunkID, constants.ArtifactTypeChunk, "", "validate")
	if err != nil {
		return nil, nil, err
	}

	content, err := o.content(ctx, chunk)
	if err != nil {
		return nil, nil, err
	}

	passed, report, err := o.val.Validate(ctx, content, persona)
	if err != nil {
		return nil, nil, o.recordStageFailure(ctx, chunkID, "validate",
			fmt.Errorf("%w: %s", faberrors.ErrValidationUnavailable, err), err.Error())
	}

	return o.manager.RecordValidation(ctx, chunkID, passed, persona, []byte(report))
}

// ResubmitChunk returns a corrected chunk from needs_revision to the
// backlog so it can be validated again. When body is non-empty a new
// content version is appended first (bodies are append-only).
func (o *Orchestrator) ResubmitChunk(ctx context.Context, chunkID string, body []byte) (*domain.Artifact, error) {
	if _, err := o.loadTyped(ctx, chunkID, constants.ArtifactTypeChunk, "", "resubmit"); err != nil {
		return nil, err
	}
	if len(body) > 0 {
		if _, err := o.manager.ReplaceContent(ctx, chunkID, body); err != nil {
			return nil, err
		}
	}
	return o.manager.Transition(ctx, chunkID, constants.ChunkStatusBacklog, "resubmitted after correction")
}

// StorifyChunk drives the chunk → story stage for a validated chunk:
// generation output is split into story bodies with parsed titles and
// points, linked as children, advancing the chunk to storified.
func (o *Orchestrator) StorifyChunk(ctx context.Context, chunkID string) ([]*domain.Artifact, error) {
	chunk, err := o.loadTyped(ctx, chunkID, constants.ArtifactTypeChunk, constants.ChunkStatusStorified, "storify")
	if err != nil {
		return nil, err
	}

	output, err := o.generate(ctx, chunk, StageStory, nil)
	if err != nil {
		return nil, err
	}

	sections := SplitSections(string(output))
	if len(sections) == 0 {
		return nil, o.recordStageFailure(ctx, chunkID, "storify", faberrors.ErrGenerationFailed, "generation produced no stories")
	}

	specs := make([]lifecycle.ChildSpec, 0, len(sections))
	for _, section := range sections {
		fields := ParseStoryFields(section)
		specs = append(specs, lifecycle.ChildSpec{
			Body: []byte(section),
			Metadata: map[string]any{
				domain.MetaTitle:       fields.Title,
				domain.MetaStoryPoints: fields.Points,
			},
		})
	}
	return o.manager.LinkChildren(ctx, chunkID, constants.ArtifactTypeStory, specs)
}

// ImplementRequest parameterizes one implementation attempt.
type ImplementRequest struct {
	// WorkTree is the caller's working tree.
	WorkTree string

	// ReadOnlyPaths are context files exposed to the agent.
	ReadOnlyPaths []string

	// WritablePaths are the files the agent may modify.
	WritablePaths []string

	// Budget overrides the orchestrator default when non-zero.
	Budget domain.ResourceBudget

	// OnLog receives sandbox log records live.
	OnLog sandbox.LogCallback
}

// ImplementStory drives the story implementation stage through the
// sandbox execution engine. The story transitions to in_progress before
// the run and always ends in a terminal outcome: review_pending on
// success, blocked on failure, cancelled on caller abort. A second
// attempt while one is in flight is rejected before any sandbox
// resources are allocated.
func (o *Orchestrator) ImplementStory(ctx context.Context, storyID string, req ImplementRequest) (*domain.SandboxResult, *domain.Artifact, error) {
	if _, loaded := o.inflight.LoadOrStore(storyID, struct{}{}); loaded {
		return nil, nil, fmt.Errorf("story '%s': %w", storyID, faberrors.ErrImplementationInFlight)
	}
	defer o.inflight.Delete(storyID)

	story, err := o.loadTyped(ctx, storyID, constants.ArtifactTypeStory, "", "implement")
	if err != nil {
		return nil, nil, err
	}
	switch story.Status {
	case constants.StoryStatusInProgress:
		// A previous attempt is still running (possibly another process).
		return nil, nil, fmt.Errorf("story '%s': %w", storyID, faberrors.ErrImplementationInFlight)
	case constants.StoryStatusBlocked, constants.StoryStatusCancelled:
		// Human-driven retry path: return to ready before starting over.
		if story, err = o.manager.Transition(ctx, storyID, constants.StoryStatusReady, "retry requested"); err != nil {
			return nil, nil, err
		}
	case constants.StoryStatusReviewPending:
		o.logger.Warn().
			Str("artifact_id", storyID).
			Str("status", string(story.Status)).
			Msg("story already implemented; skipping")
		return nil, story, nil
	}

	instruction, err := o.content(ctx, story)
	if err != nil {
		return nil, nil, err
	}

	spec := &domain.SandboxSpec{
		Model:         o.opts.Model,
		Instruction:   instruction,
		ReadOnlyPaths: req.ReadOnlyPaths,
		WritablePaths: req.WritablePaths,
		WorkTree:      req.WorkTree,
		Budget:        req.Budget,
		Env:           o.resolveEnv(),
	}
	if spec.Budget.Timeout == 0 {
		spec.Budget = o.opts.DefaultBudget
	}

	story, err = o.manager.Transition(ctx, storyID, constants.StoryStatusInProgress, "implementation started")
	if err != nil {
		return nil, nil, err
	}

	result, runErr := o.engine.Run(ctx, spec, req.OnLog)

	// The engine honors the caller's cancellation; the bookkeeping that
	// records the outcome must not. Persistence below runs on a detached
	// context so an abort never strands the story at in_progress.
	persistCtx := context.WithoutCancel(ctx)

	if result == nil {
		if stderrors.Is(runErr, context.Canceled) || stderrors.Is(runErr, context.DeadlineExceeded) {
			if updated, trErr := o.manager.Transition(persistCtx, storyID, constants.StoryStatusCancelled, "cancelled before sandbox start"); trErr == nil {
				story = updated
			}
			return nil, story, runErr
		}
		// Spec validation failed before any resources were committed;
		// the story must not be left pointing at in_progress.
		if updated, trErr := o.manager.Transition(persistCtx, storyID, constants.StoryStatusBlocked, "invalid sandbox specification"); trErr == nil {
			story = updated
		}
		if updated, metaErr := o.manager.UpdateMetadata(persistCtx, storyID, map[string]any{
			domain.MetaErrorClass:    string(domain.FailureSetup),
			domain.MetaFailureReason: runErr.Error(),
		}); metaErr == nil {
			story = updated
		}
		return nil, story, runErr
	}

	meta := map[string]any{
		domain.MetaFilesChanged: result.ChangedFiles,
	}

	var next constants.ArtifactStatus
	var reason string
	switch {
	case result.Success:
		next, reason = constants.StoryStatusReviewPending, "sandbox run succeeded"
	case result.Failure == domain.FailureCancelled:
		meta[domain.MetaErrorClass] = string(result.Failure)
		next, reason = constants.StoryStatusCancelled, "sandbox run cancelled"
	default:
		meta[domain.MetaErrorClass] = string(result.Failure)
		meta[domain.MetaLogExcerpt] = result.LogTail(constants.SandboxLogTailLines)
		if runErr != nil {
			meta[domain.MetaFailureReason] = runErr.Error()
		}
		next, reason = constants.StoryStatusBlocked, "sandbox run failed: "+string(result.Failure)
	}

	updated, err := o.manager.Transition(persistCtx, storyID, next, reason)
	if err != nil {
		return result, story, err
	}
	story = updated
	if updated, err = o.manager.UpdateMetadata(persistCtx, storyID, meta); err != nil {
		return result, story, err
	}
	story = updated

	// Even on failure, changed files are reported so no work is silently
	// lost; the error still names the artifact, stage, and class.
	if runErr != nil {
		return result, story, fmt.Errorf("story '%s' implement stage: %w", storyID, runErr)
	}
	return result, story, nil
}

// Preflight probes implementation readiness without committing resources.
func (o *Orchestrator) Preflight(ctx context.Context) error {
	return o.engine.Preflight(ctx)
}

// loadTyped loads an artifact and verifies it matches the stage's type.
// Applying a stage to the wrong artifact type is a caller error, not a
// retryable condition. If the artifact already progressed past the stage
// (status == progressed, when given), a warning is emitted but the load
// succeeds: idempotent re-entry is allowed, never silently.
func (o *Orchestrator) loadTyped(ctx context.Context, id string, want constants.ArtifactType, progressed constants.ArtifactStatus, stage string) (*domain.Artifact, error) {
	artifact, err := o.manager.Store().Get(ctx, id)
	if err != nil {
		return nil, faberrors.Wrapf(err, "%s stage", stage)
	}
	if artifact.Type != want {
		return nil, fmt.Errorf("%s stage requires a %s, artifact '%s' is a %s: %w",
			stage, want, id, artifact.Type, faberrors.ErrTypeMismatch)
	}
	if progressed != "" && artifact.Status == progressed {
		o.logger.Warn().
			Str("artifact_id", id).
			Str("stage", stage).
			Str("status", string(artifact.Status)).
			Msg("artifact already progressed past this stage; re-entering")
	}
	return artifact, nil
}

// generate invokes the generation service on the artifact's content. A
// false verdict is recorded in the artifact's metadata and surfaced as a
// retryable ErrGenerationFailed.
func (o *Orchestrator) generate(ctx context.Context, artifact *domain.Artifact, stage StageName, extra map[string]string) ([]byte, error) {
	input, err := o.content(ctx, artifact)
	if err != nil {
		return nil, err
	}

	output, ok, err := o.gen.Generate(ctx, stage, input, extra)
	if err != nil {
		return nil, o.recordStageFailure(ctx, artifact.ID, string(stage),
			fmt.Errorf("%w: %s", faberrors.ErrGenerationFailed, err), err.Error())
	}
	if !ok {
		return nil, o.recordStageFailure(ctx, artifact.ID, string(stage),
			faberrors.ErrGenerationFailed, "generation service returned a failed verdict")
	}
	return []byte(output), nil
}

// content loads an artifact's body; artifacts without a body yield "".
func (o *Orchestrator) content(ctx context.Context, artifact *domain.Artifact) (string, error) {
	if artifact.ContentRef == "" {
		return "", nil
	}
	body, err := o.manager.Store().GetContent(ctx, artifact.ID, artifact.ContentRef)
	if err != nil {
		return "", faberrors.Wrapf(err, "failed to load content for %s", artifact.ID)
	}
	return string(body), nil
}

// recordStageFailure persists the failure reason into the artifact's
// metadata and returns an error naming the artifact and stage. The
// artifact's status is left untouched: it never points at a status that
// implies success when the collaborator failed.
func (o *Orchestrator) recordStageFailure(ctx context.Context, id, stage string, err error, reason string) error {
	if _, metaErr := o.manager.UpdateMetadata(ctx, id, map[string]any{
		domain.MetaFailureReason: fmt.Sprintf("%s stage: %s", stage, reason),
	}); metaErr != nil {
		o.logger.Warn().Err(metaErr).Str("artifact_id", id).Msg("failed to record stage failure metadata")
	}
	return fmt.Errorf("artifact '%s' %s stage: %w", id, stage, err)
}

// resolveEnv materializes the credential allowlist from the host
// environment. Values are injected into the sandbox only; they are never
// logged.
func (o *Orchestrator) resolveEnv() map[string]string {
	lookup := o.opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := make(map[string]string, len(o.opts.EnvAllowlist))
	for _, name := range o.opts.EnvAllowlist {
		if v, ok := lookup(name); ok && v != "" {
			env[name] = v
		}
	}
	return env
}
