// Package sandbox provides the isolated execution engine for FAB.
//
// The engine runs one code-modification task inside an isolated,
// resource-bounded process and reports a structured result. It guarantees
// the host is never left with orphaned processes or sandbox directories
// regardless of outcome: teardown runs on every exit path and its own
// failures are logged as warnings, never propagated over the primary
// result.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/ctxutil, std lib
//   - MUST NOT import: internal/registry, internal/lifecycle,
//     internal/pipeline, internal/cli
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/ctxutil"
	"github.com/ideaforge/fab/internal/domain"
	faberrors "github.com/ideaforge/fab/internal/errors"
)

// Options configures the execution engine.
type Options struct {
	// AgentCommand is the code-generation agent binary to launch.
	AgentCommand string

	// AgentArgs are base arguments placed before the generated ones.
	AgentArgs []string

	// NoCommitFlag instructs the agent CLI to disable automatic
	// version-control commits; commit decisions belong to the
	// orchestrator, not the sandboxed tool.
	NoCommitFlag string

	// WorkRoot is the parent directory for isolated sandbox directories.
	// Empty means the system temp directory.
	WorkRoot string

	// RequiredEnv lists the credential variables that must be present
	// (in the spec's allowlist or the host environment) before a run is
	// attempted, e.g. the model API key.
	RequiredEnv []string

	// IsolationWrapper is an optional command prefix that strips network
	// access from the agent process (e.g. "unshare -rn"). When empty the
	// engine emits a runtime warning record instead.
	IsolationWrapper []string
}

// CommandBuilder produces the agent command line for a task spec. The
// default builder composes Options fields; tests substitute their own.
type CommandBuilder func(spec *domain.SandboxSpec) (name string, args []string)

// Engine executes sandbox task specifications. A single Engine may serve
// many sequential or concurrent runs; each run owns its isolated
// filesystem view and process exclusively.
type Engine struct {
	opts     Options
	logger   zerolog.Logger
	buildCmd CommandBuilder
	lookPath func(string) (string, error)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCommandBuilder overrides agent command construction. Used by tests
// to run stand-in processes.
func WithCommandBuilder(b CommandBuilder) EngineOption {
	return func(e *Engine) {
		e.buildCmd = b
	}
}

// NewEngine creates an execution engine with the given options.
func NewEngine(opts Options, engineOpts ...EngineOption) *Engine {
	e := &Engine{
		opts:     opts,
		logger:   zerolog.Nop(),
		lookPath: exec.LookPath,
	}
	e.buildCmd = e.defaultBuildCmd
	for _, opt := range engineOpts {
		opt(e)
	}
	return e
}

// Preflight verifies the execution runtime and required credentials are
// available. It is cheap and side-effect-free so callers can probe
// readiness before committing resources. Fails with ErrPrerequisitesNotMet
// listing each missing item.
func (e *Engine) Preflight(ctx context.Context) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	return e.preflight(nil)
}

// preflight checks the runtime binary and credentials, preferring the
// spec's env allowlist over the host environment for credential lookup.
func (e *Engine) preflight(spec *domain.SandboxSpec) error {
	var missing []string

	if e.opts.AgentCommand == "" {
		missing = append(missing, "agent command (not configured)")
	} else if _, err := e.lookPath(e.opts.AgentCommand); err != nil {
		missing = append(missing, fmt.Sprintf("agent runtime '%s'", e.opts.AgentCommand))
	}

	for _, name := range e.opts.RequiredEnv {
		if spec != nil {
			if _, ok := spec.Env[name]; ok {
				continue
			}
		}
		if os.Getenv(name) == "" {
			missing = append(missing, fmt.Sprintf("credential %s", name))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", faberrors.ErrPrerequisitesNotMet, strings.Join(missing, ", "))
	}
	return nil
}

// defaultBuildCmd composes the agent command line from the engine options
// and the spec. The instruction travels as an argument; credentials only
// ever travel through the environment.
func (e *Engine) defaultBuildCmd(spec *domain.SandboxSpec) (string, []string) {
	args := append([]string(nil), e.opts.AgentArgs...)
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	if e.opts.NoCommitFlag != "" {
		args = append(args, e.opts.NoCommitFlag)
	}
	args = append(args, "--instruction", spec.Instruction)
	args = append(args, spec.WritablePaths...)

	name := e.opts.AgentCommand
	if len(e.opts.IsolationWrapper) > 0 {
		wrapped := append([]string(nil), e.opts.IsolationWrapper[1:]...)
		wrapped = append(wrapped, name)
		wrapped = append(wrapped, args...)
		return e.opts.IsolationWrapper[0], wrapped
	}
	return name, args
}

// Run executes one task specification and returns a structured result.
// A non-nil result is returned for every run that got past spec
// validation, including failures, so the accumulated log and any partial
// changes are available for diagnosis. The error, when non-nil, wraps one
// of the sandbox sentinel errors.
//
// Cancellation of ctx transitions directly to terminating the agent
// process; teardown runs regardless of how the wait was interrupted.
func (e *Engine) Run(ctx context.Context, spec *domain.SandboxSpec, onLog LogCallback) (*domain.SandboxResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	// Defaults are filled on a copy; the caller's spec stays untouched.
	task := *spec
	spec = &task
	if spec.Budget.MemoryLimitMB == 0 {
		spec.Budget.MemoryLimitMB = constants.DefaultMemoryLimitMB
	}
	if spec.Budget.CPUSeconds == 0 {
		spec.Budget.CPUSeconds = constants.DefaultCPUSeconds
	}

	started := time.Now()
	collector := newLogCollector(onLog)
	result := &domain.SandboxResult{ExitCode: -1, ChangedFiles: []string{}}

	fail := func(class domain.FailureClass, err error) (*domain.SandboxResult, error) {
		result.Failure = class
		result.Log = collector.all()
		result.Duration = time.Since(started)
		return result, err
	}

	// Fail fast before committing any resources.
	if err := e.preflight(spec); err != nil {
		collector.add(domain.LogSourceRuntime, domain.LogSeverityError, err.Error())
		return fail(domain.FailurePrerequisites, err)
	}

	wd, err := materialize(e.workRoot(), spec)
	if err != nil {
		collector.add(domain.LogSourceRuntime, domain.LogSeverityError, err.Error())
		return fail(domain.FailureSetup, fmt.Errorf("%w: %s", faberrors.ErrSetupFailure, err))
	}
	// Teardown runs on every exit path. Its failures are warnings, never
	// the primary result.
	defer func() {
		if err := wd.release(); err != nil {
			e.logger.Warn().Err(err).Msg("sandbox teardown failed")
		}
	}()

	collector.add(domain.LogSourceRuntime, domain.LogSeverityInfo,
		fmt.Sprintf("sandbox materialized: %d read-only, %d writeable files",
			len(spec.ReadOnlyPaths), len(spec.WritablePaths)))
	if len(e.opts.IsolationWrapper) == 0 {
		collector.add(domain.LogSourceRuntime, domain.LogSeverityWarn,
			"no network isolation wrapper configured; relying on agent runtime restrictions")
	}

	name, args := e.buildCmd(spec)
	cmd := exec.Command(name, args...) //#nosec G204 -- command comes from operator configuration, not artifact content
	cmd.Dir = wd.root
	cmd.Env = e.buildEnv(spec)
	configureProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fail(domain.FailureSetup, fmt.Errorf("%w: stdout pipe: %s", faberrors.ErrSetupFailure, err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fail(domain.FailureSetup, fmt.Errorf("%w: stderr pipe: %s", faberrors.ErrSetupFailure, err))
	}

	if err := cmd.Start(); err != nil {
		collector.add(domain.LogSourceRuntime, domain.LogSeverityError, "agent launch failed: "+err.Error())
		return fail(domain.FailureSetup, fmt.Errorf("%w: launch: %s", faberrors.ErrSetupFailure, err))
	}
	collector.add(domain.LogSourceController, domain.LogSeverityInfo,
		fmt.Sprintf("agent started (pid %d, timeout %s)", cmd.Process.Pid, spec.Budget.Timeout))

	if err := applyLimits(cmd.Process.Pid, spec.Budget); err != nil {
		collector.add(domain.LogSourceRuntime, domain.LogSeverityWarn,
			"failed to apply kernel resource limits: "+err.Error())
	}

	// Pump both pipes concurrently; Wait must not run until the pipes
	// are drained.
	var pumps errgroup.Group
	pumps.Go(func() error { return collector.pump(stdout, domain.LogSourceAgent, domain.LogSeverityInfo) })
	pumps.Go(func() error { return collector.pump(stderr, domain.LogSourceAgentErr, domain.LogSeverityWarn) })

	waitCh := make(chan error, 1)
	go func() {
		_ = pumps.Wait()
		waitCh <- cmd.Wait()
	}()

	// Watchdog race: the timer must win deterministically when the
	// process overstays its budget.
	watchdog := time.NewTimer(spec.Budget.Timeout)
	defer watchdog.Stop()

	var waitErr error
	var timedOut, cancelled bool
	select {
	case waitErr = <-waitCh:
	case <-watchdog.C:
		timedOut = true
		collector.add(domain.LogSourceRuntime, domain.LogSeverityError,
			fmt.Sprintf("wall-clock timeout (%s) elapsed, terminating agent", spec.Budget.Timeout))
		if err := killProcessTree(cmd); err != nil {
			e.logger.Warn().Err(err).Msg("failed to terminate timed-out agent process")
		}
		waitErr = <-waitCh
	case <-ctx.Done():
		cancelled = true
		collector.add(domain.LogSourceRuntime, domain.LogSeverityWarn, "run cancelled by caller, terminating agent")
		if err := killProcessTree(cmd); err != nil {
			e.logger.Warn().Err(err).Msg("failed to terminate cancelled agent process")
		}
		waitErr = <-waitCh
	}

	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	// The diff is computed on every path that reached launch: partial
	// changes must be surfaced for operator inspection, not discarded.
	changed, diffErr := wd.diff()
	if diffErr != nil {
		collector.add(domain.LogSourceRuntime, domain.LogSeverityWarn, "diff failed: "+diffErr.Error())
	} else {
		result.ChangedFiles = changed
		if err := wd.syncBack(changed); err != nil {
			collector.add(domain.LogSourceRuntime, domain.LogSeverityWarn, err.Error())
		}
	}

	switch {
	case timedOut:
		return fail(domain.FailureTimeout,
			fmt.Errorf("%w: after %s", faberrors.ErrSandboxTimeout, spec.Budget.Timeout))
	case cancelled:
		return fail(domain.FailureCancelled, ctx.Err())
	case waitErr == nil:
		collector.add(domain.LogSourceController, domain.LogSeverityInfo,
			fmt.Sprintf("agent exited 0, %d file(s) changed", len(result.ChangedFiles)))
		result.Success = true
		result.Log = collector.all()
		result.Duration = time.Since(started)
		return result, nil
	case exitedOnResourceLimit(waitErr):
		collector.add(domain.LogSourceRuntime, domain.LogSeverityError,
			"agent terminated by kernel resource limit")
		return fail(domain.FailureResourceLimit,
			fmt.Errorf("%w: %s", faberrors.ErrResourceLimitExceeded, waitErr))
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			collector.add(domain.LogSourceController, domain.LogSeverityError,
				fmt.Sprintf("agent exited %d", result.ExitCode))
			return fail(domain.FailureNonZeroExit,
				fmt.Errorf("%w: code %d", faberrors.ErrNonZeroExit, result.ExitCode))
		}
		return fail(domain.FailureSetup, fmt.Errorf("%w: wait: %s", faberrors.ErrSetupFailure, waitErr))
	}
}

// buildEnv assembles the agent environment: the spec's credential
// allowlist plus the minimal host variables a subprocess needs. Nothing
// else from the host environment leaks into the sandbox, and allowlist
// values are never logged.
func (e *Engine) buildEnv(spec *domain.SandboxSpec) []string {
	env := make([]string, 0, len(spec.Env)+3)
	for _, name := range []string{"PATH", "HOME", "TMPDIR"} {
		if v := os.Getenv(name); v != "" {
			env = append(env, name+"="+v)
		}
	}
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// workRoot returns the parent directory for sandbox directories.
func (e *Engine) workRoot() string {
	if e.opts.WorkRoot != "" {
		return e.opts.WorkRoot
	}
	return os.TempDir()
}
