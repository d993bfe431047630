//go:build !windows

package sandbox

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

// shellEngine builds an engine that runs the given shell script in place
// of the agent binary.
func shellEngine(t *testing.T, workRoot, script string) *Engine {
	t.Helper()
	return NewEngine(
		Options{AgentCommand: "sh", WorkRoot: workRoot},
		WithCommandBuilder(func(*domain.SandboxSpec) (string, []string) {
			return "sh", []string{"-c", script}
		}),
	)
}

// assertNoSandboxDirs verifies teardown left no sandbox directories behind.
func assertNoSandboxDirs(t *testing.T, workRoot string) {
	t.Helper()
	leftovers, err := filepath.Glob(filepath.Join(workRoot, constants.SandboxDirPrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestEngine_Preflight(t *testing.T) {
	t.Run("runtime present", func(t *testing.T) {
		e := NewEngine(Options{AgentCommand: "sh"})
		require.NoError(t, e.Preflight(context.Background()))
	})

	t.Run("missing runtime", func(t *testing.T) {
		e := NewEngine(Options{AgentCommand: "fab-no-such-agent-binary"})
		err := e.Preflight(context.Background())
		require.ErrorIs(t, err, errors.ErrPrerequisitesNotMet)
		assert.Contains(t, err.Error(), "fab-no-such-agent-binary")
	})

	t.Run("missing credential", func(t *testing.T) {
		e := NewEngine(Options{AgentCommand: "sh", RequiredEnv: []string{"FAB_TEST_MISSING_CRED"}})
		err := e.Preflight(context.Background())
		require.ErrorIs(t, err, errors.ErrPrerequisitesNotMet)
		assert.Contains(t, err.Error(), "FAB_TEST_MISSING_CRED")
	})

	t.Run("spec allowlist satisfies credential", func(t *testing.T) {
		e := NewEngine(Options{AgentCommand: "sh", RequiredEnv: []string{"FAB_TEST_MISSING_CRED"}})
		spec := validTestSpec(t.TempDir())
		spec.Env = map[string]string{"FAB_TEST_MISSING_CRED": "value"}
		require.NoError(t, e.preflight(spec))
	})
}

func TestEngine_Run(t *testing.T) {
	t.Run("success reports changed files and syncs back", func(t *testing.T) {
		tree := t.TempDir()
		workRoot := t.TempDir()
		e := shellEngine(t, workRoot, "printf done > out.txt; echo finished")

		spec := validTestSpec(tree)
		result, err := e.Run(context.Background(), spec, nil)
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.True(t, result.Success)
		assert.Equal(t, 0, result.ExitCode)
		assert.Equal(t, domain.FailureNone, result.Failure)
		assert.Equal(t, []string{"out.txt"}, result.ChangedFiles)
		assert.Positive(t, result.Duration)

		// Changes reached the caller's tree; teardown removed the sandbox.
		body, err := os.ReadFile(filepath.Join(tree, "out.txt"))
		require.NoError(t, err)
		assert.Equal(t, "done", string(body))
		assertNoSandboxDirs(t, workRoot)
	})

	t.Run("log records stream in order", func(t *testing.T) {
		e := shellEngine(t, t.TempDir(), "echo first; echo second; echo oops >&2")

		var streamed []domain.LogRecord
		result, err := e.Run(context.Background(), validTestSpec(t.TempDir()), func(rec domain.LogRecord) {
			streamed = append(streamed, rec)
		})
		require.NoError(t, err)

		var agentLines []string
		for _, rec := range result.Log {
			if rec.Source == domain.LogSourceAgent {
				agentLines = append(agentLines, rec.Line)
			}
		}
		assert.Equal(t, []string{"first", "second"}, agentLines)

		var stderrLines []string
		for _, rec := range result.Log {
			if rec.Source == domain.LogSourceAgentErr {
				stderrLines = append(stderrLines, rec.Line)
			}
		}
		assert.Equal(t, []string{"oops"}, stderrLines)

		// The live callback saw every accumulated record.
		assert.Len(t, streamed, len(result.Log))
	})

	t.Run("nonzero exit classified", func(t *testing.T) {
		workRoot := t.TempDir()
		e := shellEngine(t, workRoot, "echo failing; exit 3")

		result, err := e.Run(context.Background(), validTestSpec(t.TempDir()), nil)
		require.ErrorIs(t, err, errors.ErrNonZeroExit)
		require.NotNil(t, result)

		assert.False(t, result.Success)
		assert.Equal(t, 3, result.ExitCode)
		assert.Equal(t, domain.FailureNonZeroExit, result.Failure)
		assertNoSandboxDirs(t, workRoot)
	})

	t.Run("partial changes surface on failure", func(t *testing.T) {
		tree := t.TempDir()
		e := shellEngine(t, t.TempDir(), "printf partial > out.txt; exit 1")

		result, err := e.Run(context.Background(), validTestSpec(tree), nil)
		require.ErrorIs(t, err, errors.ErrNonZeroExit)
		assert.Equal(t, []string{"out.txt"}, result.ChangedFiles)

		body, err := os.ReadFile(filepath.Join(tree, "out.txt"))
		require.NoError(t, err)
		assert.Equal(t, "partial", string(body))
	})

	t.Run("watchdog terminates overdue run", func(t *testing.T) {
		workRoot := t.TempDir()
		e := shellEngine(t, workRoot, "sleep 30")

		spec := validTestSpec(t.TempDir())
		spec.Budget.Timeout = 200 * time.Millisecond

		start := time.Now()
		result, err := e.Run(context.Background(), spec, nil)
		require.ErrorIs(t, err, errors.ErrSandboxTimeout)
		require.NotNil(t, result)

		assert.Equal(t, domain.FailureTimeout, result.Failure)
		assert.Less(t, time.Since(start), 10*time.Second)
		assertNoSandboxDirs(t, workRoot)
	})

	t.Run("caller cancellation classified", func(t *testing.T) {
		workRoot := t.TempDir()
		e := shellEngine(t, workRoot, "sleep 30")

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()

		result, err := e.Run(ctx, validTestSpec(t.TempDir()), nil)
		require.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, result)

		assert.Equal(t, domain.FailureCancelled, result.Failure)
		assertNoSandboxDirs(t, workRoot)
	})

	t.Run("caller spec stays untouched by defaults", func(t *testing.T) {
		e := shellEngine(t, t.TempDir(), "true")

		spec := validTestSpec(t.TempDir())
		require.Zero(t, spec.Budget.MemoryLimitMB)
		require.Zero(t, spec.Budget.CPUSeconds)

		_, err := e.Run(context.Background(), spec, nil)
		require.NoError(t, err)

		assert.Zero(t, spec.Budget.MemoryLimitMB)
		assert.Zero(t, spec.Budget.CPUSeconds)
	})

	t.Run("invalid spec returns no result", func(t *testing.T) {
		e := shellEngine(t, t.TempDir(), "true")

		spec := validTestSpec(t.TempDir())
		spec.Budget.Timeout = 0

		result, err := e.Run(context.Background(), spec, nil)
		require.ErrorIs(t, err, errors.ErrSpecInvalid)
		assert.Nil(t, result)
	})

	t.Run("missing prerequisites fail before setup", func(t *testing.T) {
		workRoot := t.TempDir()
		e := NewEngine(Options{AgentCommand: "fab-no-such-agent-binary", WorkRoot: workRoot})

		result, err := e.Run(context.Background(), validTestSpec(t.TempDir()), nil)
		require.ErrorIs(t, err, errors.ErrPrerequisitesNotMet)
		require.NotNil(t, result)

		assert.Equal(t, domain.FailurePrerequisites, result.Failure)
		assertNoSandboxDirs(t, workRoot)
	})
}

func TestDefaultBuildCmd(t *testing.T) {
	t.Run("composes agent arguments", func(t *testing.T) {
		e := NewEngine(Options{
			AgentCommand: "claude",
			AgentArgs:    []string{"-p"},
			NoCommitFlag: "--no-commit",
		})
		spec := validTestSpec("/tmp/tree")
		spec.Model = "sonnet"

		name, args := e.buildCmd(spec)
		assert.Equal(t, "claude", name)
		assert.Equal(t, []string{"-p", "--model", "sonnet", "--no-commit", "--instruction", "do the thing", "out.txt"}, args)
	})

	t.Run("isolation wrapper prefixes the command", func(t *testing.T) {
		e := NewEngine(Options{
			AgentCommand:     "claude",
			IsolationWrapper: []string{"unshare", "-rn"},
		})
		spec := validTestSpec("/tmp/tree")

		name, args := e.buildCmd(spec)
		assert.Equal(t, "unshare", name)
		require.NotEmpty(t, args)
		assert.Equal(t, "-rn", args[0])
		assert.Equal(t, "claude", args[1])
	})
}

func TestBuildEnv(t *testing.T) {
	e := NewEngine(Options{AgentCommand: "sh"})
	spec := validTestSpec("/tmp/tree")
	spec.Env = map[string]string{"API_KEY": "secret-value"}

	env := e.buildEnv(spec)
	assert.Contains(t, env, "API_KEY=secret-value")
	for _, kv := range env {
		assert.NotContains(t, kv, "FAB_TEST_UNRELATED")
	}
}
