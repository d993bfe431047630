//go:build !windows

package agent

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaforge/fab/internal/errors"
	"github.com/ideaforge/fab/internal/pipeline"
)

// shellRunner builds a runner whose subprocess is the given shell script.
// The script sees the prompt on stdin like the real agent CLI would.
func shellRunner(script string) *Runner {
	return NewRunner("claude", nil, "sonnet",
		WithCommandBuilder(func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "sh", "-c", script)
		}),
	)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name   string
		output string
		passed bool
		report string
	}{
		{
			name:   "pass with report",
			output: "PASS\nWell scoped and unambiguous.",
			passed: true,
			report: "Well scoped and unambiguous.",
		},
		{
			name:   "fail with report",
			output: "FAIL\nMissing acceptance criteria.",
			passed: false,
			report: "Missing acceptance criteria.",
		},
		{
			name:   "case insensitive",
			output: "passed\nok",
			passed: true,
			report: "ok",
		},
		{
			name:   "verdict only",
			output: "FAIL",
			passed: false,
			report: "",
		},
		{
			name:   "unrecognized first line fails closed",
			output: "Looks good to me!\nShip it.",
			passed: false,
			report: "Looks good to me!\nShip it.",
		},
		{
			name:   "empty output fails closed",
			output: "",
			passed: false,
			report: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed, report := parseVerdict(tt.output)
			assert.Equal(t, tt.passed, passed)
			assert.Equal(t, tt.report, report)
		})
	}
}

func TestStagePrompt(t *testing.T) {
	t.Run("known stages embed the input", func(t *testing.T) {
		for _, stage := range []pipeline.StageName{pipeline.StagePRD, pipeline.StageChunk, pipeline.StageStory} {
			prompt, err := stagePrompt(stage, "the input text", nil)
			require.NoError(t, err)
			assert.Contains(t, prompt, "the input text")
		}
	})

	t.Run("extra context appended", func(t *testing.T) {
		prompt, err := stagePrompt(pipeline.StagePRD, "idea", map[string]string{"audience": "internal"})
		require.NoError(t, err)
		assert.Contains(t, prompt, "audience: internal")
	})

	t.Run("unknown stage rejected", func(t *testing.T) {
		_, err := stagePrompt(pipeline.StageName("deploy"), "x", nil)
		require.ErrorIs(t, err, errors.ErrGenerationFailed)
	})
}

func TestValidationPrompt(t *testing.T) {
	prompt := validationPrompt("chunk body", "a security engineer")
	assert.Contains(t, prompt, "a security engineer")
	assert.Contains(t, prompt, "chunk body")

	// Empty persona falls back to the default reviewer.
	prompt = validationPrompt("chunk body", "")
	assert.Contains(t, prompt, "a staff engineer")
}

func TestRunner_Generate(t *testing.T) {
	t.Run("returns trimmed stdout", func(t *testing.T) {
		r := shellRunner("echo '# Generated PRD'; echo")

		output, ok, err := r.Generate(context.Background(), pipeline.StagePRD, "an idea", nil)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "# Generated PRD", output)
	})

	t.Run("prompt travels on stdin", func(t *testing.T) {
		r := shellRunner("cat")

		output, ok, err := r.Generate(context.Background(), pipeline.StagePRD, "build a rate limiter", nil)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Contains(t, output, "build a rate limiter")
	})

	t.Run("empty output is a failed verdict", func(t *testing.T) {
		r := shellRunner("true")

		_, ok, err := r.Generate(context.Background(), pipeline.StagePRD, "an idea", nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("nonzero exit folds stderr into the error", func(t *testing.T) {
		r := shellRunner("echo 'quota exceeded' >&2; exit 1")

		_, _, err := r.Generate(context.Background(), pipeline.StagePRD, "an idea", nil)
		require.ErrorIs(t, err, errors.ErrGenerationFailed)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("timeout terminates the subprocess", func(t *testing.T) {
		r := shellRunner("sleep 30")
		r.Timeout = 200 * time.Millisecond

		start := time.Now()
		_, _, err := r.Generate(context.Background(), pipeline.StagePRD, "an idea", nil)
		require.ErrorIs(t, err, errors.ErrGenerationFailed)
		assert.Less(t, time.Since(start), 10*time.Second)
	})
}

func TestRunner_Validate(t *testing.T) {
	t.Run("pass verdict", func(t *testing.T) {
		r := shellRunner("printf 'PASS\\nlooks solid'")

		passed, report, err := r.Validate(context.Background(), "chunk body", "staff engineer")
		require.NoError(t, err)
		assert.True(t, passed)
		assert.Equal(t, "looks solid", report)
	})

	t.Run("fail verdict", func(t *testing.T) {
		r := shellRunner("printf 'FAIL\\nscope unclear'")

		passed, report, err := r.Validate(context.Background(), "chunk body", "staff engineer")
		require.NoError(t, err)
		assert.False(t, passed)
		assert.Equal(t, "scope unclear", report)
	})

	t.Run("subprocess failure surfaces as unavailable", func(t *testing.T) {
		r := shellRunner("exit 1")

		_, _, err := r.Validate(context.Background(), "chunk body", "staff engineer")
		require.ErrorIs(t, err, errors.ErrValidationUnavailable)
	})
}
