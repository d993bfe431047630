// Package agent runs the text generation and validation stages through
// an agent CLI subprocess in print mode. The prompt is passed on stdin
// and the generated text is read from stdout.
//
// Import rules:
//   - CAN import: internal/constants, internal/errors, internal/pipeline, std lib
//   - MUST NOT import: internal/cli, internal/sandbox
package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ideaforge/fab/internal/errors"
	"github.com/ideaforge/fab/internal/pipeline"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 10 * time.Minute

// CommandBuilder constructs the agent command. Injected for tests.
type CommandBuilder func(ctx context.Context, name string, args ...string) *exec.Cmd

// Runner invokes the agent CLI for text stages.
type Runner struct {
	// Command is the agent executable looked up on PATH.
	Command string

	// Args are extra arguments prepended before the print-mode flags.
	Args []string

	// Model is passed via --model when non-empty.
	Model string

	// Timeout bounds each invocation; DefaultTimeout when zero.
	Timeout time.Duration

	buildCmd CommandBuilder
	logger   zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithCommandBuilder overrides subprocess construction. Tests use this to
// substitute stub commands.
func WithCommandBuilder(b CommandBuilder) RunnerOption {
	return func(r *Runner) {
		r.buildCmd = b
	}
}

// NewRunner creates an agent runner.
func NewRunner(command string, args []string, model string, opts ...RunnerOption) *Runner {
	r := &Runner{
		Command:  command,
		Args:     args,
		Model:    model,
		Timeout:  DefaultTimeout,
		buildCmd: exec.CommandContext,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run executes one agent invocation with the prompt on stdin and returns
// trimmed stdout. Stderr is folded into the error on failure.
func (r *Runner) run(ctx context.Context, prompt string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, r.Args...)
	args = append(args, "-p") // print mode, non-interactive
	if r.Model != "" {
		args = append(args, "--model", r.Model)
	}

	cmd := r.buildCmd(ctx, r.Command, args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug().
		Str("command", r.Command).
		Dur("duration", time.Since(start)).
		Int("stdout_bytes", stdout.Len()).
		Msg("agent invocation finished")

	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.Wrapf(errors.ErrGenerationFailed, "agent %s: %s", r.Command, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Generate implements pipeline.Generator. The stage selects the prompt
// template; empty output is a failed verdict, not an error.
func (r *Runner) Generate(ctx context.Context, stage pipeline.StageName, input string, extra map[string]string) (string, bool, error) {
	prompt, err := stagePrompt(stage, input, extra)
	if err != nil {
		return "", false, err
	}
	output, err := r.run(ctx, prompt)
	if err != nil {
		return "", false, err
	}
	return output, output != "", nil
}

// Validate implements pipeline.Validator. The verdict is read from the
// first line of the agent's reply; everything after it is the report.
func (r *Runner) Validate(ctx context.Context, content, persona string) (bool, string, error) {
	output, err := r.run(ctx, validationPrompt(content, persona))
	if err != nil {
		return false, "", fmt.Errorf("%w: %s", errors.ErrValidationUnavailable, err)
	}
	passed, report := parseVerdict(output)
	return passed, report, nil
}

// parseVerdict splits the agent reply into a pass/fail verdict and the
// remaining report text. An unrecognized first line fails closed.
func parseVerdict(output string) (bool, string) {
	line, rest, _ := strings.Cut(output, "\n")
	switch strings.ToUpper(strings.TrimSpace(line)) {
	case "PASS", "PASSED":
		return true, strings.TrimSpace(rest)
	case "FAIL", "FAILED":
		return false, strings.TrimSpace(rest)
	default:
		return false, output
	}
}

// Compile-time checks that Runner satisfies the pipeline boundaries.
var (
	_ pipeline.Generator = (*Runner)(nil)
	_ pipeline.Validator = (*Runner)(nil)
)
