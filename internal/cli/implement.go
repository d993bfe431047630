package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ideaforge/fab/internal/domain"
	"github.com/ideaforge/fab/internal/pipeline"
)

// AddImplementCommand adds the implement command to the root command.
func AddImplementCommand(parent *cobra.Command) {
	var (
		workTree  string
		writable  string
		readOnly  string
		timeout   time.Duration
		memoryMB  int
		cpuSecond int
	)

	cmd := &cobra.Command{
		Use:   "implement <story-id>",
		Short: "Implement a story in the sandbox",
		Long: `Run the coding agent against a ready story inside an isolated,
resource-limited sandbox. The story moves to in_progress for the
duration of the run and ends in review_pending on success, blocked on
failure, or cancelled on Ctrl+C. Changed files are synced back to the
working tree and reported even when the run fails.

Only one implementation attempt per story runs at a time; a concurrent
attempt is rejected before any sandbox resources are allocated.

Examples:
  fab implement story-1a2b3c4d5e6f --writable ratelimit.go,ratelimit_test.go
  fab implement story-1a2b3c4d5e6f --writable api.go --read-only docs/spec.md --timeout 30m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			d, err := buildDeps(cmd.Context(), logger)
			if err != nil {
				return err
			}

			req := pipeline.ImplementRequest{
				WorkTree:      workTree,
				WritablePaths: splitPathsFlag(writable),
				ReadOnlyPaths: splitPathsFlag(readOnly),
				Budget: domain.ResourceBudget{
					MemoryLimitMB: memoryMB,
					CPUSeconds:    cpuSecond,
					Timeout:       timeout,
				},
				OnLog: func(rec domain.LogRecord) {
					event := logger.Debug()
					if rec.Severity == domain.LogSeverityError {
						event = logger.Warn()
					}
					event.
						Str("source", string(rec.Source)).
						Str("artifact_id", args[0]).
						Msg(rec.Line)
				},
			}

			result, story, err := d.orchestrator.ImplementStory(cmd.Context(), args[0], req)
			if story != nil {
				if printErr := printArtifact(os.Stdout, outputFormat(cmd), story); printErr != nil {
					return printErr
				}
			}
			if result != nil && outputFormat(cmd) == OutputText {
				for _, f := range result.ChangedFiles {
					fmt.Fprintf(os.Stdout, "  changed: %s\n", f)
				}
				fmt.Fprintf(os.Stdout, "exit=%d duration=%s\n", result.ExitCode, result.Duration.Round(time.Millisecond))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&workTree, "worktree", ".", "working tree the file sets are taken from")
	cmd.Flags().StringVar(&writable, "writable", "", "comma-separated files the agent may modify (required)")
	cmd.Flags().StringVar(&readOnly, "read-only", "", "comma-separated context files exposed read-only")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock limit for the run (default from config)")
	cmd.Flags().IntVar(&memoryMB, "memory-limit-mb", 0, "memory ceiling in MB (default from config)")
	cmd.Flags().IntVar(&cpuSecond, "cpu-seconds", 0, "CPU-time budget in seconds (default from config)")
	_ = cmd.MarkFlagRequired("writable")

	parent.AddCommand(cmd)
}
