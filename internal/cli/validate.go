package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// AddValidateCommand adds the validate command to the root command.
func AddValidateCommand(parent *cobra.Command) {
	var persona string

	cmd := &cobra.Command{
		Use:   "validate <chunk-id>",
		Short: "Validate a chunk from a reviewer persona",
		Long: `Judge whether a chunk is self-contained and implementable. The verdict
is recorded as an immutable validation artifact attached to the chunk,
which advances to validated on a pass or needs_revision on a fail.

Examples:
  fab validate chunk-1a2b3c4d5e6f
  fab validate chunk-1a2b3c4d5e6f --persona "security reviewer"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			d, err := buildDeps(cmd.Context(), logger)
			if err != nil {
				return err
			}

			if persona == "" {
				persona = d.cfg.Pipeline.DefaultPersona
			}

			validation, chunk, err := d.orchestrator.ValidateChunk(cmd.Context(), args[0], persona)
			if err != nil {
				return err
			}

			logger.Info().
				Str("artifact_id", chunk.ID).
				Str("validation_id", validation.ID).
				Str("status", string(chunk.Status)).
				Msg("chunk validated")

			if outputFormat(cmd) == OutputJSON {
				return printJSON(os.Stdout, map[string]any{
					"chunk":      chunk,
					"validation": validation,
				})
			}
			if err := printArtifact(os.Stdout, OutputText, chunk); err != nil {
				return err
			}
			_, err = fmt.Fprintf(os.Stdout, "verdict recorded as %s\n", validation.ID)
			return err
		},
	}
	cmd.Flags().StringVar(&persona, "persona", "", "reviewer persona for the verdict")
	parent.AddCommand(cmd)
}
