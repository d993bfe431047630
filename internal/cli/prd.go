package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// AddPRDCommand adds the prd command to the root command.
func AddPRDCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "prd <idea-id>",
		Short: "Expand an idea into a PRD",
		Long: `Run the generation stage that expands an idea into a product
requirements document. The PRD is linked as a child of the idea and the
idea advances to expanded.

Example:
  fab prd idea-1a2b3c4d5e6f`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			d, err := buildDeps(cmd.Context(), logger)
			if err != nil {
				return err
			}

			prd, err := d.orchestrator.GeneratePRD(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			logger.Info().
				Str("artifact_id", prd.ID).
				Str("parent_id", args[0]).
				Msg("prd generated")
			return printArtifact(os.Stdout, outputFormat(cmd), prd)
		},
	}
	parent.AddCommand(cmd)
}
