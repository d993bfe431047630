package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// AddSubmitCommand adds the submit command to the root command.
func AddSubmitCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "submit [file]",
		Short: "Submit a new idea to the pipeline",
		Long: `Register a raw product idea as the root of a new pipeline lineage.

The idea content is read from the given file, or from stdin when the
argument is "-" or omitted.

Examples:
  fab submit idea.md
  echo "build a rate limiter" | fab submit`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			content, err := readContentArg(args)
			if err != nil {
				return err
			}

			d, err := buildDeps(cmd.Context(), logger)
			if err != nil {
				return err
			}

			idea, err := d.orchestrator.SubmitIdea(cmd.Context(), content)
			if err != nil {
				return err
			}

			logger.Info().Str("artifact_id", idea.ID).Msg("idea submitted")
			return printArtifact(os.Stdout, outputFormat(cmd), idea)
		},
	}
	parent.AddCommand(cmd)
}
