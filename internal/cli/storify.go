package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// AddStorifyCommand adds the storify command to the root command.
func AddStorifyCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "storify <chunk-id>",
		Short: "Turn a validated chunk into user stories",
		Long: `Run the generation stage that turns a validated chunk into
implementable user stories with point estimates. All stories are linked
as children in one atomic operation and the chunk advances to storified.

Example:
  fab storify chunk-1a2b3c4d5e6f`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			d, err := buildDeps(cmd.Context(), logger)
			if err != nil {
				return err
			}

			stories, err := d.orchestrator.StorifyChunk(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			logger.Info().
				Str("parent_id", args[0]).
				Int("stories", len(stories)).
				Msg("chunk storified")
			return printArtifacts(os.Stdout, outputFormat(cmd), stories)
		},
	}
	parent.AddCommand(cmd)
}
