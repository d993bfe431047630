package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// AddResubmitCommand adds the resubmit command to the root command.
func AddResubmitCommand(parent *cobra.Command) {
	var contentFile string

	cmd := &cobra.Command{
		Use:   "resubmit <chunk-id>",
		Short: "Return a corrected chunk to the backlog",
		Long: `Move a chunk from needs_revision back to the backlog so it can be
validated again. With --content, the corrected body is appended as a new
content version first; earlier versions are retained.

Examples:
  fab resubmit chunk-1a2b3c4d5e6f
  fab resubmit chunk-1a2b3c4d5e6f --content fixed.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			var body []byte
			if contentFile != "" {
				data, err := os.ReadFile(contentFile) //nolint:gosec // User-supplied path is the point
				if err != nil {
					return err
				}
				body = data
			}

			d, err := buildDeps(cmd.Context(), logger)
			if err != nil {
				return err
			}

			chunk, err := d.orchestrator.ResubmitChunk(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}

			logger.Info().Str("artifact_id", chunk.ID).Msg("chunk resubmitted")
			return printArtifact(os.Stdout, outputFormat(cmd), chunk)
		},
	}
	cmd.Flags().StringVar(&contentFile, "content", "", "file with the corrected chunk body")
	parent.AddCommand(cmd)
}
