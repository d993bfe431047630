package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// AddChunkCommand adds the chunk command to the root command.
func AddChunkCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "chunk <prd-id>",
		Short: "Slice a PRD into work chunks",
		Long: `Run the generation stage that slices a PRD into self-contained work
chunks. All chunks are linked as children in one atomic operation and
the PRD advances to chunked.

Example:
  fab chunk prd-1a2b3c4d5e6f`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			d, err := buildDeps(cmd.Context(), logger)
			if err != nil {
				return err
			}

			chunks, err := d.orchestrator.ChunkPRD(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			logger.Info().
				Str("parent_id", args[0]).
				Int("chunks", len(chunks)).
				Msg("prd chunked")
			return printArtifacts(os.Stdout, outputFormat(cmd), chunks)
		},
	}
	parent.AddCommand(cmd)
}
