package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/domain"
	"github.com/ideaforge/fab/internal/tui"
)

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(parent *cobra.Command) {
	var typeFilter string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the artifact status table",
		Long: `Display all registered artifacts with their type, status, title, and
child count, oldest first.

Examples:
  fab status                 # Display styled status table
  fab status --type story    # Only stories
  fab status --output json   # Display as JSON array`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()
			tui.CheckNoColor()

			d, err := buildDeps(cmd.Context(), logger)
			if err != nil {
				return err
			}

			artifacts, err := d.store.List(cmd.Context())
			if err != nil {
				return err
			}
			artifacts = filterByType(artifacts, typeFilter)

			if outputFormat(cmd) == OutputJSON {
				return printJSON(os.Stdout, artifacts)
			}

			rows := make([]tui.ArtifactRow, 0, len(artifacts))
			for _, a := range artifacts {
				rows = append(rows, tui.ArtifactRow{
					ID:       a.ID,
					Type:     a.Type,
					Status:   a.Status,
					Title:    a.MetaString(domain.MetaTitle),
					Children: len(a.ChildrenIDs),
				})
			}
			return tui.NewArtifactTable(rows).Render(os.Stdout)
		},
	}
	cmd.Flags().StringVar(&typeFilter, "type", "", "only show artifacts of this type")
	parent.AddCommand(cmd)
}

// filterByType drops artifacts not matching the type filter. An empty
// filter keeps everything.
func filterByType(artifacts []*domain.Artifact, typeFilter string) []*domain.Artifact {
	if typeFilter == "" {
		return artifacts
	}
	want := constants.ArtifactType(typeFilter)
	out := make([]*domain.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a.Type == want {
			out = append(out, a)
		}
	}
	return out
}
