package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ideaforge/fab/internal/domain"
)

// AddShowCommand adds the show command to the root command.
func AddShowCommand(parent *cobra.Command) {
	var withContent bool

	cmd := &cobra.Command{
		Use:   "show <artifact-id>",
		Short: "Show one artifact in full",
		Long: `Display a single artifact record: lineage, metadata, and the audited
status history. With --content, the current content body is printed too.

Examples:
  fab show story-1a2b3c4d5e6f
  fab show chunk-1a2b3c4d5e6f --content`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			d, err := buildDeps(cmd.Context(), logger)
			if err != nil {
				return err
			}

			artifact, err := d.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var body []byte
			if withContent && artifact.ContentRef != "" {
				if body, err = d.store.GetContent(cmd.Context(), artifact.ID, artifact.ContentRef); err != nil {
					return err
				}
			}

			if outputFormat(cmd) == OutputJSON {
				out := map[string]any{"artifact": artifact}
				if body != nil {
					out["content"] = string(body)
				}
				return printJSON(os.Stdout, out)
			}

			printArtifactDetail(artifact)
			if body != nil {
				fmt.Fprintf(os.Stdout, "\n%s\n", body)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withContent, "content", false, "also print the current content body")
	parent.AddCommand(cmd)
}

// printArtifactDetail writes the human-readable record view.
func printArtifactDetail(a *domain.Artifact) {
	w := os.Stdout
	fmt.Fprintf(w, "id:       %s\n", a.ID)
	fmt.Fprintf(w, "type:     %s\n", a.Type)
	fmt.Fprintf(w, "status:   %s\n", a.Status)
	if a.ParentID != "" {
		fmt.Fprintf(w, "parent:   %s\n", a.ParentID)
	}
	for _, child := range a.ChildrenIDs {
		fmt.Fprintf(w, "child:    %s\n", child)
	}
	if a.ContentRef != "" {
		fmt.Fprintf(w, "content:  %s\n", a.ContentRef)
	}
	for k, v := range a.Metadata {
		fmt.Fprintf(w, "meta:     %s=%v\n", k, v)
	}
	fmt.Fprintf(w, "created:  %s\n", a.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "updated:  %s\n", a.UpdatedAt.Format("2006-01-02 15:04:05"))
	for _, t := range a.Transitions {
		fmt.Fprintf(w, "history:  %s -> %s  (%s)  %s\n",
			t.FromStatus, t.ToStatus, t.Timestamp.Format("2006-01-02 15:04:05"), t.Reason)
	}
}
