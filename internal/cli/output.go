package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ideaforge/fab/internal/domain"
	"github.com/ideaforge/fab/internal/errors"
)

// outputFormat reads the global output flag from a command.
func outputFormat(cmd *cobra.Command) string {
	return cmd.Flag("output").Value.String()
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printArtifact writes one artifact in the selected format. Text output
// is a short human summary; JSON is the full record.
func printArtifact(w io.Writer, format string, artifact *domain.Artifact) error {
	if format == OutputJSON {
		return printJSON(w, artifact)
	}
	title := artifact.MetaString(domain.MetaTitle)
	if title != "" {
		title = "  " + title
	}
	_, err := fmt.Fprintf(w, "%s  [%s/%s]%s\n", artifact.ID, artifact.Type, artifact.Status, title)
	return err
}

// printArtifacts writes a list of artifacts in the selected format.
func printArtifacts(w io.Writer, format string, artifacts []*domain.Artifact) error {
	if format == OutputJSON {
		return printJSON(w, artifacts)
	}
	for _, a := range artifacts {
		if err := printArtifact(w, format, a); err != nil {
			return err
		}
	}
	return nil
}

// readContentArg loads submission content: from the named file, or from
// stdin when the argument is "-" or absent.
func readContentArg(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", errors.Wrap(err, "failed to read stdin")
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0]) //nolint:gosec // User-supplied path is the point
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", args[0])
	}
	return string(data), nil
}

// splitPathsFlag splits a comma-separated path list, dropping empties.
func splitPathsFlag(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
