package tui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/ideaforge/fab/internal/constants"
)

// ArtifactRow represents one row in the artifact status table.
type ArtifactRow struct {
	ID       string
	Type     constants.ArtifactType
	Status   constants.ArtifactStatus
	Title    string
	Children int
}

// artifactColumnWidths holds the widths for each artifact table column.
type artifactColumnWidths struct {
	ID       int
	Type     int
	Status   int
	Title    int
	Children int
}

// minArtifactColumnWidths defines the minimum width per column so the
// table stays readable with short content.
//
//nolint:gochecknoglobals // Intentional package-level constant
var minArtifactColumnWidths = artifactColumnWidths{
	ID:       14,
	Type:     6,
	Status:   14,
	Title:    12,
	Children: 8,
}

// maxTitleWidth caps the TITLE column.
const maxTitleWidth = 48

// ArtifactTable renders artifact records in a formatted table.
// Triple redundancy is maintained for status cells: icon + color + text.
type ArtifactTable struct {
	rows   []ArtifactRow
	styles *TableStyles
}

// NewArtifactTable creates a table for the given rows.
func NewArtifactTable(rows []ArtifactRow) *ArtifactTable {
	return &ArtifactTable{
		rows:   rows,
		styles: NewTableStyles(),
	}
}

// Headers returns the column headers.
func (t *ArtifactTable) Headers() []string {
	return []string{"ID", "TYPE", "STATUS", "TITLE", "CHILDREN"}
}

// Render writes the formatted table to the writer.
func (t *ArtifactTable) Render(w io.Writer) error {
	headers := t.Headers()
	widths := t.calculateColumnWidths()
	widthsSlice := []int{widths.ID, widths.Type, widths.Status, widths.Title, widths.Children}

	headerParts := make([]string, len(headers))
	for i, h := range headers {
		headerParts[i] = t.styles.Header.Render(padRight(h, widthsSlice[i]))
	}
	if _, err := fmt.Fprintln(w, strings.Join(headerParts, "  ")); err != nil {
		return err
	}

	for _, row := range t.rows {
		cells := []string{
			padRight(row.ID, widths.ID),
			padRight(string(row.Type), widths.Type),
			t.renderStatusCellPadded(row.Status, widths.Status),
			padRight(truncateString(row.Title, widths.Title), widths.Title),
			padRight(fmt.Sprintf("%d", row.Children), widths.Children),
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "  ")); err != nil {
			return err
		}
	}
	return nil
}

// ToJSONData converts the table to a JSON-compatible header/row format.
func (t *ArtifactTable) ToJSONData() ([]string, [][]string) {
	headers := t.Headers()
	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		rows[i] = []string{
			row.ID,
			string(row.Type),
			t.renderStatusCellPlain(row.Status),
			row.Title,
			fmt.Sprintf("%d", row.Children),
		}
	}
	return headers, rows
}

// calculateColumnWidths expands columns to fit content, bounded by the
// title cap.
func (t *ArtifactTable) calculateColumnWidths() artifactColumnWidths {
	headers := t.Headers()
	widths := artifactColumnWidths{
		ID:       max(minArtifactColumnWidths.ID, utf8.RuneCountInString(headers[0])),
		Type:     max(minArtifactColumnWidths.Type, utf8.RuneCountInString(headers[1])),
		Status:   max(minArtifactColumnWidths.Status, utf8.RuneCountInString(headers[2])),
		Title:    max(minArtifactColumnWidths.Title, utf8.RuneCountInString(headers[3])),
		Children: max(minArtifactColumnWidths.Children, utf8.RuneCountInString(headers[4])),
	}

	for _, row := range t.rows {
		if w := utf8.RuneCountInString(row.ID); w > widths.ID {
			widths.ID = w
		}
		if w := utf8.RuneCountInString(string(row.Type)); w > widths.Type {
			widths.Type = w
		}
		if w := utf8.RuneCountInString(t.renderStatusCellPlain(row.Status)); w > widths.Status {
			widths.Status = w
		}
		if w := utf8.RuneCountInString(row.Title); w > widths.Title {
			widths.Title = w
		}
	}
	if widths.Title > maxTitleWidth {
		widths.Title = maxTitleWidth
	}
	return widths
}

// renderStatusCellPlain creates the status cell without ANSI codes.
// Used for JSON output and width calculations.
func (t *ArtifactTable) renderStatusCellPlain(status constants.ArtifactStatus) string {
	return StatusIcon(status) + " " + string(status)
}

// renderStatusCellPadded renders the status cell with padding calculated
// on visible width, excluding ANSI codes.
func (t *ArtifactTable) renderStatusCellPadded(status constants.ArtifactStatus, width int) string {
	plain := t.renderStatusCellPlain(status)
	style := lipgloss.NewStyle().Foreground(StatusColor(status))
	styled := StatusIcon(status) + " " + style.Render(string(status))

	plainWidth := utf8.RuneCountInString(plain)
	if plainWidth >= width {
		return styled
	}
	return styled + strings.Repeat(" ", width-plainWidth)
}

// padRight pads s with spaces to the given visible width.
func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// truncateString truncates s to width runes, appending an ellipsis.
func truncateString(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}
