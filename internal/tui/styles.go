// Package tui provides terminal output styling for the fab CLI.
//
// All colors use AdaptiveColor for light/dark terminal support. Call
// CheckNoColor() at the start of commands to respect the NO_COLOR
// environment variable; colors are also disabled when TERM=dumb.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/ideaforge/fab/internal/constants"
)

//nolint:gochecknoglobals // Intentional package-level constants for styling API
var (
	// ColorPrimary is blue, used for active states and primary actions.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess is green, used for success states and completed items.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning is yellow, used for attention-required items.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError is red, used for error states and failed items.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is gray, used for dim states and secondary text.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}
)

// CheckNoColor disables color output when NO_COLOR is set or the
// terminal is dumb.
func CheckNoColor() {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// StatusColor returns the semantic color for an artifact status.
// Triple redundancy is maintained in status displays: icon + color + text.
func StatusColor(status constants.ArtifactStatus) lipgloss.AdaptiveColor {
	switch status {
	case constants.StoryStatusReviewPending, constants.ChunkStatusValidated,
		constants.ChunkStatusStorified, constants.IdeaStatusExpanded,
		constants.PRDStatusChunked, constants.ValidationStatusCompleted:
		return ColorSuccess
	case constants.StoryStatusInProgress:
		return ColorPrimary
	case constants.StoryStatusBlocked, constants.ChunkStatusNeedsRevision:
		return ColorError
	case constants.StoryStatusCancelled:
		return ColorWarning
	default:
		return ColorMuted
	}
}

// StatusIcon returns the icon for an artifact status.
func StatusIcon(status constants.ArtifactStatus) string {
	switch status {
	case constants.StoryStatusReviewPending, constants.ChunkStatusValidated,
		constants.ChunkStatusStorified, constants.IdeaStatusExpanded,
		constants.PRDStatusChunked, constants.ValidationStatusCompleted:
		return "✓"
	case constants.StoryStatusInProgress:
		return "▶"
	case constants.StoryStatusBlocked, constants.ChunkStatusNeedsRevision:
		return "✗"
	case constants.StoryStatusCancelled:
		return "⊘"
	default:
		return "•"
	}
}

// TableStyles holds lipgloss styles for table rendering.
type TableStyles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Dim    lipgloss.Style
}

// NewTableStyles creates styles for table rendering.
func NewTableStyles() *TableStyles {
	return &TableStyles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}),
		Cell: lipgloss.NewStyle(),
		Dim: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
	}
}
