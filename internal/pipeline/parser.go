package pipeline

import (
	"regexp"
	"strconv"
	"strings"
)

// Generated content is free text; the fields below are extracted by a
// narrow, explicitly contracted parser with defined fallbacks so parsing
// bugs cannot corrupt transition logic.

// DefaultStoryPoints is the estimate assigned when generated content
// carries no parseable story points.
const DefaultStoryPoints = 3

// maxTitleLen bounds titles extracted from content.
const maxTitleLen = 120

// sectionSeparator splits multi-artifact generation output ("---" on its
// own line) into individual bodies.
var sectionSeparator = regexp.MustCompile(`(?m)^---\s*$`)

// storyPointsRe matches "Story Points: N", "points: N" and similar.
var storyPointsRe = regexp.MustCompile(`(?im)^\s*(?:story\s*)?points?\s*[:=]\s*(\d{1,3})\s*$`)

// StoryFields are the structured fields parsed from generated story text.
type StoryFields struct {
	// Title is the story's first heading or line, truncated.
	Title string

	// Points is the story point estimate, DefaultStoryPoints when absent
	// or unparseable.
	Points int
}

// SplitSections splits generated text into artifact bodies on "---"
// separator lines, dropping empty sections. A text without separators is
// a single section.
func SplitSections(text string) []string {
	parts := sectionSeparator.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseTitle extracts a title from content: the first non-empty line with
// markdown heading markers stripped, truncated to a sane length. Returns
// fallback when content has no usable line.
func ParseTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line == "" {
			continue
		}
		if len(line) > maxTitleLen {
			line = line[:maxTitleLen]
		}
		return line
	}
	return fallback
}

// ParseStoryFields extracts the structured story fields from generated
// content, falling back to defaults on any parse failure.
func ParseStoryFields(content string) StoryFields {
	fields := StoryFields{
		Title:  ParseTitle(content, "untitled story"),
		Points: DefaultStoryPoints,
	}
	if m := storyPointsRe.FindStringSubmatch(content); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			fields.Points = n
		}
	}
	return fields
}
