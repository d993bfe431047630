package agent

import (
	"fmt"
	"strings"

	"github.com/ideaforge/fab/internal/errors"
	"github.com/ideaforge/fab/internal/pipeline"
)

// Stage prompt templates. Multi-artifact stages instruct the agent to
// separate bodies with "---" lines, which the pipeline parser splits on.

const prdPromptTemplate = `Expand the following product idea into a complete
product requirements document in markdown. Start with a one-line title
heading. Cover goals, user-facing behavior, and acceptance criteria.

Idea:
%s`

const chunkPromptTemplate = `Split the following product requirements document
into self-contained work chunks. Each chunk must be independently
understandable and implementable. Start each chunk with a one-line title
heading and separate chunks with a line containing only "---".

PRD:
%s`

const storyPromptTemplate = `Turn the following work chunk into small user
stories. Start each story with a one-line title heading, include a
"Points: N" line estimating effort, and separate stories with a line
containing only "---".

Chunk:
%s`

const validationPromptTemplate = `You are reviewing a work chunk as %s.
Judge whether the chunk is self-contained, unambiguous, and implementable.
Reply with PASS or FAIL on the first line, followed by your findings.

Chunk:
%s`

// stagePrompt builds the generation prompt for a stage. Extra key/value
// pairs are appended as context lines.
func stagePrompt(stage pipeline.StageName, input string, extra map[string]string) (string, error) {
	var prompt string
	switch stage {
	case pipeline.StagePRD:
		prompt = fmt.Sprintf(prdPromptTemplate, input)
	case pipeline.StageChunk:
		prompt = fmt.Sprintf(chunkPromptTemplate, input)
	case pipeline.StageStory:
		prompt = fmt.Sprintf(storyPromptTemplate, input)
	default:
		return "", errors.Wrapf(errors.ErrGenerationFailed, "unknown stage %q", stage)
	}
	if len(extra) > 0 {
		var sb strings.Builder
		sb.WriteString(prompt)
		sb.WriteString("\n\nAdditional context:\n")
		for k, v := range extra {
			fmt.Fprintf(&sb, "- %s: %s\n", k, v)
		}
		prompt = sb.String()
	}
	return prompt, nil
}

// validationPrompt builds the chunk validation prompt for a persona.
func validationPrompt(content, persona string) string {
	if persona == "" {
		persona = "a staff engineer"
	}
	return fmt.Sprintf(validationPromptTemplate, persona, content)
}
