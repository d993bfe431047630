// Package pipeline provides the orchestrator that drives artifacts
// through the content-to-code pipeline, composing the generation service
// (text stages) and the sandbox execution engine (implementation stage)
// with the lifecycle manager.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/lifecycle, internal/registry, internal/sandbox, std lib
//   - MUST NOT import: internal/cli
package pipeline

import "context"

// StageName identifies one pipeline step for the generation service.
type StageName string

// Stage name constants.
const (
	// StagePRD expands an idea into a product requirements document.
	StagePRD StageName = "prd"

	// StageChunk slices a PRD into self-contained chunks.
	StageChunk StageName = "chunk"

	// StageStory turns a validated chunk into user stories.
	StageStory StageName = "story"
)

// Generator is the external generation service boundary. Given artifact
// content and a stage, it returns generated text and an ok verdict. A
// false verdict is a retryable stage failure, not fatal; an error means
// the service itself could not be reached.
//
// How an LLM produces the content is outside this design; the pipeline
// consumes an opaque text transform.
type Generator interface {
	Generate(ctx context.Context, stage StageName, input string, extra map[string]string) (output string, ok bool, err error)
}

// Validator is the external validation adapter boundary. It judges a
// chunk's content from a reviewer persona and returns a pass/fail verdict
// with a report. The verdict consumer is the lifecycle manager.
type Validator interface {
	Validate(ctx context.Context, content, persona string) (passed bool, report string, err error)
}
