// Package errors provides centralized error handling for FAB.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Registry and lifecycle sentinel errors. These are all non-retryable
// caller or data errors.
var (
	// ErrNotFound indicates the requested artifact does not exist in the registry.
	ErrNotFound = errors.New("artifact not found")

	// ErrTypeMismatch indicates a stage was invoked against an artifact of
	// the wrong type (e.g. running the chunk stage on a story id).
	ErrTypeMismatch = errors.New("artifact type mismatch")

	// ErrInvalidLineage indicates a child registration referenced a missing
	// parent or a parent of the wrong preceding type.
	ErrInvalidLineage = errors.New("invalid lineage")

	// ErrIllegalTransition indicates no edge exists in the artifact's state
	// machine for the requested transition. The record is left unchanged.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrInvariantViolation indicates a structurally invalid write (duplicate
	// id, cyclic parent, stale revision) rejected before persistence.
	ErrInvariantViolation = errors.New("registry invariant violation")

	// ErrImplementationInFlight indicates a second implementation attempt was
	// made for a story that already has a sandbox run in progress.
	ErrImplementationInFlight = errors.New("implementation already in progress")
)

// Sandbox sentinel errors. ErrSandboxTimeout and transient ErrSetupFailure
// are retry-eligible at the orchestrator's discretion; ErrNonZeroExit is
// surfaced as a blocked story and never auto-retried.
var (
	// ErrPrerequisitesNotMet indicates the execution runtime or required
	// credentials are missing. The error message lists each missing item.
	ErrPrerequisitesNotMet = errors.New("sandbox prerequisites not met")

	// ErrSandboxTimeout indicates the agent process exceeded its wall-clock
	// timeout and was forcibly terminated by the watchdog.
	ErrSandboxTimeout = errors.New("sandbox timeout exceeded")

	// ErrResourceLimitExceeded indicates the agent process exceeded its
	// memory or CPU budget and was terminated by the kernel.
	ErrResourceLimitExceeded = errors.New("sandbox resource limit exceeded")

	// ErrNonZeroExit indicates the agent process exited with a nonzero code.
	ErrNonZeroExit = errors.New("sandbox process exited nonzero")

	// ErrSetupFailure indicates the isolated filesystem view or process
	// launch could not be established.
	ErrSetupFailure = errors.New("sandbox setup failed")

	// ErrSpecInvalid indicates the sandbox task specification is malformed
	// (missing timeout, overlapping file sets, no writeable targets).
	ErrSpecInvalid = errors.New("invalid sandbox task specification")
)

// Collaborator sentinel errors.
var (
	// ErrGenerationFailed indicates the generation service reported a
	// failed verdict. Treated as a retryable stage failure.
	ErrGenerationFailed = errors.New("generation service failed")

	// ErrValidationUnavailable indicates the validation adapter itself
	// errored (as opposed to returning a failed verdict).
	ErrValidationUnavailable = errors.New("validation adapter unavailable")
)

// Ambient sentinel errors for configuration and CLI surfaces.
var (
	// ErrConfigNil indicates a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidSandbox indicates an invalid sandbox configuration value.
	ErrConfigInvalidSandbox = errors.New("invalid sandbox configuration")

	// ErrConfigInvalidRegistry indicates an invalid registry configuration value.
	ErrConfigInvalidRegistry = errors.New("invalid registry configuration")

	// ErrConfigInvalidAgent indicates an invalid agent configuration value.
	ErrConfigInvalidAgent = errors.New("invalid agent configuration")

	// ErrEmptyValue indicates a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrLockTimeout indicates a file lock could not be acquired within
	// the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrPathTraversal indicates an attempt to use path traversal in a filename.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrTooManyVersions indicates too many versioned content bodies exist.
	ErrTooManyVersions = errors.New("too many content versions")

	// ErrContentNotFound indicates the requested content body was not found.
	ErrContentNotFound = errors.New("content not found")
)
