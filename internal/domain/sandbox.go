package domain

import "time"

// SandboxSpec describes one code-modification task to be executed in an
// isolated process. Specs are ephemeral: created per execution and never
// persisted beyond the run.
type SandboxSpec struct {
	// Model is the target model identifier passed to the agent runtime.
	Model string `json:"model,omitempty"`

	// Instruction is the natural-language task for the agent.
	Instruction string `json:"instruction"`

	// ReadOnlyPaths are files exposed to the agent as context only.
	// Paths are relative to WorkTree and must be disjoint from
	// WritablePaths.
	ReadOnlyPaths []string `json:"read_only_paths,omitempty"`

	// WritablePaths are the files the agent may modify. The post-run
	// diff is computed over exactly this set.
	WritablePaths []string `json:"writable_paths"`

	// WorkTree is the caller's working tree the file sets are
	// materialized from (and synced back to).
	WorkTree string `json:"work_tree"`

	// Budget bounds the run. A zero Timeout is rejected; there is no
	// run-forever mode.
	Budget ResourceBudget `json:"budget"`

	// Env is the environment variable allowlist injected into the agent
	// process, used for credential injection only. Values are never logged.
	Env map[string]string `json:"-"`
}

// ResourceBudget bounds a sandbox run.
type ResourceBudget struct {
	// MemoryLimitMB is the address-space ceiling in megabytes. Zero means
	// the configured default.
	MemoryLimitMB int `json:"memory_limit_mb,omitempty"`

	// CPUSeconds is the CPU-time budget in seconds. Zero means the
	// configured default.
	CPUSeconds int `json:"cpu_seconds,omitempty"`

	// Timeout is the wall-clock limit for the run. Required.
	Timeout time.Duration `json:"timeout"`
}

// LogSource tags where a sandbox log record originated.
type LogSource string

// Log source constants.
const (
	// LogSourceRuntime tags records emitted by the sandbox runtime itself
	// (setup, teardown, watchdog).
	LogSourceRuntime LogSource = "runtime"

	// LogSourceAgent tags records from the agent process stdout.
	LogSourceAgent LogSource = "agent"

	// LogSourceAgentErr tags records from the agent process stderr.
	LogSourceAgentErr LogSource = "agent_stderr"

	// LogSourceController tags records from the controlling engine.
	LogSourceController LogSource = "controller"
)

// LogSeverity classifies a sandbox log record.
type LogSeverity string

// Log severity constants.
const (
	LogSeverityInfo  LogSeverity = "info"
	LogSeverityWarn  LogSeverity = "warn"
	LogSeverityError LogSeverity = "error"
)

// LogRecord is one line of sandbox output, tagged by source and timestamp.
// Records within one execution are delivered in the order the process
// emitted them.
type LogRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	Source    LogSource   `json:"source"`
	Severity  LogSeverity `json:"severity"`
	Line      string      `json:"line"`
}

// FailureClass classifies a failed sandbox run.
type FailureClass string

// Failure class constants, mirroring the sandbox error taxonomy.
const (
	// FailureNone means the run succeeded.
	FailureNone FailureClass = ""

	// FailurePrerequisites means the runtime or credentials were missing.
	FailurePrerequisites FailureClass = "prerequisites_not_met"

	// FailureTimeout means the watchdog terminated the run.
	FailureTimeout FailureClass = "timeout"

	// FailureResourceLimit means the kernel enforced a resource ceiling.
	FailureResourceLimit FailureClass = "resource_limit"

	// FailureNonZeroExit means the agent process exited nonzero.
	FailureNonZeroExit FailureClass = "non_zero_exit"

	// FailureSetup means isolation or launch failed.
	FailureSetup FailureClass = "setup_failure"

	// FailureCancelled means the caller aborted the run.
	FailureCancelled FailureClass = "cancelled"
)

// SandboxResult is the structured outcome of one sandbox run. A result is
// returned for every run that got past spec validation, including failures,
// so partial changes and diagnostics are never silently lost.
type SandboxResult struct {
	// Success is true when the agent process exited zero within budget.
	Success bool `json:"success"`

	// ChangedFiles lists writable paths whose content differs from the
	// pre-run snapshot, sorted. Computed even on failure.
	ChangedFiles []string `json:"changed_files"`

	// ExitCode is the agent process exit code (-1 if it never exited
	// normally).
	ExitCode int `json:"exit_code"`

	// Failure classifies a failed run; FailureNone on success.
	Failure FailureClass `json:"failure,omitempty"`

	// Log is the ordered sequence of log records accumulated during
	// the run.
	Log []LogRecord `json:"log"`

	// Duration is the wall-clock time the run took.
	Duration time.Duration `json:"duration"`
}

// LogTail returns the last n log lines formatted for metadata excerpts.
func (r *SandboxResult) LogTail(n int) []string {
	if n <= 0 || len(r.Log) == 0 {
		return nil
	}
	start := len(r.Log) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, len(r.Log)-start)
	for _, rec := range r.Log[start:] {
		out = append(out, string(rec.Source)+": "+rec.Line)
	}
	return out
}
