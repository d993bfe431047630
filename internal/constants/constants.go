// Package constants provides shared constant values for the FAB pipeline.
//
// This package follows strict import rules:
//   - CAN import: standard library only
//   - MUST NOT import: any other internal packages
package constants

import "time"

// ArtifactSchemaVersion is the current version of the artifact record schema.
// Stored in every record to enable forward-compatible migrations.
const ArtifactSchemaVersion = 1

// Sandbox execution defaults.
const (
	// DefaultSandboxTimeout is the wall-clock timeout applied when the
	// caller's task specification does not supply one. There is no
	// run-forever mode; a zero timeout in a spec is rejected.
	DefaultSandboxTimeout = 15 * time.Minute

	// DefaultMemoryLimitMB is the default address-space ceiling for the
	// sandboxed agent process, in megabytes.
	DefaultMemoryLimitMB = 4096

	// DefaultCPUSeconds is the default CPU-time budget for the sandboxed
	// agent process, in seconds.
	DefaultCPUSeconds = 1800

	// SandboxLogTailLines is how many trailing log lines are copied into
	// story metadata when a sandbox run fails.
	SandboxLogTailLines = 40
)

// Registry defaults.
const (
	// LockTimeout is the maximum duration to wait when acquiring a
	// per-record file lock.
	LockTimeout = 5 * time.Second

	// RecordCacheSize is the capacity of the LRU record cache layered
	// over the file store.
	RecordCacheSize = 512
)

// Log rotation settings for the global CLI log file.
const (
	// LogMaxSizeMB is the maximum size in megabytes before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated files to retain.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age in days of retained files.
	LogMaxAgeDays = 30

	// LogCompress controls gzip compression of rotated files.
	LogCompress = true
)
