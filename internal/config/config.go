// Package config provides configuration management for FAB with layered
// precedence.
//
// Configuration sources are loaded in the following order (highest
// precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (FAB_* prefix)
//  3. Project config (.fab/config.yaml)
//  4. Global config (~/.fab/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and
// internal/errors, but MUST NOT import internal/domain or other internal
// packages.
package config

import "time"

// Config is the root configuration structure for FAB.
type Config struct {
	// Agent contains settings for the coding agent subprocess run inside
	// the sandbox.
	Agent AgentConfig `yaml:"agent" mapstructure:"agent"`

	// Sandbox contains resource limits and isolation settings for
	// sandboxed implementation runs.
	Sandbox SandboxConfig `yaml:"sandbox" mapstructure:"sandbox"`

	// Registry contains settings for the artifact registry store.
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`

	// Pipeline contains settings for stage orchestration.
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
}

// AgentConfig contains settings for the coding agent subprocess.
type AgentConfig struct {
	// Command is the agent executable looked up on PATH.
	// Default: "claude"
	Command string `yaml:"command" mapstructure:"command"`

	// Args are extra arguments prepended to every agent invocation.
	Args []string `yaml:"args" mapstructure:"args"`

	// Model is the model identifier passed to the agent.
	// Default: "sonnet"
	Model string `yaml:"model" mapstructure:"model"`

	// NoCommitFlag is passed to the agent CLI so it never makes
	// version-control commits on its own; commits stay with the
	// operator. Empty disables the flag.
	// Default: "--no-commit"
	NoCommitFlag string `yaml:"no_commit_flag" mapstructure:"no_commit_flag"`

	// EnvAllowlist names the host environment variables forwarded into
	// the sandbox. Everything else is stripped.
	// Default: ["ANTHROPIC_API_KEY"]
	EnvAllowlist []string `yaml:"env_allowlist" mapstructure:"env_allowlist"`
}

// SandboxConfig contains resource limits for sandboxed runs.
type SandboxConfig struct {
	// Timeout is the wall-clock limit per run. There is no run-forever
	// mode; zero is rejected by validation.
	// Default: 15 minutes
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MemoryLimitMB caps the agent process address space in megabytes.
	// Zero disables the memory limit.
	// Default: 4096
	MemoryLimitMB int `yaml:"memory_limit_mb" mapstructure:"memory_limit_mb"`

	// CPUSeconds caps the agent process CPU time in seconds.
	// Zero disables the CPU limit.
	// Default: 1800
	CPUSeconds int `yaml:"cpu_seconds" mapstructure:"cpu_seconds"`

	// WorkRoot is the directory under which isolated working directories
	// are created. Empty means the system temp directory.
	WorkRoot string `yaml:"work_root" mapstructure:"work_root"`

	// IsolationWrapper optionally prefixes the agent invocation with a
	// network isolation command (e.g. ["unshare", "-n"]). When empty,
	// runs proceed with a warning that network egress is not blocked.
	IsolationWrapper []string `yaml:"isolation_wrapper" mapstructure:"isolation_wrapper"`
}

// RegistryConfig contains settings for the artifact registry store.
type RegistryConfig struct {
	// Dir overrides the FAB home directory used for registry storage.
	// Empty means ~/.fab (records live under ~/.fab/registry).
	Dir string `yaml:"dir" mapstructure:"dir"`

	// CacheSize is the capacity of the in-memory record cache layered
	// over the file store. Zero disables caching.
	// Default: 512
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size"`
}

// PipelineConfig contains settings for stage orchestration.
type PipelineConfig struct {
	// DefaultPersona is the reviewer persona used for chunk validation
	// when the caller does not supply one.
	// Default: "staff engineer"
	DefaultPersona string `yaml:"default_persona" mapstructure:"default_persona"`
}
