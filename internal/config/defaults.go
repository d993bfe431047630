package config

import "github.com/ideaforge/fab/internal/constants"

// DefaultConfig returns a Config populated with built-in defaults.
// These values must stay in sync with setDefaults in load.go.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Command:      "claude",
			Model:        "sonnet",
			NoCommitFlag: "--no-commit",
			EnvAllowlist: []string{"ANTHROPIC_API_KEY"},
		},
		Sandbox: SandboxConfig{
			Timeout:       constants.DefaultSandboxTimeout,
			MemoryLimitMB: constants.DefaultMemoryLimitMB,
			CPUSeconds:    constants.DefaultCPUSeconds,
		},
		Registry: RegistryConfig{
			CacheSize: constants.RecordCacheSize,
		},
		Pipeline: PipelineConfig{
			DefaultPersona: "staff engineer",
		},
	}
}
