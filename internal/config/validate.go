package config

import (
	"time"

	"github.com/ideaforge/fab/internal/errors"
)

// maxSandboxTimeout bounds runaway timeout configuration.
const maxSandboxTimeout = 24 * time.Hour

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - Agent command must not be empty
//   - Sandbox timeout must be positive and at most 24h
//   - Sandbox memory and CPU limits must not be negative
//   - Registry cache size must not be negative
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}
	if err := validateAgentConfig(&cfg.Agent); err != nil {
		return err
	}
	if err := validateSandboxConfig(&cfg.Sandbox); err != nil {
		return err
	}
	return validateRegistryConfig(&cfg.Registry)
}

func validateAgentConfig(cfg *AgentConfig) error {
	if cfg.Command == "" {
		return errors.Wrap(errors.ErrConfigInvalidAgent,
			"agent.command must not be empty")
	}
	return nil
}

func validateSandboxConfig(cfg *SandboxConfig) error {
	if cfg.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidSandbox,
			"sandbox.timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.Timeout > maxSandboxTimeout {
		return errors.Wrapf(errors.ErrConfigInvalidSandbox,
			"sandbox.timeout must be at most %s, got %s", maxSandboxTimeout, cfg.Timeout)
	}
	if cfg.MemoryLimitMB < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidSandbox,
			"sandbox.memory_limit_mb cannot be negative, got %d", cfg.MemoryLimitMB)
	}
	if cfg.CPUSeconds < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidSandbox,
			"sandbox.cpu_seconds cannot be negative, got %d", cfg.CPUSeconds)
	}
	return nil
}

func validateRegistryConfig(cfg *RegistryConfig) error {
	if cfg.CacheSize < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidRegistry,
			"registry.cache_size cannot be negative, got %d", cfg.CacheSize)
	}
	return nil
}
