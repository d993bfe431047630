package config

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/errors"
)

// newViperInstance creates a Viper instance with standard FAB settings:
// environment variable prefix (FAB_), key replacer, and defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file
// not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into a Config and
// validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration from all available sources with proper
// precedence. Configuration is loaded in the following order (highest
// precedence first):
//  1. Environment variables (FAB_* prefix)
//  2. Project config (.fab/config.yaml)
//  3. Global config (~/.fab/config.yaml)
//  4. Built-in defaults
//
// A project-local .fab/.env file, when present, is loaded into the
// process environment first so credential variables named in the agent
// allowlist resolve without shell exports. Existing environment values
// are never overwritten.
//
// The function returns an error only for actual configuration problems,
// not for missing config files.
func Load(ctx context.Context) (*Config, error) {
	loadDotEnv(ctx)

	v := newViperInstance()

	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}
	return unmarshalAndValidate(v)
}

// loadDotEnv loads .fab/.env into the process environment if it exists.
// godotenv.Load never overwrites variables already set.
func loadDotEnv(ctx context.Context) {
	path := constants.ProjectConfigDir + string(os.PathSeparator) + constants.EnvFileName
	if !fileExists(path) {
		return
	}
	if err := godotenv.Load(path); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("failed to load env file")
	}
}

// loadGlobalConfig attempts to load ~/.fab/config.yaml. Returns nil if
// the file doesn't exist or the home directory cannot be determined.
func loadGlobalConfig(v *viper.Viper) error {
	path, err := GlobalConfigPath()
	if err != nil || !fileExists(path) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// loadProjectConfig attempts to load .fab/config.yaml relative to the
// current directory. Returns nil if the file doesn't exist.
func loadProjectConfig(v *viper.Viper) error {
	path := ProjectConfigPath()
	if !fileExists(path) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// fileExists returns true if the file at path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadWithOverrides loads configuration and applies CLI flag overrides,
// which have the highest precedence. Only non-zero override values are
// applied, allowing partial overrides.
func LoadWithOverrides(ctx context.Context, overrides *Config) (*Config, error) {
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		applyOverrides(cfg, overrides)
	}
	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}
	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths for
// testing. Either path can be empty to skip that level.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}
	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}
	return unmarshalAndValidate(v)
}

// setDefaults configures all default values on the Viper instance.
// These defaults match the values from DefaultConfig().
// IMPORTANT: Keys must match the YAML tag names exactly.
func setDefaults(v *viper.Viper) {
	// Agent defaults
	v.SetDefault("agent.command", "claude")
	v.SetDefault("agent.args", []string{})
	v.SetDefault("agent.model", "sonnet")
	v.SetDefault("agent.no_commit_flag", "--no-commit")
	v.SetDefault("agent.env_allowlist", []string{"ANTHROPIC_API_KEY"})

	// Sandbox defaults
	v.SetDefault("sandbox.timeout", constants.DefaultSandboxTimeout.String())
	v.SetDefault("sandbox.memory_limit_mb", constants.DefaultMemoryLimitMB)
	v.SetDefault("sandbox.cpu_seconds", constants.DefaultCPUSeconds)
	v.SetDefault("sandbox.work_root", "")
	v.SetDefault("sandbox.isolation_wrapper", []string{})

	// Registry defaults
	v.SetDefault("registry.dir", "")
	v.SetDefault("registry.cache_size", constants.RecordCacheSize)

	// Pipeline defaults
	v.SetDefault("pipeline.default_persona", "staff engineer")
}

// applyOverrides merges non-zero override values into the config.
func applyOverrides(cfg, overrides *Config) {
	if overrides.Agent.Command != "" {
		cfg.Agent.Command = overrides.Agent.Command
	}
	if len(overrides.Agent.Args) > 0 {
		cfg.Agent.Args = overrides.Agent.Args
	}
	if overrides.Agent.Model != "" {
		cfg.Agent.Model = overrides.Agent.Model
	}
	if overrides.Agent.NoCommitFlag != "" {
		cfg.Agent.NoCommitFlag = overrides.Agent.NoCommitFlag
	}
	if len(overrides.Agent.EnvAllowlist) > 0 {
		cfg.Agent.EnvAllowlist = overrides.Agent.EnvAllowlist
	}

	if overrides.Sandbox.Timeout != 0 {
		cfg.Sandbox.Timeout = overrides.Sandbox.Timeout
	}
	if overrides.Sandbox.MemoryLimitMB != 0 {
		cfg.Sandbox.MemoryLimitMB = overrides.Sandbox.MemoryLimitMB
	}
	if overrides.Sandbox.CPUSeconds != 0 {
		cfg.Sandbox.CPUSeconds = overrides.Sandbox.CPUSeconds
	}
	if overrides.Sandbox.WorkRoot != "" {
		cfg.Sandbox.WorkRoot = overrides.Sandbox.WorkRoot
	}
	if len(overrides.Sandbox.IsolationWrapper) > 0 {
		cfg.Sandbox.IsolationWrapper = overrides.Sandbox.IsolationWrapper
	}

	if overrides.Registry.Dir != "" {
		cfg.Registry.Dir = overrides.Registry.Dir
	}
	if overrides.Registry.CacheSize != 0 {
		cfg.Registry.CacheSize = overrides.Registry.CacheSize
	}

	if overrides.Pipeline.DefaultPersona != "" {
		cfg.Pipeline.DefaultPersona = overrides.Pipeline.DefaultPersona
	}
}

// viperDecoderOption returns the decoder options for Viper unmarshal.
// This configures mapstructure to handle time.Duration conversion from
// strings.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}
