package config

import (
	"os"
	"path/filepath"

	"github.com/ideaforge/fab/internal/constants"
	"github.com/ideaforge/fab/internal/errors"
)

// GlobalConfigDir returns the path to the global FAB configuration
// directory, typically ~/.fab on Unix systems. The FAB_HOME environment
// variable overrides the default location.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	if dir := os.Getenv("FAB_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.FabHome), nil
}

// GlobalConfigPath returns the full path to the global configuration
// file, typically ~/.fab/config.yaml.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the relative path to the project
// configuration file, always .fab/config.yaml from the project root.
func ProjectConfigPath() string {
	return filepath.Join(constants.ProjectConfigDir, constants.GlobalConfigName)
}

// StoreHome resolves the FAB home used for registry storage: the
// configured override when set, otherwise ~/.fab.
func (c *Config) StoreHome() (string, error) {
	if c.Registry.Dir != "" {
		return c.Registry.Dir, nil
	}
	return GlobalConfigDir()
}

// LogsDir returns the directory holding the global CLI log file.
func LogsDir() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.LogsDir), nil
}
