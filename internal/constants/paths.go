package constants

// Home directory layout.
const (
	// FabHome is the name of the FAB home directory under $HOME.
	FabHome = ".fab"

	// RegistryDir is the subdirectory of the FAB home that holds the
	// artifact registry (one directory per artifact).
	RegistryDir = "registry"

	// LogsDir is the subdirectory of the FAB home that holds log files.
	LogsDir = "logs"
)

// File names within an artifact directory.
const (
	// RecordFileName is the JSON file holding the artifact record.
	RecordFileName = "record.json"

	// ContentBaseName is the base name for versioned artifact bodies.
	// Bodies are append-only: body.1.md, body.2.md, ...
	ContentBaseName = "body.md"
)

// Log file names.
const (
	// CLILogFileName is the global CLI log file under ~/.fab/logs/.
	CLILogFileName = "fab.log"

	// SandboxLogFileName is the per-run sandbox log artifact.
	SandboxLogFileName = "sandbox.log"
)

// Configuration file names.
const (
	// GlobalConfigName is the global FAB configuration file,
	// located in the FAB home directory.
	GlobalConfigName = "config.yaml"

	// ProjectConfigDir is the project-local configuration directory.
	ProjectConfigDir = ".fab"

	// EnvFileName is the optional dotenv file loaded for credential
	// injection before sandbox preflight.
	EnvFileName = ".env"
)

// SandboxDirPrefix is the prefix for isolated sandbox working directories.
const SandboxDirPrefix = "fab-sandbox-"
