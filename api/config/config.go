package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultBackend is the backend identifier used when none is configured.
	DefaultBackend = "bluetoothctl"

	// DefaultShellPath is the control shell executable used by the shell backend.
	DefaultShellPath = "bluetoothctl"

	// The default timeout duration for a single bus method call.
	DefaultBusCallTimeout = 5 * time.Second

	// The default discovery window of a scan.
	DefaultScanTimeout = 3 * time.Second

	// DefaultLogLevel is the minimum level written to standard output.
	DefaultLogLevel = "info"
)

// Configuration describes a general configuration.
type Configuration struct {
	// Backend holds the identifier (or identifier prefix) of the backend to open.
	Backend string `yaml:"backend"`

	// ScanTimeout holds the discovery window used by callers that do not pass one.
	ScanTimeout time.Duration `yaml:"scan_timeout"`

	Shell ShellConfig `yaml:"shell"`
	Bus   BusConfig   `yaml:"bus"`
	Log   LogConfig   `yaml:"log"`
}

// ShellConfig holds settings of the text-shell backend.
type ShellConfig struct {
	// Path holds the path to the control shell executable.
	Path string `yaml:"path"`

	// CommandTimeout bounds how long a single shell invocation may run.
	// Zero means the invocation is never killed.
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// BusConfig holds settings of the system bus backend.
type BusConfig struct {
	// CallTimeout holds the reply timeout of a single method call.
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`

	// File holds an optional path of a rotated debug log file.
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	KeepDays  int    `yaml:"keep_days"`
}

// New returns a new configuration with default values.
func New() Configuration {
	return Configuration{
		Backend:     DefaultBackend,
		ScanTimeout: DefaultScanTimeout,
		Shell: ShellConfig{
			Path: DefaultShellPath,
		},
		Bus: BusConfig{
			CallTimeout: DefaultBusCallTimeout,
		},
		Log: LogConfig{
			Level:     DefaultLogLevel,
			MaxSizeMB: 10,
			KeepDays:  7,
		},
	}
}

// Load reads a YAML file on top of the default configuration.
// Environment variables referenced as ${VAR} or $VAR are expanded before parsing.
func Load(path string) (Configuration, error) {
	cfg := New()

	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		return cfg, fmt.Errorf("config: load: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks that the configuration is internally consistent.
func (c Configuration) Validate() error {
	if c.Shell.Path == "" {
		return fmt.Errorf("config: shell path is required")
	}
	if c.Shell.CommandTimeout < 0 {
		return fmt.Errorf("config: shell command timeout must not be negative")
	}
	if c.Bus.CallTimeout <= 0 {
		return fmt.Errorf("config: bus call timeout must be positive")
	}
	if c.Log.MaxSizeMB < 0 || c.Log.KeepDays < 0 {
		return fmt.Errorf("config: log rotation limits must not be negative")
	}

	return nil
}
