package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type LoggingCfg struct {
	Level        string `yaml:"level" json:"level"`                 // debug, info, warn, error
	File         string `yaml:"file" json:"file"`                   // Optional JSON log file
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
}

type ResourceLimits struct {
	MaxCPUPercent float64 `yaml:"max_cpu_percent" json:"max_cpu_percent"` // Throttle hashing; 0 disables
}

type HistoryCfg struct {
	DatabasePath string `yaml:"database_path" json:"database_path"` // SQLite audit history; empty disables
}

type MetricsCfg struct {
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"` // Prometheus text exposition written after the run
}

type TracingCfg struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Messages holds every user-facing status line. Templates with a %s verb
// receive a path.
type Messages struct {
	GettingFiles         string `yaml:"getting_files" json:"getting_files"`
	DirectoryIsEmpty     string `yaml:"directory_is_empty" json:"directory_is_empty"`
	NoDuplicates         string `yaml:"no_duplicates" json:"no_duplicates"`
	RemovingDuplicates   string `yaml:"removing_duplicates" json:"removing_duplicates"`
	RemovingInvalid      string `yaml:"removing_invalid" json:"removing_invalid"`
	InvalidFilesDetected string `yaml:"invalid_files_detected" json:"invalid_files_detected"`
	DeleteConfirmation   string `yaml:"delete_confirmation" json:"delete_confirmation"`
	CancelledByUser      string `yaml:"cancelled_by_user" json:"cancelled_by_user"`
	SuccessfullyRemoved  string `yaml:"successfully_removed" json:"successfully_removed"`
	WouldRemove          string `yaml:"would_remove" json:"would_remove"`
	AlreadyRemoved       string `yaml:"already_removed" json:"already_removed"`
	RemoveFailed         string `yaml:"remove_failed" json:"remove_failed"`
	EmptyDirectoryArg    string `yaml:"empty_directory_arg" json:"empty_directory_arg"`
	PathNotFound         string `yaml:"path_not_found" json:"path_not_found"`
	NotADirectory        string `yaml:"not_a_directory" json:"not_a_directory"`
	OperationCompleted   string `yaml:"operation_completed" json:"operation_completed"`
}

type Config struct {
	Directory      string         `yaml:"directory" json:"directory"`
	Recursive      bool           `yaml:"recursive" json:"recursive"`
	Confirmation   bool           `yaml:"confirmation" json:"confirmation"`
	InvalidFiles   bool           `yaml:"invalid_files" json:"invalid_files"`
	DryRun         bool           `yaml:"dry_run" json:"dry_run"`
	Workers        int            `yaml:"workers" json:"workers"`   // Parallel hashing workers (1 = sequential)
	Progress       *bool          `yaml:"progress" json:"progress"` // Progress bars on a terminal (default: true)
	ProtectedPaths []string       `yaml:"protected_paths" json:"protected_paths"`
	Logging        LoggingCfg     `yaml:"logging" json:"logging"`
	ResourceLimits ResourceLimits `yaml:"resource_limits" json:"resource_limits"`
	History        HistoryCfg     `yaml:"history" json:"history"`
	Metrics        MetricsCfg     `yaml:"metrics" json:"metrics"`
	Tracing        TracingCfg     `yaml:"tracing" json:"tracing"`
	Messages       Messages       `yaml:"messages" json:"messages"`
}

var (
	errNegativeWorkers = errors.New("workers cannot be negative")
	errInvalidCPU      = errors.New("max_cpu_percent must be between 0 and 100")
	errInvalidLevel    = errors.New("logging.level must be one of debug, info, warn, error")
)

// DefaultMessages returns the stock status lines
func DefaultMessages() Messages {
	return Messages{
		GettingFiles:         `Getting files from: "%s"`,
		DirectoryIsEmpty:     "Directory is empty",
		NoDuplicates:         "No Duplicate Files Found",
		RemovingDuplicates:   "Removing Duplicate Files...",
		RemovingInvalid:      "Removing invalid files...",
		InvalidFilesDetected: "Invalid Files Detected:",
		DeleteConfirmation:   "Are you sure you want to delete %s ([y]es, [n]o) ",
		CancelledByUser:      "File deletion cancelled by user: %s",
		SuccessfullyRemoved:  "Successfully removed: %s",
		WouldRemove:          "[DRY RUN] Would remove: %s",
		AlreadyRemoved:       "Already removed: %s",
		RemoveFailed:         "ERROR: Failed to remove %s",
		EmptyDirectoryArg:    "ERROR: Received empty directory",
		PathNotFound:         "ERROR: Path not found, %s",
		NotADirectory:        "ERROR: Expected a directory but received a file, %s",
		OperationCompleted:   "Operation Completed",
	}
}

// Default returns a config with every default applied
func Default() *Config {
	cfg := &Config{}
	_ = cfg.validateAndDefault()
	return cfg
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if c.Workers < 0 {
		return errNegativeWorkers
	}
	if c.Workers == 0 {
		c.Workers = 1 // Sequential hashing unless asked otherwise
	}

	if c.Progress == nil {
		on := true
		c.Progress = &on
	}

	switch c.Logging.Level {
	case "":
		c.Logging.Level = "warn"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", errInvalidLevel, c.Logging.Level)
	}
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}

	if c.ResourceLimits.MaxCPUPercent < 0 || c.ResourceLimits.MaxCPUPercent > 100 {
		return errInvalidCPU
	}

	if c.Directory != "" {
		c.Directory = filepath.Clean(c.Directory)
	}

	c.Messages = c.Messages.withDefaults()
	return nil
}

// Validate re-runs validation after flag overrides have been applied
func (c *Config) Validate() error {
	return c.validateAndDefault()
}

// ProgressEnabled reports whether progress bars may be drawn
func (c *Config) ProgressEnabled() bool {
	return c.Progress == nil || *c.Progress
}

func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.GettingFiles, d.GettingFiles)
	fill(&m.DirectoryIsEmpty, d.DirectoryIsEmpty)
	fill(&m.NoDuplicates, d.NoDuplicates)
	fill(&m.RemovingDuplicates, d.RemovingDuplicates)
	fill(&m.RemovingInvalid, d.RemovingInvalid)
	fill(&m.InvalidFilesDetected, d.InvalidFilesDetected)
	fill(&m.DeleteConfirmation, d.DeleteConfirmation)
	fill(&m.CancelledByUser, d.CancelledByUser)
	fill(&m.SuccessfullyRemoved, d.SuccessfullyRemoved)
	fill(&m.WouldRemove, d.WouldRemove)
	fill(&m.AlreadyRemoved, d.AlreadyRemoved)
	fill(&m.RemoveFailed, d.RemoveFailed)
	fill(&m.EmptyDirectoryArg, d.EmptyDirectoryArg)
	fill(&m.PathNotFound, d.PathNotFound)
	fill(&m.NotADirectory, d.NotADirectory)
	fill(&m.OperationCompleted, d.OperationCompleted)
	return m
}
