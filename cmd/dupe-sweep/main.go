package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dupe-sweep/internal/config"
	"dupe-sweep/internal/confirm"
	"dupe-sweep/internal/database"
	"dupe-sweep/internal/exitcodes"
	"dupe-sweep/internal/logging"
	"dupe-sweep/internal/pipeline"
	"dupe-sweep/internal/report"
	"dupe-sweep/internal/scan"
	"dupe-sweep/internal/tracing"
)

// exitError carries the process exit code for an error
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// flags holds the root command's flag values before they are merged into a config
type flags struct {
	configPath   string
	directory    string
	invalidFiles bool
	recursive    bool
	confirmation bool
	dryRun       bool
	workers      int
	noProgress   bool
	logLevel     string
	logFile      string
	historyDB    string
	metricsFile  string
	trace        bool
}

// streams are the process's standard streams; tests substitute buffers
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
	cancel()
	os.Exit(code)
}

// execute runs the CLI and returns the exit code
func execute(ctx context.Context, args []string, s streams) int {
	root := newRootCmd(s)
	root.SetArgs(args)
	root.SetIn(s.in)
	root.SetOut(s.out)
	root.SetErr(s.err)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitcodes.Success
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.code == exitcodes.InvalidUsage || ee.code == exitcodes.RuntimeError {
			fmt.Fprintf(s.err, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	// Anything cobra rejects before RunE (unknown flag, bad value) is a usage error.
	fmt.Fprintf(s.err, "Error: %v\n", err)
	fmt.Fprintln(s.err, root.UsageString())
	return exitcodes.InvalidUsage
}

func newRootCmd(s streams) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "dupe-sweep",
		Short: "Remove duplicate and zero-byte files from a directory",
		Long: `dupe-sweep lists the files of a directory, groups them by content and
removes every copy except the oldest one of each group. Zero-byte files are
reported, and removed as well with --invalid-files.

With --confirmation every deletion is asked for on the terminal; answer y or n.`,
		Example: `  # Remove duplicates directly under ~/Downloads
  dupe-sweep -d ~/Downloads

  # Walk subdirectories too, and remove empty files
  dupe-sweep -d ~/Pictures -r -i

  # Ask before every deletion
  dupe-sweep -d ~/Pictures -r -c

  # Preview only, with four hashing workers
  dupe-sweep -d /srv/share -r --dry-run --workers 4`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd, f, s)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.directory, "directory", "d", "", "directory to look for duplicate files in")
	fl.BoolVarP(&f.invalidFiles, "invalid-files", "i", false, "delete every zero-byte file found")
	fl.BoolVarP(&f.recursive, "recursive", "r", false, "search subdirectories recursively")
	fl.BoolVarP(&f.confirmation, "confirmation", "c", false, "ask for confirmation before each deletion")
	fl.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fl.BoolVar(&f.dryRun, "dry-run", false, "report what would be deleted without deleting")
	fl.IntVar(&f.workers, "workers", 1, "number of files hashed in parallel")
	fl.BoolVar(&f.noProgress, "no-progress", false, "disable progress bars")
	fl.StringVar(&f.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	fl.StringVar(&f.logFile, "log-file", "", "also write JSON logs to this file")
	fl.StringVar(&f.historyDB, "history-db", "", "append deletion outcomes to this SQLite database")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	fl.BoolVar(&f.trace, "trace", false, "export stage spans as JSON to stderr")

	cmd.AddCommand(newHistoryCmd())
	return cmd
}

// loadConfig reads the config file, if any, then applies every flag the user set
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("directory") {
		cfg.Directory = f.directory
	}
	if changed("invalid-files") {
		cfg.InvalidFiles = f.invalidFiles
	}
	if changed("recursive") {
		cfg.Recursive = f.recursive
	}
	if changed("confirmation") {
		cfg.Confirmation = f.confirmation
	}
	if changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("no-progress") {
		on := !f.noProgress
		cfg.Progress = &on
	}
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if changed("log-file") {
		cfg.Logging.File = f.logFile
	}
	if changed("history-db") {
		cfg.History.DatabasePath = f.historyDB
	}
	if changed("metrics-file") {
		cfg.Metrics.TextfilePath = f.metricsFile
	}
	if changed("trace") {
		cfg.Tracing.Enabled = f.trace
	}

	if !changed("directory") && cfg.Directory == "" {
		return nil, errors.New(`required flag(s) "directory" not set`)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSweep(cmd *cobra.Command, f *flags, s streams) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return withCode(exitcodes.InvalidUsage, err)
	}

	logger, err := logging.NewWithConfig(cfg.Logging, s.err)
	if err != nil {
		return withCode(exitcodes.InvalidUsage, fmt.Errorf("logging: %w", err))
	}
	defer func() { _ = logger.Sync() }()

	shutdown, err := tracing.Init(cfg.Tracing.Enabled, s.err)
	if err != nil {
		return withCode(exitcodes.RuntimeError, fmt.Errorf("tracing: %w", err))
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	var history *database.HistoryDB
	if cfg.History.DatabasePath != "" {
		logger.Info("Opening history database", zap.String("path", cfg.History.DatabasePath))
		history, err = database.NewHistoryDB(cfg.History.DatabasePath)
		if err != nil {
			return withCode(exitcodes.RuntimeError, err)
		}
		defer func() {
			if err := history.Close(); err != nil {
				logger.Error("Failed to close history database", zap.Error(err))
			}
		}()
	}

	if cfg.DryRun {
		logger.Info("Dry run: no files will be deleted")
	}

	console := report.NewConsole(s.out, cfg.Messages)
	deps := pipeline.Deps{
		Console:  console,
		Progress: report.ForTerminal(s.err, cfg.ProgressEnabled()),
		Logger:   logger,
		History:  history,
	}
	if cfg.Confirmation {
		deps.Asker = confirm.NewPrompter(s.in, s.out)
	}

	if _, err := pipeline.Run(cmd.Context(), pipeline.FromConfig(cfg), deps); err != nil {
		if errors.Is(err, scan.ErrInvalidPath) || errors.Is(err, scan.ErrNotADirectory) {
			// The console already printed the reason.
			return withCode(exitcodes.InvalidPath, err)
		}
		logger.Error("Run failed", zap.Error(err))
		return withCode(exitcodes.RuntimeError, err)
	}
	return nil
}
