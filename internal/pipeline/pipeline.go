// Package pipeline runs one sweep: validate the root, walk it, classify the
// files and delete what was selected.
package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"dupe-sweep/internal/classify"
	"dupe-sweep/internal/cleanup"
	"dupe-sweep/internal/config"
	"dupe-sweep/internal/confirm"
	"dupe-sweep/internal/database"
	"dupe-sweep/internal/disk"
	"dupe-sweep/internal/fsops"
	"dupe-sweep/internal/limiter"
	"dupe-sweep/internal/metrics"
	"dupe-sweep/internal/report"
	"dupe-sweep/internal/safety"
	"dupe-sweep/internal/scan"
	"dupe-sweep/internal/tracing"
)

// Options selects what a run does
type Options struct {
	Root           string
	Recursive      bool
	Confirmation   bool
	InvalidFiles   bool
	DryRun         bool
	Workers        int
	MaxCPUPercent  float64
	ProtectedPaths []string
	MetricsFile    string
}

// FromConfig builds run options from a validated config
func FromConfig(cfg *config.Config) Options {
	return Options{
		Root:           cfg.Directory,
		Recursive:      cfg.Recursive,
		Confirmation:   cfg.Confirmation,
		InvalidFiles:   cfg.InvalidFiles,
		DryRun:         cfg.DryRun,
		Workers:        cfg.Workers,
		MaxCPUPercent:  cfg.ResourceLimits.MaxCPUPercent,
		ProtectedPaths: cfg.ProtectedPaths,
		MetricsFile:    cfg.Metrics.TextfilePath,
	}
}

// Deps are the collaborators of a run. Every field is optional.
type Deps struct {
	Fs       afero.Fs            // OS filesystem when nil
	Deleter  fsops.Deleter       // removes through Fs when nil
	Asker    confirm.Asker       // stdin prompter when nil and confirmation is on
	Console  *report.Console     // stdout with default messages when nil
	Progress *report.Reporter    // no bars when nil
	Logger   *zap.Logger         // no logs when nil
	History  *database.HistoryDB // no audit history when nil
}

// Summary describes a finished run
type Summary struct {
	RunID           string
	Root            string
	FilesScanned    int
	DuplicateGroups int
	InvalidFiles    int
	BytesHashed     int64
	Outcomes        []cleanup.Outcome
	Counts          map[cleanup.Status]int
	BytesReclaimed  int64
	Duration        time.Duration
	FreeBefore      int64 // -1 when unknown
	FreeAfter       int64 // -1 when unknown
}

// Run executes one sweep. Root validation failures wrap scan.ErrInvalidPath
// or scan.ErrNotADirectory and happen before anything is read. A read error
// while hashing aborts the run before any deletion. Per-file deletion
// failures are reported in the summary and never returned.
func Run(ctx context.Context, opts Options, deps Deps) (*Summary, error) {
	deps = withDefaults(deps)
	msgs := deps.Console.Messages()
	metrics.Init()

	start := time.Now()
	runID := uuid.NewString()
	logger := deps.Logger.With(zap.String("run_id", runID))

	ctx, span := tracing.Start(ctx, "run",
		attribute.String("run_id", runID),
		attribute.String("root", opts.Root),
		attribute.Bool("recursive", opts.Recursive),
		attribute.Bool("dry_run", opts.DryRun),
	)
	var runErr error
	defer func() { tracing.End(span, runErr) }()

	walker := scan.NewWalker(deps.Fs, logger)
	if runErr = validate(ctx, walker, opts.Root, deps.Console); runErr != nil {
		metrics.ErrorsTotal.Inc()
		return nil, runErr
	}

	sum := &Summary{
		RunID:      runID,
		Root:       opts.Root,
		FreeBefore: freeBytes(opts.Root, "before", logger),
		FreeAfter:  -1,
	}

	deps.Console.Infof(msgs.GettingFiles, opts.Root)
	entries, err := walk(ctx, walker, opts)
	if err != nil {
		runErr = err
		metrics.ErrorsTotal.Inc()
		return nil, runErr
	}
	if len(entries) == 0 && rootIsEmpty(deps.Fs, opts.Root, logger) {
		deps.Console.Info(msgs.DirectoryIsEmpty)
	}
	sum.FilesScanned = len(entries)
	metrics.FilesScannedTotal.Add(float64(len(entries)))

	result, err := classifyEntries(ctx, opts, deps, logger, entries)
	if err != nil {
		runErr = err
		metrics.ErrorsTotal.Inc()
		return nil, runErr
	}
	sum.DuplicateGroups = len(result.Groups)
	sum.InvalidFiles = len(result.Invalid)
	sum.BytesHashed = result.BytesHashed
	metrics.BytesHashedTotal.Add(float64(result.BytesHashed))
	metrics.DuplicateGroupsTotal.Add(float64(len(result.Groups)))
	metrics.InvalidFilesTotal.Add(float64(len(result.Invalid)))

	exec := newExecutor(opts, deps, logger, runID)

	if len(result.Groups) > 0 {
		deps.Console.Info(msgs.RemovingDuplicates)
		outcomes, err := deleteStage(ctx, "delete_duplicates", len(result.Groups), func(ctx context.Context) ([]cleanup.Outcome, error) {
			return exec.DeleteDuplicates(ctx, result.Groups)
		})
		sum.Outcomes = append(sum.Outcomes, outcomes...)
		if err != nil {
			runErr = err
			return nil, runErr
		}
	} else {
		deps.Console.Info(msgs.NoDuplicates)
	}

	if opts.InvalidFiles {
		deps.Console.Info(msgs.RemovingInvalid)
		outcomes, err := deleteStage(ctx, "delete_invalid", len(result.Invalid), func(ctx context.Context) ([]cleanup.Outcome, error) {
			return exec.DeleteInvalid(ctx, result.Invalid)
		})
		sum.Outcomes = append(sum.Outcomes, outcomes...)
		if err != nil {
			runErr = err
			return nil, runErr
		}
	} else if len(result.Invalid) > 0 {
		deps.Console.Info(msgs.InvalidFilesDetected)
		for _, p := range result.InvalidPaths() {
			deps.Console.Info(p)
		}
	}

	sum.Counts = cleanup.Count(sum.Outcomes)
	sum.BytesReclaimed = cleanup.Reclaimed(sum.Outcomes)
	sum.FreeAfter = freeBytes(opts.Root, "after", logger)
	sum.Duration = time.Since(start)

	metrics.RecordRun(sum.Duration)
	if opts.MetricsFile != "" {
		if err := metrics.WriteTextfile(opts.MetricsFile); err != nil {
			logger.Error("Failed to write metrics textfile", zap.String("path", opts.MetricsFile), zap.Error(err))
		}
	}

	sum.Log(logger)
	deps.Console.Info(msgs.OperationCompleted)
	return sum, nil
}

func withDefaults(d Deps) Deps {
	if d.Fs == nil {
		d.Fs = afero.NewOsFs()
	}
	if d.Deleter == nil {
		d.Deleter = fsops.NewFSDeleter(d.Fs)
	}
	if d.Console == nil {
		d.Console = report.NewConsole(os.Stdout, config.DefaultMessages())
	}
	if d.Progress == nil {
		d.Progress = report.Disabled()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// validate checks the root and prints the matching error line
func validate(ctx context.Context, walker *scan.Walker, root string, console *report.Console) error {
	_, span := tracing.Start(ctx, "validate")
	err := walker.ValidateRoot(root)
	tracing.End(span, err)
	if err == nil {
		return nil
	}

	msgs := console.Messages()
	switch {
	case root == "":
		console.Error(msgs.EmptyDirectoryArg)
	case errors.Is(err, scan.ErrNotADirectory):
		console.Errorf(msgs.NotADirectory, root)
	default:
		console.Errorf(msgs.PathNotFound, root)
	}
	return err
}

// rootIsEmpty reports whether root has no children at all. A root holding
// only subdirectories or symlinks yields no files but is not empty.
func rootIsEmpty(fs afero.Fs, root string, logger *zap.Logger) bool {
	children, err := afero.ReadDir(fs, root)
	if err != nil {
		logger.Debug("Cannot list root", zap.String("path", root), zap.Error(err))
		return false
	}
	return len(children) == 0
}

func walk(ctx context.Context, walker *scan.Walker, opts Options) ([]scan.FileEntry, error) {
	ctx, span := tracing.Start(ctx, "walk")
	entries, err := walker.Walk(ctx, opts.Root, opts.Recursive)
	span.SetAttributes(attribute.Int("files", len(entries)))
	tracing.End(span, err)
	return entries, err
}

func classifyEntries(ctx context.Context, opts Options, deps Deps, logger *zap.Logger, entries []scan.FileEntry) (*classify.Result, error) {
	ctx, span := tracing.Start(ctx, "classify",
		attribute.Int("files", len(entries)),
		attribute.Int("workers", opts.Workers),
	)

	copts := []classify.Option{
		classify.WithWorkers(opts.Workers),
		classify.WithProgress(deps.Progress),
		classify.WithLogger(logger),
	}
	if opts.MaxCPUPercent > 0 {
		copts = append(copts, classify.WithThrottler(limiter.NewCPULimiter(opts.MaxCPUPercent)))
	}

	result, err := classify.New(deps.Fs, copts...).Classify(ctx, entries)
	if err == nil {
		span.SetAttributes(
			attribute.Int("duplicate_groups", len(result.Groups)),
			attribute.Int("invalid_files", len(result.Invalid)),
		)
	}
	tracing.End(span, err)
	return result, err
}

func newExecutor(opts Options, deps Deps, logger *zap.Logger, runID string) *cleanup.Executor {
	eopts := cleanup.Options{
		Deleter:   deps.Deleter,
		Validator: safety.NewValidator(opts.Root, opts.ProtectedPaths),
		Console:   deps.Console,
		Progress:  deps.Progress,
		Logger:    logger,
		DryRun:    opts.DryRun,
	}
	if opts.Confirmation {
		eopts.Asker = deps.Asker
		if eopts.Asker == nil {
			eopts.Asker = confirm.NewPrompter(os.Stdin, deps.Console.Writer())
		}
	}
	if deps.History != nil {
		eopts.Recorder = database.NewRunRecorder(deps.History, runID)
	}
	return cleanup.NewExecutor(eopts)
}

func deleteStage(ctx context.Context, name string, n int, fn func(context.Context) ([]cleanup.Outcome, error)) ([]cleanup.Outcome, error) {
	ctx, span := tracing.Start(ctx, name, attribute.Int("items", n))
	outcomes, err := fn(ctx)
	counts := cleanup.Count(outcomes)
	span.SetAttributes(
		attribute.Int("deleted", counts[cleanup.StatusDeleted]),
		attribute.Int("failed", counts[cleanup.StatusFailed]),
	)
	tracing.End(span, err)
	return outcomes, err
}

func freeBytes(root, phase string, logger *zap.Logger) int64 {
	free, err := disk.FreeBytes(root)
	if err != nil {
		logger.Debug("Free space unavailable", zap.String("path", root), zap.Error(err))
		return -1
	}
	metrics.RecordFreeBytes(root, phase, free)
	return free
}

// Log writes the summary as one structured line
func (s *Summary) Log(logger *zap.Logger) {
	logger.Info("Run complete",
		zap.String("root", s.Root),
		zap.Int("files_scanned", s.FilesScanned),
		zap.Int("duplicate_groups", s.DuplicateGroups),
		zap.Int("invalid_files", s.InvalidFiles),
		zap.Int64("bytes_hashed", s.BytesHashed),
		zap.Int("deleted", s.Counts[cleanup.StatusDeleted]),
		zap.Int("skipped", s.Counts[cleanup.StatusSkipped]),
		zap.Int("failed", s.Counts[cleanup.StatusFailed]),
		zap.Int("missing", s.Counts[cleanup.StatusMissing]),
		zap.Int("dry_run", s.Counts[cleanup.StatusDryRun]),
		zap.Int64("bytes_reclaimed", s.BytesReclaimed),
		zap.Int64("free_before", s.FreeBefore),
		zap.Int64("free_after", s.FreeAfter),
		zap.Duration("duration", s.Duration),
	)
}
