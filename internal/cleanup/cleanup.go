package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"go.uber.org/zap"

	"dupe-sweep/internal/classify"
	"dupe-sweep/internal/config"
	"dupe-sweep/internal/confirm"
	"dupe-sweep/internal/fsops"
	"dupe-sweep/internal/metrics"
	"dupe-sweep/internal/report"
	"dupe-sweep/internal/safety"
	"dupe-sweep/internal/scan"
)

// ErrDeletion wraps every failure to remove a single file
var ErrDeletion = errors.New("deletion failed")

// Kind says which classification put a file up for deletion
type Kind string

const (
	KindDuplicate Kind = "duplicate"
	KindInvalid   Kind = "invalid"
)

// Status is the per-file result of a deletion attempt
type Status string

const (
	StatusDeleted Status = "deleted"
	StatusSkipped Status = "skipped" // declined at the confirmation prompt
	StatusFailed  Status = "failed"
	StatusMissing Status = "missing" // already gone, not counted as a failure
	StatusDryRun  Status = "dry-run"
)

// Outcome is the result for one deletion candidate
type Outcome struct {
	Path   string
	Kind   Kind
	Status Status
	Size   int64
	Reason Reason
	Err    error
	At     time.Time
}

// Recorder persists outcomes; database.RunRecorder satisfies it
type Recorder interface {
	RecordOutcome(Outcome) error
}

// Options configures an Executor
type Options struct {
	Deleter   fsops.Deleter     // required
	Validator *safety.Validator // nil disables target checks
	Asker     confirm.Asker     // non-nil enables prompt mode
	Console   *report.Console   // nil discards status lines
	Progress  *report.Reporter  // nil draws nothing
	Logger    *zap.Logger       // nil discards logs
	Recorder  Recorder          // nil keeps no history
	DryRun    bool
}

// Executor removes deletion candidates one at a time on the calling goroutine
type Executor struct {
	deleter   fsops.Deleter
	validator *safety.Validator
	asker     confirm.Asker
	console   *report.Console
	progress  *report.Reporter
	logger    *zap.Logger
	recorder  Recorder
	dryRun    bool

	// removed tracks paths deleted earlier in this run, so an empty file
	// removed as a duplicate is reported missing when the invalid pass reaches it.
	removed map[string]bool
}

// NewExecutor creates an Executor
func NewExecutor(opts Options) *Executor {
	metrics.Init()

	e := &Executor{
		deleter:   opts.Deleter,
		validator: opts.Validator,
		asker:     opts.Asker,
		console:   opts.Console,
		progress:  opts.Progress,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		dryRun:    opts.DryRun,
		removed:   make(map[string]bool),
	}
	if e.console == nil {
		e.console = report.NewConsole(io.Discard, config.DefaultMessages())
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// DeleteDuplicates removes every member of every group except the first.
// Failures are isolated per file; only context cancellation stops the batch.
func (e *Executor) DeleteDuplicates(ctx context.Context, groups []classify.Group) ([]Outcome, error) {
	e.logger.Info("Starting duplicate removal", zap.Int("groups", len(groups)))

	var outcomes []Outcome
	for _, g := range report.Track(e.progress, groups, "Deleting Duplicate Files:", "Complete") {
		original := g.Original()
		for _, cand := range g.Candidates() {
			if err := ctx.Err(); err != nil {
				return outcomes, err
			}
			reason := Reason{
				Duplicate: &DuplicateReason{
					Original:  original.Path,
					Digest:    g.Digest,
					GroupSize: len(g.Files),
				},
				EvaluatedAt: time.Now(),
			}
			if cand.IsInvalid() {
				reason.Invalid = &InvalidReason{Size: cand.Size}
			}
			outcomes = append(outcomes, e.process(cand, KindDuplicate, reason))
		}
	}

	e.logSummary("Duplicate removal complete", outcomes)
	return outcomes, nil
}

// DeleteInvalid removes zero-byte files under the same prompt policy as duplicates
func (e *Executor) DeleteInvalid(ctx context.Context, entries []scan.FileEntry) ([]Outcome, error) {
	e.logger.Info("Starting invalid file removal", zap.Int("files", len(entries)))

	var outcomes []Outcome
	for _, entry := range report.Track(e.progress, entries, "Deleting Invalid Files:", "Complete") {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		reason := Reason{
			Invalid:     &InvalidReason{Size: entry.Size},
			EvaluatedAt: time.Now(),
		}
		outcomes = append(outcomes, e.process(entry, KindInvalid, reason))
	}

	e.logSummary("Invalid file removal complete", outcomes)
	return outcomes, nil
}

func (e *Executor) process(entry scan.FileEntry, kind Kind, reason Reason) Outcome {
	msgs := e.console.Messages()
	o := Outcome{Path: entry.Path, Kind: kind, Size: entry.Size, Reason: reason}

	var unsafe error
	if e.validator != nil {
		unsafe = e.validator.Check(entry.Path)
	}

	switch {
	case e.removed[entry.Path]:
		o.Status = StatusMissing
		e.console.Infof(msgs.AlreadyRemoved, entry.Path)

	case unsafe != nil:
		o.Status = StatusFailed
		o.Err = fmt.Errorf("%w: %s: %w", ErrDeletion, entry.Path, unsafe)
		e.console.Errorf(msgs.RemoveFailed+" (%s): %v", entry.Path, reason.ToHumanReadable(), unsafe)

	case e.dryRun:
		o.Status = StatusDryRun
		e.console.Infof(msgs.WouldRemove+" (%s)", entry.Path, reason.ToHumanReadable())

	case e.asker != nil && !e.confirmed(entry.Path):
		o.Status = StatusSkipped
		e.console.Infof(msgs.CancelledByUser, entry.Path)

	default:
		e.remove(&o)
	}

	o.At = time.Now()
	e.finish(o)
	return o
}

func (e *Executor) confirmed(path string) bool {
	question := fmt.Sprintf(e.console.Messages().DeleteConfirmation, e.console.Path(path))
	ok, err := e.asker.Confirm(question)
	if err != nil {
		// A closed or broken input never counts as consent.
		e.logger.Warn("Confirmation unavailable, keeping file", zap.String("path", path), zap.Error(err))
		return false
	}
	return ok
}

func (e *Executor) remove(o *Outcome) {
	msgs := e.console.Messages()
	err := e.deleter.Remove(o.Path)
	switch {
	case err == nil:
		o.Status = StatusDeleted
		e.removed[o.Path] = true
		e.console.Infof(msgs.SuccessfullyRemoved, o.Path)
	case errors.Is(err, fs.ErrNotExist):
		o.Status = StatusMissing
		e.console.Infof(msgs.AlreadyRemoved, o.Path)
	default:
		o.Status = StatusFailed
		o.Err = fmt.Errorf("%w: %s: %v", ErrDeletion, o.Path, err)
		e.console.Errorf(msgs.RemoveFailed+" (%s): %v", o.Path, o.Reason.ToHumanReadable(), err)
	}
}

// finish logs, counts and records an outcome
func (e *Executor) finish(o Outcome) {
	fields := []zap.Field{
		zap.String("path", o.Path),
		zap.String("kind", string(o.Kind)),
		zap.String("status", string(o.Status)),
		zap.Int64("size", o.Size),
		zap.String("deletion_reason", o.Reason.ToLogString()),
	}
	if o.Err != nil {
		e.logger.Error("Failed to delete", append(fields, zap.Error(o.Err))...)
	} else {
		e.logger.Info("Deletion outcome", fields...)
	}

	metrics.RecordDeletion(string(o.Kind), string(o.Status), o.Size)

	if e.recorder != nil {
		if err := e.recorder.RecordOutcome(o); err != nil {
			// History is an audit trail; losing a row never stops the batch.
			e.logger.Error("Failed to record outcome", zap.String("path", o.Path), zap.Error(err))
		}
	}
}

func (e *Executor) logSummary(msg string, outcomes []Outcome) {
	counts := Count(outcomes)
	e.logger.Info(msg,
		zap.Int("deleted", counts[StatusDeleted]),
		zap.Int("skipped", counts[StatusSkipped]),
		zap.Int("failed", counts[StatusFailed]),
		zap.Int("missing", counts[StatusMissing]),
		zap.Int("dry_run", counts[StatusDryRun]),
	)
}

// Count tallies outcomes by status
func Count(outcomes []Outcome) map[Status]int {
	counts := make(map[Status]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return counts
}

// Reclaimed sums the sizes of deleted files
func Reclaimed(outcomes []Outcome) int64 {
	var total int64
	for _, o := range outcomes {
		if o.Status == StatusDeleted {
			total += o.Size
		}
	}
	return total
}
