// Package classify groups scanned files by content digest and flags
// zero-byte files as invalid.
package classify

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"dupe-sweep/internal/report"
	"dupe-sweep/internal/scan"
)

// ErrRead is returned when a file cannot be read for hashing
var ErrRead = errors.New("read error")

// Throttler is called after every digest; limiter.CPULimiter satisfies it
type Throttler interface {
	Throttle()
}

// Group is a set of files with identical content, oldest first.
// Files[0] is the retained original.
type Group struct {
	Digest string
	Files  []scan.FileEntry
}

// Original returns the file that is kept
func (g Group) Original() scan.FileEntry {
	return g.Files[0]
}

// Candidates returns the files that may be deleted, in order
func (g Group) Candidates() []scan.FileEntry {
	return g.Files[1:]
}

// Paths returns every member path in order
func (g Group) Paths() []string {
	out := make([]string, len(g.Files))
	for i, f := range g.Files {
		out[i] = f.Path
	}
	return out
}

// Result is the output of a classification pass
type Result struct {
	Invalid     []scan.FileEntry
	Groups      []Group
	BytesHashed int64
}

// InvalidPaths returns the zero-byte file paths in order
func (r *Result) InvalidPaths() []string {
	out := make([]string, len(r.Invalid))
	for i, e := range r.Invalid {
		out[i] = e.Path
	}
	return out
}

// GroupPaths returns the duplicate groups as path lists
func (r *Result) GroupPaths() [][]string {
	out := make([][]string, len(r.Groups))
	for i, g := range r.Groups {
		out[i] = g.Paths()
	}
	return out
}

// Classifier computes digests and builds groups
type Classifier struct {
	fs        afero.Fs
	logger    *zap.Logger
	progress  *report.Reporter
	throttler Throttler
	workers   int
}

// Option configures a Classifier
type Option func(*Classifier)

// WithWorkers hashes up to n files at once; n <= 1 keeps hashing sequential
func WithWorkers(n int) Option {
	return func(c *Classifier) {
		if n > 1 {
			c.workers = n
		}
	}
}

// WithThrottler installs a throttle called after each digest
func WithThrottler(t Throttler) Option {
	return func(c *Classifier) { c.throttler = t }
}

// WithProgress draws progress bars for each pass
func WithProgress(r *report.Reporter) Option {
	return func(c *Classifier) { c.progress = r }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Classifier over fs (the OS filesystem when nil)
func New(fsys afero.Fs, opts ...Option) *Classifier {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	c := &Classifier{
		fs:       fsys,
		logger:   zap.NewNop(),
		progress: report.Disabled(),
		workers:  1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify sorts entries by modification time, flags zero-byte files and
// groups files by MD5 digest. Any read error aborts the whole pass.
// The input slice is not modified.
func (c *Classifier) Classify(ctx context.Context, entries []scan.FileEntry) (*Result, error) {
	sorted := make([]scan.FileEntry, len(entries))
	copy(sorted, entries)
	// Stable so files with equal mtimes keep walk order.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ModTime.Before(sorted[j].ModTime)
	})

	result := &Result{}
	for _, e := range report.Track(c.progress, sorted, "Identifying Invalid Files:", "Complete") {
		if e.IsInvalid() {
			result.Invalid = append(result.Invalid, e)
		}
	}

	digests, err := c.digestAll(ctx, sorted)
	if err != nil {
		return nil, err
	}

	// Groups appear in the order of their oldest member.
	byDigest := make(map[string]int)
	var all []Group
	for i, e := range sorted {
		d := digests[i]
		idx, ok := byDigest[d]
		if !ok {
			idx = len(all)
			byDigest[d] = idx
			all = append(all, Group{Digest: d})
		}
		all[idx].Files = append(all[idx].Files, e)
		result.BytesHashed += e.Size
	}

	for _, g := range report.Track(c.progress, all, "Filtering Duplicate Files:", "Complete") {
		if len(g.Files) > 1 {
			result.Groups = append(result.Groups, g)
		}
	}

	c.logger.Info("Classification complete",
		zap.Int("files", len(sorted)),
		zap.Int("duplicate_groups", len(result.Groups)),
		zap.Int("invalid_files", len(result.Invalid)),
		zap.Int64("bytes_hashed", result.BytesHashed),
	)
	return result, nil
}

// digestAll returns one hex digest per entry, index-aligned with entries
func (c *Classifier) digestAll(ctx context.Context, entries []scan.FileEntry) ([]string, error) {
	digests := make([]string, len(entries))
	if c.workers <= 1 || len(entries) < 2 {
		for i, e := range report.Track(c.progress, entries, "Getting File Hashes:", "Complete") {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			d, err := c.digest(e.Path)
			if err != nil {
				return nil, err
			}
			digests[i] = d
		}
		return digests, nil
	}
	return digests, c.digestParallel(ctx, entries, digests)
}

// digestParallel fans hashing out to a bounded pool. The progress bar is fed
// from the calling goroutine in completion order; digests are stored by
// index so grouping is identical to the sequential pass. On failure the
// error with the lowest index among the files already hashed is returned.
func (c *Classifier) digestParallel(ctx context.Context, entries []scan.FileEntry, digests []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type done struct {
		idx int
		err error
	}

	jobs := make(chan int)
	results := make(chan done)
	var wg sync.WaitGroup

	workers := c.workers
	if workers > len(entries) {
		workers = len(entries)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				d, err := c.digest(entries[idx].Path)
				if err == nil {
					digests[idx] = d
				}
				select {
				case results <- done{idx: idx, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range entries {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	firstErrIdx := -1
	var firstErr error
	bar := c.progress.Start(len(entries), "Getting File Hashes:", "Complete")
	defer bar.Finish()

	for r := range results {
		bar.Increment()
		if r.err != nil && (firstErrIdx < 0 || r.idx < firstErrIdx) {
			firstErrIdx, firstErr = r.idx, r.err
			cancel()
		}
	}

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (c *Classifier) digest(path string) (string, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}
	if c.throttler != nil {
		c.throttler.Throttle()
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
