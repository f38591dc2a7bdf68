package cleanup

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupe-sweep/internal/classify"
	"dupe-sweep/internal/config"
	"dupe-sweep/internal/confirm"
	"dupe-sweep/internal/fsops"
	"dupe-sweep/internal/report"
	"dupe-sweep/internal/safety"
	"dupe-sweep/internal/scan"
)

// scriptedAsker answers prompts from a fixed list, then fails with ErrNoInput
type scriptedAsker struct {
	answers   []bool
	questions []string
}

func (s *scriptedAsker) Confirm(question string) (bool, error) {
	s.questions = append(s.questions, question)
	if len(s.answers) == 0 {
		return false, confirm.ErrNoInput
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

type memRecorder struct {
	rows []Outcome
	err  error
}

func (m *memRecorder) RecordOutcome(o Outcome) error {
	m.rows = append(m.rows, o)
	return m.err
}

func entry(path string, size int64) scan.FileEntry {
	return scan.FileEntry{Path: path, Size: size, ModTime: time.Unix(0, 0)}
}

func group(digest string, paths ...string) classify.Group {
	g := classify.Group{Digest: digest}
	for _, p := range paths {
		g.Files = append(g.Files, entry(p, 3))
	}
	return g
}

func newConsole(buf *bytes.Buffer) *report.Console {
	return report.NewConsole(buf, config.DefaultMessages())
}

func statuses(outcomes []Outcome) []Status {
	out := make([]Status, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Status
	}
	return out
}

func TestDeleteDuplicatesKeepsOriginal(t *testing.T) {
	fake := &fsops.FakeDeleter{}
	var out bytes.Buffer
	e := NewExecutor(Options{Deleter: fake, Console: newConsole(&out)})

	outcomes, err := e.DeleteDuplicates(context.Background(), []classify.Group{
		group("aaa", "/data/a1", "/data/a2", "/data/a3"),
		group("bbb", "/data/b1", "/data/b2"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"rm:/data/a2", "rm:/data/a3", "rm:/data/b2"}, fake.Calls)
	assert.Equal(t, []Status{StatusDeleted, StatusDeleted, StatusDeleted}, statuses(outcomes))
	assert.Contains(t, out.String(), "Successfully removed: /data/a2")
	assert.NotContains(t, out.String(), "/data/a1")

	require.NotNil(t, outcomes[0].Reason.Duplicate)
	assert.Equal(t, "/data/a1", outcomes[0].Reason.Duplicate.Original)
	assert.Equal(t, 3, outcomes[0].Reason.Duplicate.GroupSize)
	assert.Equal(t, KindDuplicate, outcomes[0].Kind)
}

func TestDryRunNeverDeletes(t *testing.T) {
	fake := &fsops.FakeDeleter{}
	asker := &scriptedAsker{}
	var out bytes.Buffer
	e := NewExecutor(Options{Deleter: fake, Asker: asker, Console: newConsole(&out), DryRun: true})

	dups, err := e.DeleteDuplicates(context.Background(), []classify.Group{group("aaa", "/data/a1", "/data/a2")})
	require.NoError(t, err)
	inv, err := e.DeleteInvalid(context.Background(), []scan.FileEntry{entry("/data/empty", 0)})
	require.NoError(t, err)

	assert.Empty(t, fake.Calls, "dry run must not touch the filesystem")
	assert.Empty(t, asker.questions, "dry run must not prompt")
	assert.Equal(t, []Status{StatusDryRun}, statuses(dups))
	assert.Equal(t, []Status{StatusDryRun}, statuses(inv))
	assert.Contains(t, out.String(), "[DRY RUN] Would remove: /data/a2 (Duplicate of /data/a1)\n")
	assert.Contains(t, out.String(), "[DRY RUN] Would remove: /data/empty (Empty file)\n")
}

func TestFailureIsIsolatedPerFile(t *testing.T) {
	fake := &fsops.FakeDeleter{Fail: map[string]error{"/data/a2": fs.ErrPermission}}
	var out bytes.Buffer
	e := NewExecutor(Options{Deleter: fake, Console: newConsole(&out)})

	outcomes, err := e.DeleteDuplicates(context.Background(), []classify.Group{
		group("aaa", "/data/a1", "/data/a2", "/data/a3"),
	})
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusFailed, StatusDeleted}, statuses(outcomes))
	assert.ErrorIs(t, outcomes[0].Err, ErrDeletion)
	assert.Contains(t, out.String(), "ERROR: Failed to remove /data/a2 (Duplicate of /data/a1): permission denied")
	assert.Contains(t, out.String(), "Successfully removed: /data/a3")
}

func TestAlreadyRemovedIsMissing(t *testing.T) {
	fake := &fsops.FakeDeleter{Fail: map[string]error{"/data/gone": fs.ErrNotExist}}
	var out bytes.Buffer
	e := NewExecutor(Options{Deleter: fake, Console: newConsole(&out)})

	outcomes, err := e.DeleteInvalid(context.Background(), []scan.FileEntry{entry("/data/gone", 0)})
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusMissing}, statuses(outcomes))
	assert.NoError(t, outcomes[0].Err)
	assert.Contains(t, out.String(), "Already removed: /data/gone")
}

func TestEmptyDuplicateNotDeletedTwice(t *testing.T) {
	fake := &fsops.FakeDeleter{}
	e := NewExecutor(Options{Deleter: fake})

	g := classify.Group{Digest: "d41d8cd98f00b204e9800998ecf8427e", Files: []scan.FileEntry{
		entry("/data/e1", 0), entry("/data/e2", 0),
	}}
	dups, err := e.DeleteDuplicates(context.Background(), []classify.Group{g})
	require.NoError(t, err)
	require.Equal(t, []Status{StatusDeleted}, statuses(dups))
	require.NotNil(t, dups[0].Reason.Invalid)
	assert.Equal(t, "combined", dups[0].Reason.GetPrimaryReason())

	inv, err := e.DeleteInvalid(context.Background(), []scan.FileEntry{entry("/data/e1", 0), entry("/data/e2", 0)})
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusDeleted, StatusMissing}, statuses(inv))
	assert.Equal(t, []string{"rm:/data/e2", "rm:/data/e1"}, fake.Calls)
}

func TestPromptDeclineSkips(t *testing.T) {
	fake := &fsops.FakeDeleter{}
	asker := &scriptedAsker{answers: []bool{false, true}}
	var out bytes.Buffer
	e := NewExecutor(Options{Deleter: fake, Asker: asker, Console: newConsole(&out)})

	outcomes, err := e.DeleteDuplicates(context.Background(), []classify.Group{
		group("aaa", "/data/a1", "/data/a2", "/data/a3"),
	})
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusSkipped, StatusDeleted}, statuses(outcomes))
	assert.Equal(t, []string{"rm:/data/a3"}, fake.Calls)
	require.Len(t, asker.questions, 2)
	assert.True(t, strings.HasPrefix(asker.questions[0], "Are you sure you want to delete "))
	assert.Contains(t, asker.questions[0], "/data/a2")
	assert.Contains(t, out.String(), "File deletion cancelled by user: /data/a2")
}

func TestPromptEndOfInputKeepsFiles(t *testing.T) {
	fake := &fsops.FakeDeleter{}
	e := NewExecutor(Options{Deleter: fake, Asker: &scriptedAsker{}})

	outcomes, err := e.DeleteInvalid(context.Background(), []scan.FileEntry{
		entry("/data/e1", 0), entry("/data/e2", 0),
	})
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusSkipped, StatusSkipped}, statuses(outcomes))
	assert.Empty(t, fake.Calls)
}

func TestPromptWithRealPrompter(t *testing.T) {
	fake := &fsops.FakeDeleter{}
	var out bytes.Buffer
	prompter := confirm.NewPrompter(strings.NewReader("maybe\ny\nn\n"), &out)
	e := NewExecutor(Options{Deleter: fake, Asker: prompter, Console: newConsole(&out)})

	outcomes, err := e.DeleteInvalid(context.Background(), []scan.FileEntry{
		entry("/data/e1", 0), entry("/data/e2", 0),
	})
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusDeleted, StatusSkipped}, statuses(outcomes))
	assert.Equal(t, 3, strings.Count(out.String(), "Are you sure you want to delete"))
}

func TestValidatorBlocksUnsafeTargets(t *testing.T) {
	fake := &fsops.FakeDeleter{}
	e := NewExecutor(Options{Deleter: fake, Validator: safety.NewValidator("/data", nil)})

	outcomes, err := e.DeleteInvalid(context.Background(), []scan.FileEntry{
		entry("/elsewhere/x", 0),
		entry("/data/../etc/passwd", 0),
		entry("/data/ok", 0),
	})
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusFailed, StatusFailed, StatusDeleted}, statuses(outcomes))
	assert.ErrorIs(t, outcomes[0].Err, safety.ErrOutsideRoot)
	assert.ErrorIs(t, outcomes[1].Err, safety.ErrTraversal)
	assert.Equal(t, []string{"rm:/data/ok"}, fake.Calls)
}

func TestCancelStopsBatch(t *testing.T) {
	fake := &fsops.FakeDeleter{}
	e := NewExecutor(Options{Deleter: fake})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.DeleteInvalid(ctx, []scan.FileEntry{entry("/data/e1", 0)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.Calls)
}

func TestRecorderFailureDoesNotStopBatch(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	e := NewExecutor(Options{Deleter: &fsops.FakeDeleter{}, Recorder: rec})

	outcomes, err := e.DeleteInvalid(context.Background(), []scan.FileEntry{
		entry("/data/e1", 0), entry("/data/e2", 0),
	})
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)
	assert.Len(t, rec.rows, 2)
	assert.False(t, rec.rows[0].At.IsZero())
}

func TestDeletesRealFiles(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("abc"), 0o644))

	e := NewExecutor(Options{
		Deleter:   fsops.NewFSDeleter(afero.NewOsFs()),
		Validator: safety.NewValidator(root, nil),
	})
	outcomes, err := e.DeleteDuplicates(context.Background(), []classify.Group{group("x", a, b)})
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusDeleted}, statuses(outcomes))

	assert.FileExists(t, a)
	assert.NoFileExists(t, b)

	// A second executor sees the file already gone.
	again, err := NewExecutor(Options{Deleter: fsops.NewFSDeleter(nil)}).
		DeleteDuplicates(context.Background(), []classify.Group{group("x", a, b)})
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusMissing}, statuses(again))
}

func TestCountAndReclaimed(t *testing.T) {
	outcomes := []Outcome{
		{Status: StatusDeleted, Size: 10},
		{Status: StatusDeleted, Size: 5},
		{Status: StatusFailed, Size: 100},
		{Status: StatusDryRun, Size: 7},
	}
	c := Count(outcomes)
	assert.Equal(t, 2, c[StatusDeleted])
	assert.Equal(t, 1, c[StatusFailed])
	assert.Equal(t, 0, c[StatusSkipped])
	assert.Equal(t, int64(15), Reclaimed(outcomes))
}
