//go:build unix

package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupe-sweep/internal/cleanup"
	"dupe-sweep/internal/config"
	"dupe-sweep/internal/pipeline"
	"dupe-sweep/internal/report"
)

type tree struct {
	root       string
	original   string
	copyTop    string
	copyNested string
	kept       string
	outside    string
	fileLink   string
	protected  string
}

// buildTree creates a scan root with duplicates at two depths, a symlink to a
// duplicate outside the root, a directory symlink loop and a protected subtree
func buildTree(t *testing.T) tree {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "root")
	outsideDir := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested", "deeper"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vault"), 0o755))
	require.NoError(t, os.MkdirAll(outsideDir, 0o755))

	tr := tree{
		root:       root,
		original:   filepath.Join(root, "nested", "deeper", "photo.jpg"),
		copyTop:    filepath.Join(root, "photo (1).jpg"),
		copyNested: filepath.Join(root, "nested", "photo-copy.jpg"),
		kept:       filepath.Join(root, "notes.txt"),
		outside:    filepath.Join(outsideDir, "photo.jpg"),
		fileLink:   filepath.Join(root, "link.jpg"),
		protected:  filepath.Join(root, "vault", "photo.jpg"),
	}

	mtime := time.Now().Add(-24 * time.Hour)
	for _, p := range []string{tr.original, tr.copyTop, tr.copyNested, tr.outside} {
		require.NoError(t, os.WriteFile(p, []byte("jpeg bytes"), 0o644))
		require.NoError(t, os.Chtimes(p, mtime, mtime))
		mtime = mtime.Add(time.Minute)
	}
	require.NoError(t, os.WriteFile(tr.kept, []byte("unique"), 0o644))
	require.NoError(t, os.WriteFile(tr.protected, []byte("jpeg bytes"), 0o644))

	require.NoError(t, os.Symlink(tr.outside, tr.fileLink))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "nested", "loop")))
	return tr
}

func TestSweepSafetyIntegration(t *testing.T) {
	t.Run("DryRun_NoFilesystemChanges", func(t *testing.T) {
		tr := buildTree(t)
		var out bytes.Buffer

		sum, err := pipeline.Run(context.Background(),
			pipeline.Options{Root: tr.root, Recursive: true, InvalidFiles: true, DryRun: true},
			pipeline.Deps{Console: report.NewConsole(&out, config.DefaultMessages())},
		)
		require.NoError(t, err)

		for _, p := range []string{tr.original, tr.copyTop, tr.copyNested, tr.outside, tr.protected, tr.fileLink} {
			_, err := os.Lstat(p)
			assert.NoError(t, err, "dry run removed %s", p)
		}
		assert.Zero(t, sum.Counts[cleanup.StatusDeleted])
	})

	t.Run("RealMode_OnlyDuplicatesInsideRoot", func(t *testing.T) {
		tr := buildTree(t)
		var out bytes.Buffer

		sum, err := pipeline.Run(context.Background(),
			pipeline.Options{
				Root:           tr.root,
				Recursive:      true,
				InvalidFiles:   true,
				ProtectedPaths: []string{filepath.Join(tr.root, "vault")},
			},
			pipeline.Deps{Console: report.NewConsole(&out, config.DefaultMessages())},
		)
		require.NoError(t, err)

		// The oldest copy survives even though it sits deepest in the tree.
		assert.FileExists(t, tr.original)
		assert.NoFileExists(t, tr.copyTop)
		assert.NoFileExists(t, tr.copyNested)
		assert.FileExists(t, tr.kept)

		// Symlinks are never followed or removed, and nothing outside the root is touched.
		assert.FileExists(t, tr.outside)
		_, err = os.Lstat(tr.fileLink)
		assert.NoError(t, err)
		_, err = os.Lstat(filepath.Join(tr.root, "nested", "loop"))
		assert.NoError(t, err)

		// The protected copy is refused, reported as failed, and left alone.
		assert.FileExists(t, tr.protected)
		assert.Equal(t, 2, sum.Counts[cleanup.StatusDeleted])
		assert.Equal(t, 1, sum.Counts[cleanup.StatusFailed])
		assert.Contains(t, out.String(), "ERROR: Failed to remove "+tr.protected)
	})

	t.Run("Rerun_FindsNothing", func(t *testing.T) {
		tr := buildTree(t)
		opts := pipeline.Options{Root: tr.root, Recursive: true, InvalidFiles: true}

		_, err := pipeline.Run(context.Background(), opts, pipeline.Deps{Console: report.NewConsole(&bytes.Buffer{}, config.DefaultMessages())})
		require.NoError(t, err)

		var out bytes.Buffer
		sum, err := pipeline.Run(context.Background(), opts, pipeline.Deps{Console: report.NewConsole(&out, config.DefaultMessages())})
		require.NoError(t, err)
		assert.Zero(t, sum.DuplicateGroups)
		assert.Zero(t, sum.InvalidFiles)
		assert.Contains(t, out.String(), "No Duplicate Files Found")
	})
}
