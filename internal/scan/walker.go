package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrNotADirectory = errors.New("not a directory")
)

// FileEntry is a metadata snapshot taken once when the file is enumerated
type FileEntry struct {
	Path    string
	Size    int64
	ModTime time.Time
	Mode    fs.FileMode
}

// IsInvalid reports whether the entry is a zero-byte file
func (e FileEntry) IsInvalid() bool {
	return e.Size == 0
}

// Walker enumerates regular files below a root directory
type Walker struct {
	fs     afero.Fs
	logger *zap.Logger
}

// NewWalker creates a Walker over fs (the OS filesystem when nil)
func NewWalker(fsys afero.Fs, logger *zap.Logger) *Walker {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{fs: fsys, logger: logger}
}

// ValidateRoot checks that root names an existing directory.
// Existence is checked before kind so a missing path is never reported as a file.
func (w *Walker) ValidateRoot(root string) error {
	if root == "" {
		return fmt.Errorf("%w: empty directory argument", ErrInvalidPath)
	}
	info, err := w.fs.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s: not found", ErrInvalidPath, root)
		}
		return fmt.Errorf("%w: %s: %v", ErrInvalidPath, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, root)
	}
	return nil
}

// pending is one directory whose children are being consumed
type pending struct {
	children []os.FileInfo
	dir      string
	next     int
}

// Walk returns every regular file directly under root and, when recursive
// is set, under its subdirectories. Output order matches a depth-first
// recursive traversal with children visited by name.
func (w *Walker) Walk(ctx context.Context, root string, recursive bool) ([]FileEntry, error) {
	if err := w.ValidateRoot(root); err != nil {
		return nil, err
	}

	rootInfo, err := w.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	children, err := afero.ReadDir(w.fs, root)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", root, err)
	}

	visited := map[string]bool{dirKey(root, rootInfo): true}
	stack := []*pending{{dir: root, children: children}}
	entries := make([]FileEntry, 0, len(children))

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		if top.next >= len(top.children) {
			stack = stack[:len(stack)-1]
			continue
		}
		info := top.children[top.next]
		top.next++
		path := filepath.Join(top.dir, info.Name())

		switch {
		case info.Mode().IsRegular():
			entries = append(entries, FileEntry{
				Path:    path,
				Size:    info.Size(),
				ModTime: info.ModTime(),
				Mode:    info.Mode(),
			})
		case info.IsDir():
			if !recursive {
				continue
			}
			key := dirKey(path, info)
			if visited[key] {
				w.logger.Warn("Directory already visited, skipping", zap.String("path", path))
				continue
			}
			visited[key] = true

			sub, err := afero.ReadDir(w.fs, path)
			if err != nil {
				w.logger.Warn("Cannot read directory, skipping", zap.String("path", path), zap.Error(err))
				continue
			}
			stack = append(stack, &pending{dir: path, children: sub})
		default:
			w.logger.Debug("Skipping non-regular file",
				zap.String("path", path),
				zap.String("mode", info.Mode().String()),
			)
		}
	}

	w.logger.Info("Walk complete",
		zap.String("root", root),
		zap.Bool("recursive", recursive),
		zap.Int("files", len(entries)),
	)
	return entries, nil
}
