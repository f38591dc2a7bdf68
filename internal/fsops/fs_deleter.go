package fsops

import "github.com/spf13/afero"

// FSDeleter removes files through an afero filesystem so the executor can run
// against the real disk or an in-memory tree with the same code path
type FSDeleter struct {
	Fs afero.Fs
}

// NewFSDeleter returns a deleter bound to fs, defaulting to the OS filesystem
func NewFSDeleter(fs afero.Fs) *FSDeleter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FSDeleter{Fs: fs}
}

func (d *FSDeleter) Remove(path string) error {
	return d.Fs.Remove(path)
}
