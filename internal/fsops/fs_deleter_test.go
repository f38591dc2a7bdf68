package fsops

import (
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSDeleterRemovesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/root/a.txt", []byte("a"), 0o644))

	d := NewFSDeleter(fs)
	require.NoError(t, d.Remove("/root/a.txt"))

	exists, err := afero.Exists(fs, "/root/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFSDeleterMissingFile(t *testing.T) {
	d := NewFSDeleter(afero.NewMemMapFs())
	err := d.Remove("/root/nope.txt")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFakeDeleterRecordsAndFails(t *testing.T) {
	boom := errors.New("boom")
	f := &FakeDeleter{Fail: map[string]error{"/b": boom}}

	assert.NoError(t, f.Remove("/a"))
	assert.ErrorIs(t, f.Remove("/b"), boom)
	assert.Equal(t, []string{"rm:/a", "rm:/b"}, f.Calls)
}
