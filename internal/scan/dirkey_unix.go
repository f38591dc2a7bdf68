//go:build unix

package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// dirKey identifies a directory by device and inode so a bind mount or
// hard-linked directory reached twice is only walked once
func dirKey(path string, info os.FileInfo) string {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return fmt.Sprintf("%d:%d", st.Dev, st.Ino)
	}
	return filepath.Clean(path)
}
