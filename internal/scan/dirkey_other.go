//go:build !unix

package scan

import (
	"os"
	"path/filepath"
)

func dirKey(path string, _ os.FileInfo) string {
	return filepath.Clean(path)
}
