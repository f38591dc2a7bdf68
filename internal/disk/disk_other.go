//go:build !(linux || darwin || freebsd)

package disk

import "errors"

// ErrUnsupported is returned on platforms without statfs
var ErrUnsupported = errors.New("disk usage not supported on this platform")

func GetDiskUsage(path string) (usedPercent float64, freeBytes int64, totalBytes int64, err error) {
	return 0, 0, 0, ErrUnsupported
}
