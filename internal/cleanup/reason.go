package cleanup

import (
	"fmt"
	"strings"
	"time"
)

// Reason captures why a file was selected for deletion.
// Both reasons can apply at once: an empty file that is also a newer copy of
// another empty file.
type Reason struct {
	Duplicate *DuplicateReason
	Invalid   *InvalidReason

	EvaluatedAt time.Time
}

// DuplicateReason indicates the file has the same content as an older file
type DuplicateReason struct {
	Original  string // retained file
	Digest    string // hex MD5 of the shared content
	GroupSize int    // number of files sharing the digest
}

// InvalidReason indicates the file is zero bytes long
type InvalidReason struct {
	Size int64
}

// HasReason returns true if any deletion reason applies.
func (r Reason) HasReason() bool {
	return r.Duplicate != nil || r.Invalid != nil
}

// ToLogString formats the reason for structured logging.
// Example: "duplicate: of=/data/a.txt md5=49f68a5c8493ec2c0bf489821c21fc3b group=3 + invalid: size=0"
func (r Reason) ToLogString() string {
	if !r.HasReason() {
		return "unknown"
	}

	var parts []string
	if r.Duplicate != nil {
		parts = append(parts, fmt.Sprintf(
			"duplicate: of=%s md5=%s group=%d",
			r.Duplicate.Original,
			r.Duplicate.Digest,
			r.Duplicate.GroupSize,
		))
	}
	if r.Invalid != nil {
		parts = append(parts, fmt.Sprintf("invalid: size=%d", r.Invalid.Size))
	}
	return strings.Join(parts, " + ")
}

// ToHumanReadable formats the reason for terminal display.
func (r Reason) ToHumanReadable() string {
	switch {
	case r.Duplicate != nil && r.Invalid != nil:
		return fmt.Sprintf("Empty file, duplicate of %s", r.Duplicate.Original)
	case r.Duplicate != nil:
		return fmt.Sprintf("Duplicate of %s", r.Duplicate.Original)
	case r.Invalid != nil:
		return "Empty file"
	default:
		return "Unknown reason"
	}
}

// GetPrimaryReason returns a short label used for grouping in history queries.
func (r Reason) GetPrimaryReason() string {
	switch {
	case r.Duplicate != nil && r.Invalid != nil:
		return "combined"
	case r.Duplicate != nil:
		return "duplicate"
	case r.Invalid != nil:
		return "invalid"
	default:
		return "unknown"
	}
}
