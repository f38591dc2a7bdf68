package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	// Registry holds every dupe-sweep metric. A dedicated registry keeps the
	// textfile output free of Go runtime collectors.
	Registry = prometheus.NewRegistry()

	// FilesScannedTotal counts regular files enumerated by the walker
	FilesScannedTotal prometheus.Counter

	// BytesHashedTotal counts bytes read while computing content digests
	BytesHashedTotal prometheus.Counter

	// DuplicateGroupsTotal counts duplicate groups found
	DuplicateGroupsTotal prometheus.Counter

	// InvalidFilesTotal counts zero-byte files found
	InvalidFilesTotal prometheus.Counter

	// DeletionsTotal counts deletion outcomes by kind (duplicate, invalid) and status
	DeletionsTotal *prometheus.CounterVec

	// BytesReclaimedTotal counts bytes of files actually removed
	BytesReclaimedTotal prometheus.Counter

	// ErrorsTotal counts run-level errors (aborted scans, unreadable files)
	ErrorsTotal prometheus.Counter

	// RunDuration tracks how long a full run takes
	RunDuration prometheus.Histogram

	// LastRunTimestamp records the Unix time of the last completed run
	LastRunTimestamp prometheus.Gauge

	// FilesystemFreeBytes tracks free space on the scanned filesystem before and after deletion
	FilesystemFreeBytes *prometheus.GaugeVec
)

// Init creates and registers all metrics.
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		FilesScannedTotal = NewCounter(
			"dupesweep_files_scanned_total",
			"Total number of regular files enumerated.",
		)
		BytesHashedTotal = NewBytesCounter(
			"dupesweep_bytes_hashed_total",
			"Total bytes read to compute content digests.",
		)
		DuplicateGroupsTotal = NewCounter(
			"dupesweep_duplicate_groups_total",
			"Total number of duplicate groups found.",
		)
		InvalidFilesTotal = NewCounter(
			"dupesweep_invalid_files_total",
			"Total number of zero-byte files found.",
		)
		DeletionsTotal = NewCounterVec(
			"dupesweep_deletions_total",
			"Deletion outcomes by file kind and status.",
			[]string{"kind", "status"},
		)
		BytesReclaimedTotal = NewBytesCounter(
			"dupesweep_bytes_reclaimed_total",
			"Total bytes of files removed.",
		)
		ErrorsTotal = NewCounter(
			"dupesweep_errors_total",
			"Total number of run-level errors.",
		)
		RunDuration = NewDurationHistogram(
			"dupesweep_run_duration_seconds",
			"Duration of complete runs in seconds.",
		)
		LastRunTimestamp = NewGauge(
			"dupesweep_last_run_timestamp",
			"Timestamp of the last completed run (Unix epoch seconds).",
		)
		FilesystemFreeBytes = NewSizeGaugeVec(
			"dupesweep_filesystem_free_bytes",
			"Free bytes on the filesystem holding the scan root.",
			[]string{"path", "phase"},
		)

		Registry.MustRegister(
			FilesScannedTotal,
			BytesHashedTotal,
			DuplicateGroupsTotal,
			InvalidFilesTotal,
			DeletionsTotal,
			BytesReclaimedTotal,
			ErrorsTotal,
			RunDuration,
			LastRunTimestamp,
			FilesystemFreeBytes,
		)
	})
}

// RecordDeletion counts one deletion outcome
func RecordDeletion(kind, status string, bytes int64) {
	DeletionsTotal.WithLabelValues(kind, status).Inc()
	if status == "deleted" {
		BytesReclaimedTotal.Add(float64(bytes))
	}
}

// RecordRun observes a finished run
func RecordRun(elapsed time.Duration) {
	RunDuration.Observe(elapsed.Seconds())
	LastRunTimestamp.Set(float64(time.Now().Unix()))
}

// RecordFreeBytes sets the free-space gauge for a path and phase ("before" or "after")
func RecordFreeBytes(path, phase string, free int64) {
	FilesystemFreeBytes.WithLabelValues(path, phase).Set(float64(free))
}

// WriteTextfile writes every metric in the Prometheus text format to path,
// atomically, for the node_exporter textfile collector
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
