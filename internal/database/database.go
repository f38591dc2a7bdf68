package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dupe-sweep/internal/cleanup"
)

// HistoryDB manages the SQLite audit history of deletion outcomes.
// The pipeline only ever writes to it; nothing read back influences a run.
type HistoryDB struct {
	db *sql.DB
}

// OutcomeRecord represents a single stored outcome
type OutcomeRecord struct {
	ID             int64
	RunID          string
	Timestamp      time.Time
	Status         string
	Kind           string
	Path           string
	FileName       string
	Size           int64
	DeletionReason string
	PrimaryReason  string
	Digest         string
	Original       string
	ErrorMessage   string
}

// NewHistoryDB creates a new database connection and initializes schema
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto makes DATETIME columns scan into time.Time
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// sql.Open is lazy; a query forces the file to be created
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	hdb := &HistoryDB{db: db}
	if err = hdb.initSchema(); err != nil {
		return nil, err
	}
	return hdb, nil
}

func (h *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		status TEXT NOT NULL,
		kind TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT,
		size INTEGER NOT NULL,

		deletion_reason TEXT,
		primary_reason TEXT,
		digest TEXT,
		original TEXT,

		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_run_id ON outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON outcomes(timestamp);
	CREATE INDEX IF NOT EXISTS idx_status ON outcomes(status);
	CREATE INDEX IF NOT EXISTS idx_primary_reason ON outcomes(primary_reason);
	CREATE INDEX IF NOT EXISTS idx_digest ON outcomes(digest);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := h.db.Exec(schema)
	return err
}

// RecordOutcome inserts one outcome under runID
func (h *HistoryDB) RecordOutcome(runID string, o cleanup.Outcome) error {
	var digest, original string
	if d := o.Reason.Duplicate; d != nil {
		digest = d.Digest
		original = d.Original
	}

	var errMsg string
	if o.Err != nil {
		errMsg = o.Err.Error()
	}

	ts := o.At
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
	INSERT INTO outcomes (
		run_id, timestamp, status, kind, path, file_name, size,
		deletion_reason, primary_reason, digest, original, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := h.db.Exec(
		query,
		runID,
		ts,
		string(o.Status),
		string(o.Kind),
		o.Path,
		filepath.Base(o.Path),
		o.Size,
		o.Reason.ToLogString(),
		o.Reason.GetPrimaryReason(),
		digest,
		original,
		errMsg,
	)
	return err
}

// Close closes the database connection
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Vacuum optimizes the database
func (h *HistoryDB) Vacuum() error {
	_, err := h.db.Exec("VACUUM")
	return err
}

// RunRecorder binds a HistoryDB to one run so it can be handed to the
// deletion executor as a cleanup.Recorder
type RunRecorder struct {
	db    *HistoryDB
	runID string
}

// NewRunRecorder creates a recorder writing every outcome under runID
func NewRunRecorder(db *HistoryDB, runID string) *RunRecorder {
	return &RunRecorder{db: db, runID: runID}
}

func (r *RunRecorder) RecordOutcome(o cleanup.Outcome) error {
	return r.db.RecordOutcome(r.runID, o)
}
