package database

import (
	"database/sql"
	"time"
)

const selectColumns = `
	SELECT id, run_id, timestamp, status, kind, path, file_name, size,
	       deletion_reason, primary_reason, digest, original, error_message
	FROM outcomes
`

// GetRecentOutcomes returns the N most recent outcomes
func (h *HistoryDB) GetRecentOutcomes(limit int) ([]OutcomeRecord, error) {
	return h.queryOutcomes(selectColumns+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetOutcomesByStatus returns outcomes with the given status, newest first
func (h *HistoryDB) GetOutcomesByStatus(status string) ([]OutcomeRecord, error) {
	return h.queryOutcomes(selectColumns+`
	WHERE status = ?
	ORDER BY timestamp DESC, id DESC
	`, status)
}

// GetOutcomesByRun returns every outcome of one run in insertion order
func (h *HistoryDB) GetOutcomesByRun(runID string) ([]OutcomeRecord, error) {
	return h.queryOutcomes(selectColumns+`
	WHERE run_id = ?
	ORDER BY id ASC
	`, runID)
}

// GetOutcomesByPath returns outcomes matching a LIKE pattern
func (h *HistoryDB) GetOutcomesByPath(pathPattern string) ([]OutcomeRecord, error) {
	return h.queryOutcomes(selectColumns+`
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	`, pathPattern)
}

// GetTotalSpaceFreed returns total bytes of deleted files in a time range
func (h *HistoryDB) GetTotalSpaceFreed(start, end time.Time) (int64, error) {
	var total int64
	err := h.db.QueryRow(`
	SELECT COALESCE(SUM(size), 0)
	FROM outcomes
	WHERE status = 'deleted' AND timestamp BETWEEN ? AND ?
	`, start, end).Scan(&total)
	return total, err
}

// HistoryStats holds aggregated statistics
type HistoryStats struct {
	TotalRuns       int
	TotalOutcomes   int
	ByStatus        map[string]int
	ByReason        map[string]int
	TotalSpaceFreed int64
	StartDate       time.Time
	EndDate         time.Time
}

// GetHistoryStats aggregates the last days of history
func (h *HistoryDB) GetHistoryStats(days int) (*HistoryStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &HistoryStats{StartDate: since, EndDate: now}

	err := h.db.QueryRow(`
		SELECT COUNT(DISTINCT run_id), COUNT(*)
		FROM outcomes
		WHERE timestamp >= ?
	`, since).Scan(&stats.TotalRuns, &stats.TotalOutcomes)
	if err != nil {
		return nil, err
	}

	if stats.ByStatus, err = h.countBy("status", since); err != nil {
		return nil, err
	}
	if stats.ByReason, err = h.countBy("primary_reason", since); err != nil {
		return nil, err
	}
	if stats.TotalSpaceFreed, err = h.GetTotalSpaceFreed(since, now); err != nil {
		return nil, err
	}
	return stats, nil
}

// countBy groups outcomes since a time by a fixed column name
func (h *HistoryDB) countBy(column string, since time.Time) (map[string]int, error) {
	rows, err := h.db.Query(`
	SELECT `+column+`, COUNT(*)
	FROM outcomes
	WHERE timestamp >= ?
	GROUP BY `+column, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key sql.NullString
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key.String] += count
	}
	return counts, rows.Err()
}

// DeleteOldRecords removes records older than the given number of days
func (h *HistoryDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := h.db.Exec(`DELETE FROM outcomes WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (h *HistoryDB) queryOutcomes(query string, args ...interface{}) ([]OutcomeRecord, error) {
	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []OutcomeRecord
	for rows.Next() {
		var r OutcomeRecord
		var fileName, reason, primary, digest, original, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.Status, &r.Kind, &r.Path, &fileName,
			&r.Size, &reason, &primary, &digest, &original, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		r.FileName = fileName.String
		r.DeletionReason = reason.String
		r.PrimaryReason = primary.String
		r.Digest = digest.String
		r.Original = original.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}
	return records, rows.Err()
}
