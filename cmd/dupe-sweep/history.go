package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dupe-sweep/internal/database"
	"dupe-sweep/internal/exitcodes"
)

type historyFlags struct {
	dbPath      string
	recent      int
	stats       bool
	days        int
	status      string
	runID       string
	pathPattern string
	pruneDays   int
	jsonOutput  bool
}

func newHistoryCmd() *cobra.Command {
	f := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the deletion history database",
		Example: `  dupe-sweep history --db history.db --recent 10     # 10 most recent outcomes
  dupe-sweep history --db history.db --stats          # statistics for the last 30 days
  dupe-sweep history --db history.db --status failed  # every failed deletion
  dupe-sweep history --db history.db --path '/srv/%'  # outcomes under /srv
  dupe-sweep history --db history.db --prune-days 90  # drop outcomes older than 90 days`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd.OutOrStdout(), f, cmd.UsageString())
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.dbPath, "db", "", "path to the history database")
	fl.IntVar(&f.recent, "recent", 0, "show the N most recent outcomes")
	fl.BoolVar(&f.stats, "stats", false, "show statistics")
	fl.IntVar(&f.days, "days", 30, "number of days covered by --stats")
	fl.StringVar(&f.status, "status", "", "filter by status (deleted, skipped, failed, missing, dry-run)")
	fl.StringVar(&f.runID, "run", "", "show every outcome of one run")
	fl.StringVar(&f.pathPattern, "path", "", "filter by path pattern (SQL LIKE syntax)")
	fl.IntVar(&f.pruneDays, "prune-days", 0, "delete outcomes older than N days and compact the database")
	fl.BoolVar(&f.jsonOutput, "json", false, "output JSON")
	return cmd
}

func runHistory(out io.Writer, f *historyFlags, usage string) error {
	if f.dbPath == "" {
		return withCode(exitcodes.InvalidUsage, errors.New(`required flag(s) "db" not set`))
	}

	db, err := database.NewHistoryDB(f.dbPath)
	if err != nil {
		return withCode(exitcodes.RuntimeError, fmt.Errorf("failed to open database %s: %w", f.dbPath, err))
	}
	defer db.Close()

	var records []database.OutcomeRecord
	switch {
	case f.pruneDays > 0:
		return pruneHistory(out, db, f.pruneDays)
	case f.stats:
		stats, err := db.GetHistoryStats(f.days)
		if err != nil {
			return withCode(exitcodes.RuntimeError, fmt.Errorf("failed to get statistics: %w", err))
		}
		if f.jsonOutput {
			return writeJSON(out, stats)
		}
		printStats(out, stats, f.days)
		return nil
	case f.recent > 0:
		records, err = db.GetRecentOutcomes(f.recent)
	case f.status != "":
		records, err = db.GetOutcomesByStatus(f.status)
	case f.runID != "":
		records, err = db.GetOutcomesByRun(f.runID)
	case f.pathPattern != "":
		records, err = db.GetOutcomesByPath(f.pathPattern)
	default:
		return withCode(exitcodes.InvalidUsage, errors.New("one of --recent, --stats, --status, --run, --path or --prune-days is required\n\n"+usage))
	}
	if err != nil {
		return withCode(exitcodes.RuntimeError, fmt.Errorf("failed to query history: %w", err))
	}

	if f.jsonOutput {
		return writeJSON(out, records)
	}
	printRecords(out, records)
	return nil
}

func pruneHistory(out io.Writer, db *database.HistoryDB, days int) error {
	n, err := db.DeleteOldRecords(days)
	if err != nil {
		return withCode(exitcodes.RuntimeError, fmt.Errorf("failed to prune history: %w", err))
	}
	if err := db.Vacuum(); err != nil {
		return withCode(exitcodes.RuntimeError, fmt.Errorf("failed to compact database: %w", err))
	}
	fmt.Fprintf(out, "Pruned %d record(s) older than %d days\n", n, days)
	return nil
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return withCode(exitcodes.RuntimeError, err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func printStats(out io.Writer, stats *database.HistoryStats, days int) {
	fmt.Fprintf(out, "History Statistics (Last %d days)\n", days)
	fmt.Fprintf(out, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(out, "Runs:             %d\n", stats.TotalRuns)
	fmt.Fprintf(out, "Outcomes:         %d\n", stats.TotalOutcomes)
	fmt.Fprintf(out, "Space Freed:      %s\n", formatBytes(stats.TotalSpaceFreed))

	printCounts(out, "By Status:", stats.ByStatus)
	printCounts(out, "By Reason:", stats.ByReason)
}

func printCounts(out io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(out, "\n%s\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-15s %d\n", k, counts[k])
	}
}

func printRecords(out io.Writer, records []database.OutcomeRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tStatus\tReason\tSize\tPath")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t------\t----\t----")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Status, r.PrimaryReason, formatBytes(r.Size), r.Path)
	}
	_ = w.Flush()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
