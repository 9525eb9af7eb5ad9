package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tonimelisma/contactsync/internal/contactsync"
)

// statusf prints a status message to stderr unless --quiet is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// summaryOutput is the JSON schema for run summaries (--json).
type summaryOutput struct {
	RunID          string  `json:"run_id"`
	Users          int     `json:"users"`
	SkippedUsers   int     `json:"skipped_users"`
	UserErrors     int     `json:"user_errors"`
	Created        int     `json:"created"`
	Updated        int     `json:"updated"`
	Deleted        int     `json:"deleted"`
	Unchanged      int     `json:"unchanged"`
	Failed         int     `json:"failed"`
	Skipped        int     `json:"skipped"`
	FoldersDeleted int     `json:"folders_deleted,omitempty"`
	FolderContacts int     `json:"folder_contacts,omitempty"`
	Errors         int     `json:"errors"`
	DurationSec    float64 `json:"duration_seconds"`
	DryRun         bool    `json:"dry_run"`
}

func toSummaryOutput(s *contactsync.Summary, dryRun bool) summaryOutput {
	return summaryOutput{
		RunID:          s.RunID,
		Users:          s.Users,
		SkippedUsers:   s.SkippedUsers,
		UserErrors:     s.UserErrors,
		Created:        s.Created,
		Updated:        s.Updated,
		Deleted:        s.Deleted,
		Unchanged:      s.Unchanged,
		Failed:         s.Failed,
		Skipped:        s.Skipped,
		FoldersDeleted: s.FoldersDeleted,
		FolderContacts: s.FolderContacts,
		Errors:         s.Errors(),
		DurationSec:    s.Duration.Seconds(),
		DryRun:         dryRun,
	}
}

// printSummary writes the end-of-run tally as JSON or as an aligned table.
func printSummary(w io.Writer, title string, s *contactsync.Summary, dryRun, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(toSummaryOutput(s, dryRun))
	}

	heading := title
	if dryRun {
		heading += " (dry run)"
	}

	fmt.Fprintf(w, "%s %s in %s\n", heading, s.RunID, formatDuration(s.Duration))

	rows := [][]string{
		{"users", strconv.Itoa(s.Users)},
		{"skipped users", strconv.Itoa(s.SkippedUsers)},
		{"created", strconv.Itoa(s.Created)},
		{"updated", strconv.Itoa(s.Updated)},
		{"deleted", strconv.Itoa(s.Deleted)},
		{"unchanged", strconv.Itoa(s.Unchanged)},
		{"skipped", strconv.Itoa(s.Skipped)},
	}

	if s.FoldersDeleted > 0 || s.FolderContacts > 0 {
		rows = append(rows,
			[]string{"folders deleted", strconv.Itoa(s.FoldersDeleted)},
			[]string{"folder contacts", strconv.Itoa(s.FolderContacts)},
		)
	}

	rows = append(rows, []string{"errors", strconv.Itoa(s.Errors())})

	printTable(w, []string{"RESULT", "COUNT"}, rows)

	return nil
}

// formatDuration rounds a run duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}

	return d.Round(100 * time.Millisecond).String()
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	// Compute column widths.
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}
