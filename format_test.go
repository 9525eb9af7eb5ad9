package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/contactsync/internal/contactsync"
)

func testSummary() *contactsync.Summary {
	return &contactsync.Summary{
		RunID:        "run-1",
		Users:        3,
		SkippedUsers: 1,
		UserErrors:   1,
		Result: contactsync.Result{
			Created:   4,
			Updated:   2,
			Deleted:   1,
			Unchanged: 10,
			Failed:    2,
		},
		Duration: 1500 * time.Millisecond,
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	headers := []string{"RESULT", "COUNT"}
	rows := [][]string{
		{"created", "4"},
		{"skipped users", "12"},
	}

	printTable(&buf, headers, rows)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	// Second column starts at the same offset on every line.
	col := strings.Index(lines[0], "COUNT")
	assert.Equal(t, col, strings.Index(lines[1], "4"))
	assert.Equal(t, col, strings.Index(lines[2], "12"))
}

func TestPrintSummary_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, "sync", testSummary(), false, false))

	out := buf.String()
	assert.Contains(t, out, "sync run-1 in 1.5s")
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "errors")
	assert.Contains(t, out, "3") // errors = user errors + failed ops
	assert.NotContains(t, out, "folders deleted")
}

func TestPrintSummary_DryRunAndFolders(t *testing.T) {
	s := testSummary()
	s.FoldersDeleted = 2
	s.FolderContacts = 40

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, "delete-folder", s, true, false))

	assert.Contains(t, buf.String(), "delete-folder (dry run)")
	assert.Contains(t, buf.String(), "folders deleted")
	assert.Contains(t, buf.String(), "40")
}

func TestPrintSummary_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, "sync", testSummary(), true, true))

	var out summaryOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, 4, out.Created)
	assert.Equal(t, 3, out.Errors)
	assert.InDelta(t, 1.5, out.DurationSec, 0.001)
	assert.True(t, out.DryRun)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "2.3s", formatDuration(2345*time.Millisecond))
}
