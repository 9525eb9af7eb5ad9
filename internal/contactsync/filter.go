package contactsync

import (
	"log/slog"

	"github.com/tonimelisma/contactsync/internal/graph"
)

// SourceFilter selects which directory entries become desired contacts.
type SourceFilter struct {
	IncludeExternal bool     // keep guest, #EXT# and cloud-only accounts
	RequireLicense  bool     // drop accounts without an assigned license
	SyncedOnly      bool     // require on-premises sync even with IncludeExternal
	Exclude         []string // addresses never turned into contacts
}

// FilterStats counts what each filter stage removed from a snapshot.
type FilterStats struct {
	Total      int
	Disabled   int
	Unlicensed int
	External   int
	NotSynced  int
	Excluded   int
	Kept       int
}

// FilterDirectory applies the source filter to a complete directory
// snapshot. It runs after the snapshot is fully loaded so the total is known
// before anything is dropped. Disabled accounts are always removed. Unless
// external accounts are included, only members synced from on-premises AD
// are kept.
func FilterDirectory(entries []graph.DirectoryEntry, f SourceFilter, logger *slog.Logger) ([]graph.DirectoryEntry, FilterStats) {
	stats := FilterStats{Total: len(entries)}

	excluded := make(map[string]bool, len(f.Exclude))
	for _, addr := range f.Exclude {
		if key := graph.NormalizeEmail(addr); key != "" {
			excluded[key] = true
		}
	}

	kept := make([]graph.DirectoryEntry, 0, len(entries))

	for i := range entries {
		e := &entries[i]

		switch {
		case !e.AccountEnabled:
			stats.Disabled++
		case f.RequireLicense && !e.Licensed:
			stats.Unlicensed++
		case !f.IncludeExternal && e.IsExternal():
			stats.External++
		case (!f.IncludeExternal || f.SyncedOnly) && !e.DirectorySynced:
			stats.NotSynced++
		case excluded[e.EmailKey()] || excluded[graph.NormalizeEmail(e.UserPrincipalName)]:
			stats.Excluded++
		default:
			kept = append(kept, *e)
		}
	}

	stats.Kept = len(kept)

	logger.Info("filtered directory snapshot",
		slog.Int("total", stats.Total),
		slog.Int("disabled", stats.Disabled),
		slog.Int("unlicensed", stats.Unlicensed),
		slog.Int("external", stats.External),
		slog.Int("not_synced", stats.NotSynced),
		slog.Int("excluded", stats.Excluded),
		slog.Int("kept", stats.Kept),
	)

	return kept, stats
}
