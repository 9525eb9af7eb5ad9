package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys of each config section.
var knownKeys = map[string][]string{
	"auth":    {"tenant_id", "client_id", "client_secret", "credentials_file"},
	"source":  {"group", "include_external", "require_license", "synced_only", "exclude"},
	"target":  {"group", "user"},
	"sync":    {"update_existing", "remove_missing", "use_batch", "batch_size", "category", "contact_folder", "cooldown", "pacing_delay", "max_deletes", "dry_run"},
	"cleanup": {"preserve_category", "remove_category", "dedupe_by_name", "folder_name"},
	"logging": {"log_level", "log_format"},
	"network": {"base_url", "request_timeout", "user_agent", "max_retries"},
}

// knownSections is the sorted section list for Levenshtein matching.
// Sorted for deterministic suggestions when two candidates have the same
// edit distance.
var knownSections = func() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key. Keys below
// an unknown section are reported once, at the section.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	reported := make(map[string]bool)

	for _, key := range undecoded {
		if len(key) == 0 {
			continue
		}

		section := key[0]

		fields, ok := knownKeys[section]
		if !ok {
			if !reported[section] {
				reported[section] = true
				errs = append(errs, unknownError(
					fmt.Sprintf("unknown config section or key %q", section), section, knownSections))
			}

			continue
		}

		if len(key) < 2 {
			continue
		}

		errs = append(errs, unknownError(
			fmt.Sprintf("unknown config key %q in [%s]", key[1], section), key[1], fields))
	}

	return errors.Join(errs...)
}

func unknownError(msg, name string, known []string) error {
	if suggestion := closestMatch(name, known); suggestion != "" {
		return fmt.Errorf("%s: did you mean %q?", msg, suggestion)
	}

	return errors.New(msg)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization avoids allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
