package contactsync

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tonimelisma/contactsync/internal/graph"
)

// CleanupPolicy controls duplicate and stale-category detection.
type CleanupPolicy struct {
	PreserveCategory string // preferred survivor in a duplicate group
	RemoveCategory   string // contacts carrying it are always deleted
	// GroupByName also treats contacts sharing a display name as duplicates.
	// Distinct people can share a name, so this is configurable.
	GroupByName bool
}

// PlanCleanup returns the contacts to delete from existing, without
// duplicates, in the order they were first marked:
//  1. every contact carrying RemoveCategory;
//  2. within each display-name group (when GroupByName) all but one survivor;
//  3. within each primary-email group of still-unmarked contacts, all but one
//     survivor.
func PlanCleanup(existing []graph.ContactRecord, policy CleanupPolicy) []graph.ContactRecord {
	marked := make([]bool, len(existing))
	order := make([]int, 0)

	mark := func(i int) {
		if !marked[i] {
			marked[i] = true
			order = append(order, i)
		}
	}

	for i := range existing {
		if existing[i].HasCategory(policy.RemoveCategory) {
			mark(i)
		}
	}

	if policy.GroupByName {
		// A Caser keeps state between calls, so each plan gets its own.
		lower := cases.Lower(language.Und)

		for _, group := range groupBy(existing, nil, func(c *graph.ContactRecord) string {
			return lower.String(strings.TrimSpace(c.DisplayName))
		}) {
			markAllButSurvivor(existing, group, policy, mark)
		}
	}

	for _, group := range groupBy(existing, marked, (*graph.ContactRecord).EmailKey) {
		markAllButSurvivor(existing, group, policy, mark)
	}

	out := make([]graph.ContactRecord, 0, len(order))
	for _, i := range order {
		out = append(out, existing[i])
	}

	return out
}

// groupBy buckets contact indexes by key in first-appearance order, skipping
// empty keys and indexes already excluded. Only groups with more than one
// member are returned.
func groupBy(contacts []graph.ContactRecord, excluded []bool, key func(*graph.ContactRecord) string) [][]int {
	var keys []string

	buckets := make(map[string][]int)

	for i := range contacts {
		if excluded != nil && excluded[i] {
			continue
		}

		k := key(&contacts[i])
		if k == "" {
			continue
		}

		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}

		buckets[k] = append(buckets[k], i)
	}

	groups := make([][]int, 0, len(keys))

	for _, k := range keys {
		if len(buckets[k]) > 1 {
			groups = append(groups, buckets[k])
		}
	}

	return groups
}

// markAllButSurvivor marks every member of group except the chosen survivor.
func markAllButSurvivor(contacts []graph.ContactRecord, group []int, policy CleanupPolicy, mark func(int)) {
	survivor := chooseSurvivor(contacts, group, policy)

	for _, i := range group {
		if i != survivor {
			mark(i)
		}
	}
}

// chooseSurvivor prefers a contact that carries PreserveCategory and not
// RemoveCategory, then the first contact of the group.
func chooseSurvivor(contacts []graph.ContactRecord, group []int, policy CleanupPolicy) int {
	for _, i := range group {
		c := &contacts[i]
		if c.HasCategory(policy.PreserveCategory) && !c.HasCategory(policy.RemoveCategory) {
			return i
		}
	}

	return group[0]
}

// FindFolder locates a contact folder by exact display name.
func FindFolder(folders []graph.ContactFolder, name string) (graph.ContactFolder, bool) {
	for _, f := range folders {
		if f.DisplayName == name {
			return f, true
		}
	}

	return graph.ContactFolder{}, false
}
