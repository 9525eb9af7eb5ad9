package contactsync

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/tonimelisma/contactsync/internal/graph"
)

// ErrBigDeleteTriggered indicates that the planned number of deletions for
// one user exceeds the configured limit. The run drops that user's deletes
// unless forced.
var ErrBigDeleteTriggered = errors.New("contactsync: big-delete protection triggered")

// Policy controls which operations the reconciler may emit.
type Policy struct {
	UpdateExisting bool
	RemoveMissing  bool
	Category       string // managed category tag; only tagged contacts are deleted
	FolderID       string // contact folder for creates; "" = default folder
}

// Plan is the reconciler output for one target user.
type Plan struct {
	Ops       []Operation // creates/updates in desired order, then deletes
	Unchanged int
	NoEmail   int // desired entries skipped for lacking an address
}

// Count returns the number of planned operations of the given kind.
func (p *Plan) Count(kind OpKind) int {
	n := 0

	for _, op := range p.Ops {
		if op.Kind() == kind {
			n++
		}
	}

	return n
}

// WithoutDeletes returns a copy of the plan with every delete removed.
func (p *Plan) WithoutDeletes() *Plan {
	kept := slices.DeleteFunc(slices.Clone(p.Ops), func(op Operation) bool {
		return op.Kind() == OpDelete
	})

	return &Plan{Ops: kept, Unchanged: p.Unchanged, NoEmail: p.NoEmail}
}

// CheckDeleteLimit returns ErrBigDeleteTriggered when the plan deletes more
// than maxDeletes contacts. maxDeletes <= 0 disables the check.
func CheckDeleteLimit(p *Plan, maxDeletes int) error {
	if maxDeletes <= 0 {
		return nil
	}

	if p.Count(OpDelete) > maxDeletes {
		return ErrBigDeleteTriggered
	}

	return nil
}

// Reconciler is a pure decision engine that compares a user's existing
// contacts with the desired directory entries. It performs no I/O.
type Reconciler struct {
	logger *slog.Logger
}

// NewReconciler creates a Reconciler with the given logger.
func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{logger: logger}
}

// Reconcile computes the operations that make target's existing contacts
// match desired under policy.
//
// Existing contacts are joined to directory entries by normalized email.
// Matched contacts are updated when their fingerprint differs (and policy
// allows updates); unmatched entries are created; with RemoveMissing,
// unmatched contacts carrying the managed category are deleted. Entries
// without an address, the target's own entry, and repeated addresses in
// desired are skipped.
func (r *Reconciler) Reconcile(
	existing []graph.ContactRecord,
	desired []graph.DirectoryEntry,
	target TargetUser,
	policy Policy,
) *Plan {
	plan := &Plan{}

	// Step 1: index existing contacts by join key. The first contact with a
	// given address is the match candidate. Claiming removes it from the index.
	byEmail := make(map[string]int, len(existing))

	for i := range existing {
		key := existing[i].EmailKey()
		if key == "" {
			continue
		}

		if _, dup := byEmail[key]; !dup {
			byEmail[key] = i
		}
	}

	// Step 2: walk desired entries in order.
	seen := make(map[string]bool, len(desired))

	for i := range desired {
		entry := &desired[i]

		if target.isSelf(entry) {
			continue
		}

		key := entry.EmailKey()
		if key == "" {
			plan.NoEmail++
			continue
		}

		if seen[key] {
			r.logger.Debug("skipping repeated directory address",
				slog.String("user_id", target.ID),
				slog.String("entry_id", entry.ID),
			)

			continue
		}

		seen[key] = true

		idx, ok := byEmail[key]
		if !ok {
			payload := buildPayload(entry, categoriesFor(policy.Category))
			plan.Ops = append(plan.Ops, NewCreate(target.ID, policy.FolderID, payload))

			continue
		}

		delete(byEmail, key)

		rec := &existing[idx]
		if !policy.UpdateExisting || entryFingerprint(entry) == recordFingerprint(rec) {
			plan.Unchanged++
			continue
		}

		// Keep the contact's own categories so user-assigned labels survive.
		payload := buildPayload(entry, slices.Clone(rec.Categories))
		plan.Ops = append(plan.Ops, NewUpdate(target.ID, rec.ID, payload))
	}

	// Step 3: managed contacts still unclaimed in the index are deleted, in
	// existing order. Contacts without an address and repeated addresses
	// were never indexed and are left alone.
	if policy.RemoveMissing {
		for i := range existing {
			rec := &existing[i]

			idx, indexed := byEmail[rec.EmailKey()]
			if !indexed || idx != i || !rec.HasCategory(policy.Category) {
				continue
			}

			plan.Ops = append(plan.Ops, NewDelete(target.ID, rec))
		}
	}

	r.logger.Debug("reconciled contacts",
		slog.String("user_id", target.ID),
		slog.Int("existing", len(existing)),
		slog.Int("desired", len(desired)),
		slog.Int("creates", plan.Count(OpCreate)),
		slog.Int("updates", plan.Count(OpUpdate)),
		slog.Int("deletes", plan.Count(OpDelete)),
		slog.Int("unchanged", plan.Unchanged),
	)

	return plan
}

func categoriesFor(category string) []string {
	if category == "" {
		return []string{}
	}

	return []string{category}
}
