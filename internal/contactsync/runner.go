package contactsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/contactsync/internal/graph"
)

// DefaultCooldown is the pause between users after a throttled user.
const DefaultCooldown = 5 * time.Second

// ErrFolderNotFound is returned by DeleteFolder when no target has the folder.
var ErrFolderNotFound = errors.New("contactsync: contact folder not found")

// Directory is the subset of graph.Client the run loop reads from and
// manages folders through. Contact mutations go through the Sender.
type Directory interface {
	ListUsers(ctx context.Context) ([]graph.DirectoryEntry, error)
	ListGroupMembers(ctx context.Context, groupID string) ([]graph.DirectoryEntry, error)
	GetUser(ctx context.Context, idOrUPN string) (*graph.DirectoryEntry, error)
	ListContacts(ctx context.Context, userID, folderID string) ([]graph.ContactRecord, error)
	ListContactFolders(ctx context.Context, userID string) ([]graph.ContactFolder, error)
	CreateContactFolder(ctx context.Context, userID, name string) (*graph.ContactFolder, error)
	DeleteContactFolder(ctx context.Context, userID, folderID string) error
}

// Client is everything the runner needs from the Graph API.
type Client interface {
	Directory
	Sender
}

// RunOptions configures one run.
type RunOptions struct {
	SourceGroup string // "" = every user in the tenant
	TargetGroup string // "" = same set as the source
	TargetUser  string // id or UPN; overrides TargetGroup

	Filter SourceFilter

	UpdateExisting bool
	RemoveMissing  bool
	Category       string
	ContactFolder  string // folder display name; "" = default contacts folder

	MaxDeletes int
	Force      bool

	BatchSize   int
	PacingDelay time.Duration
	Cooldown    time.Duration
	DryRun      bool

	Cleanup CleanupPolicy
}

// Runner orchestrates a run: it loads the desired and target snapshots,
// then processes each target user sequentially.
type Runner struct {
	client    Client
	session   *graph.Session
	opts      RunOptions
	logger    *slog.Logger
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a Runner. The session must be the one backing client.
func NewRunner(client Client, session *graph.Session, opts RunOptions, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Category == "" {
		opts.Category = DefaultCategory
	}

	return &Runner{
		client:    client,
		session:   session,
		opts:      opts,
		logger:    logger,
		sleepFunc: sleepCtx,
	}
}

// Sync reconciles every target user's contacts with the filtered source
// directory. Setup failures (token, desired set, target set) are returned;
// per-user failures are logged and counted in the summary.
func (r *Runner) Sync(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	logger := r.logger.With(slog.String("run_id", summary.RunID))

	desired, targets, err := r.setup(ctx)
	if err != nil {
		return nil, err
	}

	desired, _ = FilterDirectory(desired, r.opts.Filter, logger)

	logger.Info("starting sync",
		slog.Int("desired", len(desired)),
		slog.Int("targets", len(targets)),
		slog.Bool("dry_run", r.opts.DryRun),
	)

	reconciler := NewReconciler(logger)
	executor := r.newExecutor(logger)

	runErr := r.forEachTarget(ctx, logger, targets, summary, func(ctx context.Context, target TargetUser) (Result, error) {
		return r.syncUser(ctx, logger, reconciler, executor, target, desired)
	})

	summary.Duration = time.Since(start)

	logger.Info("sync complete",
		slog.Int("users", summary.Users),
		slog.Int("created", summary.Created),
		slog.Int("updated", summary.Updated),
		slog.Int("deleted", summary.Deleted),
		slog.Int("unchanged", summary.Unchanged),
		slog.Int("errors", summary.Errors()),
		slog.Duration("duration", summary.Duration),
	)

	if runErr != nil {
		return summary, runErr
	}

	return summary, ctx.Err()
}

// Cleanup removes duplicate and stale-category contacts from every target
// user's contact folder.
func (r *Runner) Cleanup(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	logger := r.logger.With(slog.String("run_id", summary.RunID))

	targets, err := r.setupTargets(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("starting cleanup", slog.Int("targets", len(targets)), slog.Bool("dry_run", r.opts.DryRun))

	executor := r.newExecutor(logger)

	runErr := r.forEachTarget(ctx, logger, targets, summary, func(ctx context.Context, target TargetUser) (Result, error) {
		return r.cleanupUser(ctx, logger, executor, target)
	})

	summary.Duration = time.Since(start)

	logger.Info("cleanup complete",
		slog.Int("users", summary.Users),
		slog.Int("deleted", summary.Deleted),
		slog.Int("errors", summary.Errors()),
		slog.Duration("duration", summary.Duration),
	)

	if runErr != nil {
		return summary, runErr
	}

	return summary, ctx.Err()
}

// DeleteFolder removes the named contact folder, and every contact inside
// it, from each target user's mailbox. Contacts are counted for the report
// but not deleted individually. ErrFolderNotFound is returned when no
// target had the folder.
func (r *Runner) DeleteFolder(ctx context.Context, name string) (*Summary, error) {
	if name == "" {
		return nil, errors.New("contactsync: folder name is required")
	}

	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	logger := r.logger.With(slog.String("run_id", summary.RunID), slog.String("folder", name))

	targets, err := r.setupTargets(ctx)
	if err != nil {
		return nil, err
	}

	found := 0

	runErr := r.forEachTarget(ctx, logger, targets, summary, func(ctx context.Context, target TargetUser) (Result, error) {
		ok, contacts, err := r.deleteUserFolder(ctx, logger, target, name)
		if ok {
			found++
			summary.FolderContacts += contacts

			if !r.opts.DryRun {
				summary.FoldersDeleted++
			}
		}

		return Result{}, err
	})

	summary.Duration = time.Since(start)

	logger.Info("folder deletion complete",
		slog.Int("users", summary.Users),
		slog.Int("folders_deleted", summary.FoldersDeleted),
		slog.Int("contacts", summary.FolderContacts),
		slog.Int("errors", summary.Errors()),
	)

	if runErr != nil {
		return summary, runErr
	}

	if found == 0 && summary.UserErrors == 0 && ctx.Err() == nil {
		return summary, fmt.Errorf("%w: %q", ErrFolderNotFound, name)
	}

	return summary, ctx.Err()
}

// forEachTarget runs fn for each target sequentially. Disabled and
// mailbox-less targets are skipped. A user's error is logged and counted
// and the loop continues, unless it is a token acquisition failure: that
// ends the run and is returned. After a user that hit throttling the loop
// pauses for the cooldown.
func (r *Runner) forEachTarget(
	ctx context.Context,
	logger *slog.Logger,
	targets []TargetUser,
	summary *Summary,
	fn func(context.Context, TargetUser) (Result, error),
) error {
	for i, target := range targets {
		if ctx.Err() != nil {
			logger.Warn("run canceled", slog.Int("remaining", len(targets)-i))
			return nil
		}

		if !target.Enabled || target.Mail == "" {
			logger.Debug("skipping target", slog.String("user", target.PrincipalName),
				slog.Bool("enabled", target.Enabled))

			summary.SkippedUsers++

			continue
		}

		r.session.ResetThrottled()

		res, err := fn(ctx, target)
		summary.Users++
		summary.Add(res)

		if err != nil {
			summary.UserErrors++

			if errors.Is(err, graph.ErrTokenAcquisition) {
				logger.Error("token acquisition failed, aborting run",
					slog.String("user", target.PrincipalName),
					slog.Int("remaining", len(targets)-i-1),
					slog.String("error", err.Error()),
				)

				return fmt.Errorf("processing %s: %w", target.PrincipalName, err)
			}

			logger.Error("user failed",
				slog.String("user", target.PrincipalName),
				slog.String("error", err.Error()),
			)
		}

		if r.session.Throttled() && i < len(targets)-1 {
			logger.Info("throttled, cooling down",
				slog.String("user", target.PrincipalName),
				slog.Duration("cooldown", r.opts.Cooldown),
			)

			if err := r.sleepFunc(ctx, r.opts.Cooldown); err != nil {
				return nil
			}
		}
	}

	return nil
}

func (r *Runner) syncUser(
	ctx context.Context,
	logger *slog.Logger,
	reconciler *Reconciler,
	executor *Executor,
	target TargetUser,
	desired []graph.DirectoryEntry,
) (Result, error) {
	folderID, found, err := r.resolveFolder(ctx, target, true)
	if err != nil {
		return Result{}, err
	}

	var existing []graph.ContactRecord

	// A folder that a dry run did not create has no contacts yet.
	if found {
		existing, err = r.client.ListContacts(ctx, target.ID, folderID)
		if err != nil {
			return Result{}, fmt.Errorf("listing contacts for %s: %w", target.PrincipalName, err)
		}
	}

	plan := reconciler.Reconcile(existing, desired, target, Policy{
		UpdateExisting: r.opts.UpdateExisting,
		RemoveMissing:  r.opts.RemoveMissing,
		Category:       r.opts.Category,
		FolderID:       folderID,
	})

	var res Result

	if err := CheckDeleteLimit(plan, r.opts.MaxDeletes); err != nil {
		deletes := plan.Count(OpDelete)

		if !r.opts.Force {
			logger.Warn("too many deletions planned, skipping deletes for user (use --force to override)",
				slog.String("user", target.PrincipalName),
				slog.Int("deletes", deletes),
				slog.Int("max_deletes", r.opts.MaxDeletes),
			)

			plan = plan.WithoutDeletes()
			res.Skipped += deletes
		} else {
			logger.Warn("big-delete protection overridden by --force",
				slog.String("user", target.PrincipalName),
				slog.Int("deletes", deletes),
			)
		}
	}

	res.Unchanged = plan.Unchanged

	results := executor.ExecuteAll(ctx, plan.Ops)
	for i := range results {
		res.record(&results[i])
	}

	logger.Info("user synced",
		slog.String("user", target.PrincipalName),
		slog.Int("existing", len(existing)),
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("deleted", res.Deleted),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("failed", res.Failed),
	)

	return res, tokenFailure(results)
}

func (r *Runner) cleanupUser(ctx context.Context, logger *slog.Logger, executor *Executor, target TargetUser) (Result, error) {
	folderID, _, err := r.resolveFolder(ctx, target, false)
	if err != nil {
		return Result{}, err
	}

	existing, err := r.client.ListContacts(ctx, target.ID, folderID)
	if err != nil {
		return Result{}, fmt.Errorf("listing contacts for %s: %w", target.PrincipalName, err)
	}

	doomed := PlanCleanup(existing, r.opts.Cleanup)

	ops := make([]Operation, 0, len(doomed))
	for i := range doomed {
		ops = append(ops, NewDelete(target.ID, &doomed[i]))
	}

	var res Result

	if err := CheckDeleteLimit(&Plan{Ops: ops}, r.opts.MaxDeletes); err != nil && !r.opts.Force {
		logger.Warn("too many cleanup deletions planned, skipping user (use --force to override)",
			slog.String("user", target.PrincipalName),
			slog.Int("deletes", len(ops)),
			slog.Int("max_deletes", r.opts.MaxDeletes),
		)

		res.Skipped = len(ops)

		return res, nil
	}

	results := executor.ExecuteAll(ctx, ops)
	for i := range results {
		res.record(&results[i])
	}

	res.Unchanged = len(existing) - len(doomed)

	logger.Info("user cleaned up",
		slog.String("user", target.PrincipalName),
		slog.Int("existing", len(existing)),
		slog.Int("deleted", res.Deleted),
		slog.Int("failed", res.Failed),
	)

	return res, tokenFailure(results)
}

// tokenFailure returns the first token acquisition error among results.
func tokenFailure(results []OperationResult) error {
	for i := range results {
		if errors.Is(results[i].Err, graph.ErrTokenAcquisition) {
			return results[i].Err
		}
	}

	return nil
}

func (r *Runner) deleteUserFolder(ctx context.Context, logger *slog.Logger, target TargetUser, name string) (bool, int, error) {
	folders, err := r.client.ListContactFolders(ctx, target.ID)
	if err != nil {
		return false, 0, fmt.Errorf("listing contact folders for %s: %w", target.PrincipalName, err)
	}

	folder, ok := FindFolder(folders, name)
	if !ok {
		logger.Debug("folder not present", slog.String("user", target.PrincipalName))
		return false, 0, nil
	}

	contacts, err := r.client.ListContacts(ctx, target.ID, folder.ID)
	if err != nil {
		return false, 0, fmt.Errorf("counting contacts in folder for %s: %w", target.PrincipalName, err)
	}

	if r.opts.DryRun {
		logger.Info("dry run: would delete folder",
			slog.String("user", target.PrincipalName),
			slog.Int("contacts", len(contacts)),
		)

		return true, len(contacts), nil
	}

	if err := r.client.DeleteContactFolder(ctx, target.ID, folder.ID); err != nil {
		return false, 0, fmt.Errorf("deleting folder for %s: %w", target.PrincipalName, err)
	}

	logger.Info("deleted folder",
		slog.String("user", target.PrincipalName),
		slog.Int("contacts", len(contacts)),
	)

	return true, len(contacts), nil
}

// resolveFolder returns the id of the configured contact folder for target,
// or "" for the default folder. With create set, a missing folder is
// created; in dry run it is not, and found reports false so the caller
// plans against an empty folder.
func (r *Runner) resolveFolder(ctx context.Context, target TargetUser, create bool) (id string, found bool, err error) {
	if r.opts.ContactFolder == "" {
		return "", true, nil
	}

	folders, err := r.client.ListContactFolders(ctx, target.ID)
	if err != nil {
		return "", false, fmt.Errorf("listing contact folders for %s: %w", target.PrincipalName, err)
	}

	if f, ok := FindFolder(folders, r.opts.ContactFolder); ok {
		return f.ID, true, nil
	}

	if !create {
		return "", false, fmt.Errorf("%w: %q for %s", ErrFolderNotFound, r.opts.ContactFolder, target.PrincipalName)
	}

	if r.opts.DryRun {
		r.logger.Info("dry run: would create contact folder",
			slog.String("user", target.PrincipalName),
			slog.String("folder", r.opts.ContactFolder),
		)

		return "", false, nil
	}

	f, err := r.client.CreateContactFolder(ctx, target.ID, r.opts.ContactFolder)
	if err != nil {
		return "", false, fmt.Errorf("creating contact folder for %s: %w", target.PrincipalName, err)
	}

	return f.ID, true, nil
}

// setup acquires a token, then loads the desired and target snapshots
// concurrently. When source and target are the same set it is loaded once.
func (r *Runner) setup(ctx context.Context) ([]graph.DirectoryEntry, []TargetUser, error) {
	if _, err := r.session.AccessToken(ctx); err != nil {
		return nil, nil, fmt.Errorf("acquiring token: %w", err)
	}

	if r.opts.TargetUser == "" && r.opts.TargetGroup == r.opts.SourceGroup {
		desired, err := r.loadSet(ctx, r.opts.SourceGroup)
		if err != nil {
			return nil, nil, fmt.Errorf("loading desired set: %w", err)
		}

		return desired, targetsFrom(desired), nil
	}

	var (
		desired []graph.DirectoryEntry
		targets []TargetUser
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		desired, err = r.loadSet(gctx, r.opts.SourceGroup)
		if err != nil {
			return fmt.Errorf("loading desired set: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		var err error

		targets, err = r.loadTargets(gctx)

		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return desired, targets, nil
}

// setupTargets acquires a token and loads only the target set.
func (r *Runner) setupTargets(ctx context.Context) ([]TargetUser, error) {
	if _, err := r.session.AccessToken(ctx); err != nil {
		return nil, fmt.Errorf("acquiring token: %w", err)
	}

	return r.loadTargets(ctx)
}

func (r *Runner) loadTargets(ctx context.Context) ([]TargetUser, error) {
	if r.opts.TargetUser != "" {
		entry, err := r.client.GetUser(ctx, r.opts.TargetUser)
		if err != nil {
			return nil, fmt.Errorf("loading target user %s: %w", r.opts.TargetUser, err)
		}

		return []TargetUser{TargetFromEntry(entry)}, nil
	}

	group := r.opts.TargetGroup
	if group == "" {
		group = r.opts.SourceGroup
	}

	entries, err := r.loadSet(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("loading target set: %w", err)
	}

	return targetsFrom(entries), nil
}

func (r *Runner) loadSet(ctx context.Context, groupID string) ([]graph.DirectoryEntry, error) {
	if groupID == "" {
		return r.client.ListUsers(ctx)
	}

	return r.client.ListGroupMembers(ctx, groupID)
}

func (r *Runner) newExecutor(logger *slog.Logger) *Executor {
	return NewExecutor(r.client, r.session, ExecutorOptions{
		BatchSize:   r.opts.BatchSize,
		PacingDelay: r.opts.PacingDelay,
		DryRun:      r.opts.DryRun,
	}, logger)
}

func targetsFrom(entries []graph.DirectoryEntry) []TargetUser {
	out := make([]TargetUser, 0, len(entries))
	for i := range entries {
		out = append(out, TargetFromEntry(&entries[i]))
	}

	return out
}

// sleepCtx waits for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
