package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/contactsync/internal/contactsync"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize directory users into every target mailbox",
		Long: `Run one reconciliation pass over every target mailbox.

Each directory user becomes a contact tagged with the managed category.
Changed users are updated, departed users are removed, and contacts without
the managed category are never touched. Use --dry-run to log the plan
without sending any changes.`,
		Args: cobra.NoArgs,
		RunE: runSync,
	}

	addRunFlags(cmd)

	return cmd
}

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove duplicate and stale-category contacts",
		Long: `Delete duplicate contacts (same primary email, or same display name when
dedupe_by_name is set) and every contact tagged with remove_category.

One contact survives each duplicate group, preferring one tagged with
preserve_category.`,
		Args: cobra.NoArgs,
		RunE: runCleanup,
	}

	addRunFlags(cmd)

	return cmd
}

func newDeleteFolderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-folder [name]",
		Short: "Delete a contact folder from every target mailbox",
		Long: `Delete the named contact folder, and the contacts in it, from every target
mailbox. The name defaults to [cleanup] folder_name.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDeleteFolder,
	}

	addRunFlags(cmd)

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	return runWith(cmd, "sync", func(ctx context.Context, r *contactsync.Runner) (*contactsync.Summary, error) {
		return r.Sync(ctx)
	})
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	return runWith(cmd, "cleanup", func(ctx context.Context, r *contactsync.Runner) (*contactsync.Summary, error) {
		return r.Cleanup(ctx)
	})
}

func runDeleteFolder(cmd *cobra.Command, args []string) error {
	name := resolvedCfg.Cleanup.FolderName
	if len(args) == 1 {
		name = args[0]
	}

	if name == "" {
		return errors.New("folder name required: pass it as an argument or set [cleanup] folder_name")
	}

	return runWith(cmd, "delete-folder", func(ctx context.Context, r *contactsync.Runner) (*contactsync.Summary, error) {
		return r.DeleteFolder(ctx, name)
	})
}

// runWith builds a runner from the resolved config, runs fn under a
// signal-aware context and prints the summary.
func runWith(
	cmd *cobra.Command, title string,
	fn func(context.Context, *contactsync.Runner) (*contactsync.Summary, error),
) error {
	logger := buildLogger()
	cfg := resolvedCfg

	runner, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}

	ctx := shutdownContext(cmd.Context(), logger)

	if cfg.Sync.DryRun {
		statusf("Dry run: no changes will be sent.\n")
	}

	summary, err := fn(ctx, runner)
	if summary == nil {
		if err == nil {
			err = errors.New("run produced no summary")
		}

		return fmt.Errorf("%s: %w", title, err)
	}

	if printErr := printSummary(os.Stdout, title, summary, cfg.Sync.DryRun, flagJSON); printErr != nil {
		return printErr
	}

	if err != nil {
		return fmt.Errorf("%s: %w", title, err)
	}

	// Per-user and per-operation failures are counted in the summary and
	// do not change the exit status.
	if summary.Errors() > 0 {
		logger.Warn("run finished with errors", "errors", summary.Errors())
	}

	return nil
}
