package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var docType string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one bidirectional sync cycle",
		Long: `Run one sync cycle for the configured document type: push locally
pending documents, then pull remote-newer documents, resolving conflicts with
last-write-wins on last_modified.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), docType)
		},
	}

	cmd.Flags().StringVar(&docType, "type", "Item", "document type to sync")

	return cmd
}

func runSync(ctx context.Context, docType string) error {
	cc := mustCLIContext(ctx)

	ctx = shutdownContext(ctx, cc.Logger)

	eng, err := cc.EngineFor(ctx, docType)
	if err != nil {
		return err
	}

	report, err := eng.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	cc.Statusf("sync complete: pushed=%d pulled=%d skipped_push=%d skipped_pull=%d duration=%s\n",
		report.Pushed, report.Pulled, report.SkippedPush, report.SkippedPull, report.Duration)

	return nil
}

func newInitialPullCmd() *cobra.Command {
	var docType string

	cmd := &cobra.Command{
		Use:   "initial-pull",
		Short: "Bootstrap a fresh local store from the remote store",
		Long: `Run the pull phase only, for a local store that has no documents of
the given type yet. Refuses to run if the local store already has documents
of this type — use "sync" instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInitialPull(cmd.Context(), docType)
		},
	}

	cmd.Flags().StringVar(&docType, "type", "Item", "document type to bootstrap")

	return cmd
}

func runInitialPull(ctx context.Context, docType string) error {
	cc := mustCLIContext(ctx)

	eng, err := cc.EngineFor(ctx, docType)
	if err != nil {
		return err
	}

	report, err := eng.InitialPull(ctx, docType)
	if err != nil {
		return fmt.Errorf("initial pull failed: %w", err)
	}

	cc.Statusf("initial pull complete: pulled=%d skipped=%d duration=%s\n",
		report.Pulled, report.SkippedPull, report.Duration)

	return nil
}
