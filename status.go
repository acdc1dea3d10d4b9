package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/docsync/internal/localstore"
)

func newStatusCmd() *cobra.Command {
	var docType string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync status for the configured user and document type",
		Long: `Reports the current user scope, the local pending-change count (documents
awaiting push), and whether the token endpoint is reachable — derived directly
from the local store and token provider, without inventing new semantics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), docType)
		},
	}

	cmd.Flags().StringVar(&docType, "type", "Item", "document type to report on")

	return cmd
}

func runStatus(ctx context.Context, docType string) error {
	cc := mustCLIContext(ctx)

	local, err := localstore.New(ctx, cc.DB, docType, cc.Logger)
	if err != nil {
		return err
	}

	pending, err := local.GetPendingForUser(ctx, cc.Cfg.CurrentUserID)
	if err != nil {
		return fmt.Errorf("reading pending changes: %w", err)
	}

	reachable := tokenEndpointReachable(ctx, cc.Cfg.TokenEndpoint)
	color := !cc.Flags.Quiet && isatty.IsTerminal(os.Stdout.Fd())

	printStatusLine(color, "user", cc.Cfg.CurrentUserID)
	printStatusLine(color, "document type", docType)
	printStatusLine(color, "pending changes", fmt.Sprintf("%d", len(pending)))
	printStatusLine(color, "token endpoint reachable", fmt.Sprintf("%t", reachable))

	return nil
}

func printStatusLine(color bool, label, value string) {
	if color {
		fmt.Printf("\033[1m%s:\033[0m %s\n", label, value)
	} else {
		fmt.Printf("%s: %s\n", label, value)
	}
}

// tokenEndpointReachable does a best-effort GET against the token endpoint
// with a short timeout; reachability is advisory only (local reads never
// wait on remote, per spec §7).
func tokenEndpointReachable(ctx context.Context, endpoint string) bool {
	if endpoint == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return true
}
