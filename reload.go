package main

import (
	"github.com/spf13/cobra"
)

// newReloadCmd sends SIGHUP to a running "listen" daemon, asking it to run
// one immediate out-of-band sync without waiting for the next notification.
func newReloadCmd() *cobra.Command {
	var pidPath string

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask a running \"listen\" daemon to sync immediately",
		Long: `Sends SIGHUP to the daemon started by "docsync listen", which responds
by running one sync cycle right away. Fails if no daemon is running.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			return sendSIGHUP(defaultPIDPath(cc, pidPath))
		},
	}

	cmd.Flags().StringVar(&pidPath, "pid-file", "", "PID file path (default: alongside the local db)")

	return cmd
}
