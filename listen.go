package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/docsync/internal/synctrigger"
)

func newListenCmd() *cobra.Command {
	var docType, pidPath string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run a background daemon that syncs on remote change notifications",
		Long: `Connects to the configured notify_endpoint over websocket and runs a
sync cycle whenever the remote service pushes a change notification,
reconnecting with backoff on disconnect. A dropped notification is harmless:
the next notification or manual "sync" still converges. Sending SIGHUP (via
"docsync reload") runs one immediate out-of-band sync without waiting for a
notification.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runListen(cmd.Context(), docType, pidPath)
		},
	}

	cmd.Flags().StringVar(&docType, "type", "Item", "document type to sync on notification")
	cmd.Flags().StringVar(&pidPath, "pid-file", "", "PID file path (default: alongside the local db)")

	return cmd
}

// defaultPIDPath returns the listen daemon's PID file location, shared by
// "listen" (which writes it) and "reload" (which reads it).
func defaultPIDPath(cc *CLIContext, pidPath string) string {
	if pidPath != "" {
		return pidPath
	}

	return filepath.Join(filepath.Dir(cc.Cfg.LocalDBPath), "docsync-listen.pid")
}

func runListen(ctx context.Context, docType, pidPath string) error {
	cc := mustCLIContext(ctx)

	if cc.Cfg.NotifyEndpoint == "" {
		return fmt.Errorf("notify_endpoint is not configured; listen requires a websocket notification endpoint")
	}

	pidPath = defaultPIDPath(cc, pidPath)

	cleanup, err := writePIDFile(pidPath)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx = shutdownContext(ctx, cc.Logger)

	runSync := func(ctx context.Context, kind string) {
		eng, err := cc.EngineFor(ctx, kind)
		if err != nil {
			cc.Logger.Error("building engine for sync", "error", err)
			return
		}

		if _, err := eng.Sync(ctx); err != nil {
			cc.Logger.Error("sync failed", "error", err)
		}
	}

	callback := func(ctx context.Context, n synctrigger.Notification) {
		if n.UserID != "" && n.UserID != cc.Cfg.CurrentUserID {
			cc.Logger.Debug("ignoring notification for non-current user", "user_id", n.UserID)
			return
		}

		kind := docType
		if n.Type != "" {
			kind = n.Type
		}

		runSync(ctx, kind)
	}

	go watchReloadSignal(ctx, cc.Logger, func() { runSync(ctx, docType) })

	listener := synctrigger.New(cc.Cfg.NotifyEndpoint, callback, cc.Logger)

	err = listener.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}

	return err
}

// watchReloadSignal runs an immediate out-of-band sync each time the
// process receives SIGHUP (sent by "docsync reload"), until ctx is done.
func watchReloadSignal(ctx context.Context, logger *slog.Logger, onReload func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			logger.Info("received SIGHUP, running out-of-band sync")
			onReload()
		}
	}
}
