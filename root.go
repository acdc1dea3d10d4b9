package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/docsync/internal/config"
	"github.com/tonimelisma/docsync/internal/localstore"
	"github.com/tonimelisma/docsync/internal/remoteclient"
	"github.com/tonimelisma/docsync/internal/syncengine"
	"github.com/tonimelisma/docsync/internal/tokenauth"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in setupRootCmd().
var (
	flagConfigPath string
	flagUserID     string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that handle config loading themselves.
const skipConfigAnnotation = "skipConfig"

// CLIContext bundles the resolved config, logger, and wired collaborators.
// Created once in PersistentPreRunE; eliminates redundant construction in
// RunE handlers.
type CLIContext struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	DB      *sql.DB
	Token   *tokenauth.Provider
	Factory *remoteclient.Factory
	Flags   struct {
		JSON  bool
		Quiet bool
	}
}

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — ensure the command " +
			"does not skip config loading (no skipConfigAnnotation) or " +
			"explicitly loads config in its RunE")
	}

	return cc
}

// EngineFor builds a syncengine.Engine for one document kind, wiring a
// per-kind local store over the CLIContext's shared database and a
// per-kind remote handle from the client factory.
func (cc *CLIContext) EngineFor(ctx context.Context, kind string) (*syncengine.Engine, error) {
	local, err := localstore.New(ctx, cc.DB, kind, cc.Logger)
	if err != nil {
		return nil, err
	}

	remote := cc.Factory.GetContainer("docsync", kind)

	audit, err := syncengine.NewSQLiteAuditLog(ctx, cc.DB)
	if err != nil {
		return nil, err
	}

	return syncengine.New(local, remote, kind, cc.Cfg.CurrentUserID,
		syncengine.WithLogger(cc.Logger), syncengine.WithAuditLogger(audit))
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docsync",
		Short: "Offline-first document sync client",
		Long: `docsync keeps a local embedded document store on an intermittently
connected client in eventual agreement with a remote, partitioned document
store, using last-write-wins conflict resolution scoped per authenticated user.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return loadCLIContext(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagUserID, "user", "", "current user id (overrides config)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newInitialPullCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSetUserCmd())
	cmd.AddCommand(newListenCmd())
	cmd.AddCommand(newReloadCmd())
	cmd.AddCommand(newConflictsCmd())

	return cmd
}

// loadCLIContext resolves configuration, opens the local database, and
// wires the token provider and remote client factory, storing the result
// in the command's context for use by subcommands.
func loadCLIContext(cmd *cobra.Command) error {
	logger := buildLogger(nil)

	cli := config.CLIOverrides{ConfigPath: flagConfigPath}
	if cmd.Flags().Changed("user") {
		cli.UserID = flagUserID
	}

	cfg, err := config.Load(cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	finalLogger := buildLogger(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := localstore.Open(ctx, cfg.LocalDBPath, finalLogger)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}

	token := tokenauth.New(cfg.TokenEndpoint, &http.Client{Timeout: 30 * time.Second}, cfg.TokenSafetyBuffer, finalLogger)
	token.SetUser(cfg.CurrentUserID)

	factory := remoteclient.New(cfg.RemoteEndpoint, token, remoteclient.DefaultOptions(cfg.IsDevelopment()), finalLogger)

	cc := &CLIContext{Cfg: cfg, Logger: finalLogger, DB: db, Token: token, Factory: factory}
	cc.Flags.JSON = flagJSON
	cc.Flags.Quiet = flagQuiet

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Pass nil for pre-config bootstrap. Config-file log level
// provides the baseline; --verbose, --debug, and --quiet override it
// because CLI flags always win.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagDebug {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
