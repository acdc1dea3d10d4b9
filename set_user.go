package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/docsync/internal/config"
)

// newSetUserCmd writes a new current_user_id into the config file. It does
// not itself run a sync — spec §4.6's SetUser is an engine-lifetime
// operation; the next "sync" invocation picks up the new scope because
// each CLI invocation constructs a fresh engine from the resolved config.
func newSetUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "set-user <user-id>",
		Short:       "Switch the current user scope",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetUser(args[0])
		},
	}
}

func runSetUser(userID string) error {
	if userID == "" {
		return fmt.Errorf("user id must not be empty")
	}

	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.Load(config.CLIOverrides{ConfigPath: path})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg.CurrentUserID = userID

	if err := config.Write(path, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("current user set to %s\n", userID)

	return nil
}
