package config

import "github.com/tonimelisma/docsync/internal/docerr"

// Validate enforces the configuration invariants the sync engine depends
// on before any component is constructed: a non-empty user id (spec.md
// §7's InvalidState — "sync engine constructed with empty user id" is
// caught here rather than deferred to first use) and both endpoints set.
func Validate(cfg *Config) error {
	if cfg.CurrentUserID == "" {
		return docerr.New(docerr.InvalidState, "config.Validate", "current_user_id must not be empty")
	}

	if cfg.RemoteEndpoint == "" {
		return docerr.New(docerr.InvalidArgument, "config.Validate", "remote_endpoint must be configured")
	}

	if cfg.TokenEndpoint == "" {
		return docerr.New(docerr.InvalidArgument, "config.Validate", "token_endpoint must be configured")
	}

	if cfg.LocalDBPath == "" {
		cfg.LocalDBPath = DefaultLocalDBPath()
	}

	if cfg.TokenSafetyBufferSec <= 0 {
		cfg.TokenSafetyBufferSec = DefaultTokenSafetyBufferSec
	}

	return nil
}
