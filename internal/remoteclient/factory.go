// Package remoteclient implements the remote client factory (C5): it
// combines a token source (C4) with a stable endpoint and client options
// to produce a ready-to-use remote store handle (C3), on demand, per
// operation.
package remoteclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tonimelisma/docsync/internal/remotestore"
)

// ConnectionMode names the connection mode recorded in Options. GetContainer
// builds the same HTTP client for either mode; the mode does not change how
// requests reach the remote store.
type ConnectionMode string

const (
	// ModeGateway is the development default.
	ModeGateway ConnectionMode = "gateway"
	// ModeDirect is the non-development default.
	ModeDirect ConnectionMode = "direct"
)

// Options configures handles the factory produces, per spec §4.5's stated
// defaults.
type Options struct {
	ConnectionMode ConnectionMode
	MaxRetries     int
	MaxRetryWait   time.Duration
	RequestTimeout time.Duration
}

// DefaultOptions returns spec §4.5's defaults for the given environment.
// isDevelopment selects gateway mode and is otherwise inert — retry/timeout
// defaults do not vary by environment in this spec.
func DefaultOptions(isDevelopment bool) Options {
	mode := ModeDirect
	if isDevelopment {
		mode = ModeGateway
	}

	return Options{
		ConnectionMode: mode,
		MaxRetries:     3,
		MaxRetryWait:   30 * time.Second,
		RequestTimeout: 60 * time.Second,
	}
}

// Factory builds remotestore.Client handles bound to one remote endpoint,
// never pooling them (spec §4.5 "Lifetime policy" — handles are
// constructed per operation).
type Factory struct {
	endpoint string
	token    remotestore.TokenSource
	opts     Options
	logger   *slog.Logger
}

// New builds a Factory. endpoint is the stable remote store base URL;
// token supplies fresh bearer tokens per call (typically a
// *tokenauth.Provider).
func New(endpoint string, token remotestore.TokenSource, opts Options, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}

	return &Factory{endpoint: endpoint, token: token, opts: opts, logger: logger}
}

// GetContainer returns a remote store handle for one (database, container)
// pair — here, simply the document kind, since this spec's remote store
// has no further logical-database nesting beyond per-kind partitioning.
// db is accepted for contract symmetry with spec §4.5 and is otherwise
// unused: every document kind in this system lives in the same logical
// database.
func (f *Factory) GetContainer(db, container string) *remotestore.Client {
	httpClient := &http.Client{Timeout: f.opts.RequestTimeout}

	return remotestore.NewClient(f.endpoint, container, httpClient, f.token, remotestore.Options{
		MaxRetries:     f.opts.MaxRetries,
		MaxRetryWait:   f.opts.MaxRetryWait,
		RequestTimeout: f.opts.RequestTimeout,
		BulkDisabled:   true,
	}, f.logger)
}
