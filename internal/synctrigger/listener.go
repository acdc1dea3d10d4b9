// Package synctrigger implements the remote change notifier (C7, a
// SPEC_FULL.md supplement): a background websocket listener that invokes
// a sync callback whenever the remote service pushes a change
// notification, reconnecting with backoff. This is additive — the sync
// engine is fully usable with only a timer-driven or manual trigger; the
// notifier gives the client a push-driven alternative to polling.
package synctrigger

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/coder/websocket"
)

const (
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// Notification is the change-notification payload the remote service
// pushes over the websocket connection.
type Notification struct {
	UserID string `json:"userId"`
	Type   string `json:"type"`
}

// Callback is invoked once per notification received. Typically wraps
// Engine.Sync (or Engine.SetUser followed by Sync, if UserID differs from
// the engine's current scope).
type Callback func(ctx context.Context, n Notification)

// Listener holds a websocket connection to an optional notification
// endpoint and reconnects with backoff on disconnect. A dropped or missed
// notification is harmless because the next timer-driven sync still
// converges — this component has no delivery guarantees and needs none.
type Listener struct {
	endpoint string
	callback Callback
	logger   *slog.Logger
}

// New builds a Listener against endpoint, invoking callback for every
// notification received.
func New(endpoint string, callback Callback, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{endpoint: endpoint, callback: callback, logger: logger}
}

// Run connects and processes notifications until ctx is cancelled,
// reconnecting with exponential backoff on any disconnect.
func (l *Listener) Run(ctx context.Context) error {
	attempt := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := l.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			l.logger.Warn("notifier connection lost, reconnecting", "error", err, "attempt", attempt+1)
		}

		backoff := calcBackoff(attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		attempt++
	}
}

func (l *Listener) runOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, l.endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "listener shutting down")

	l.logger.Info("notifier connected", "endpoint", l.endpoint)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			l.logger.Warn("dropping unparseable notification", "error", err)
			continue
		}

		l.callback(ctx, n)
	}
}

func calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1)

	return time.Duration(backoff + jitter)
}
