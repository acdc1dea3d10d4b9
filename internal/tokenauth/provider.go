// Package tokenauth implements the remote authentication loop (C4):
// short-lived, user-scoped resource credentials fetched from a token
// service, cached until just before expiry, and single-flighted so
// concurrent callers during a cache miss collapse into one fetch.
package tokenauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tonimelisma/docsync/internal/docerr"
)

// DefaultSafetyBuffer is the margin before expiry at which a cached token
// is treated as a cache miss (spec §4.4/§6, default 300s).
const DefaultSafetyBuffer = 5 * time.Minute

type cachedToken struct {
	token     string
	expiresAt time.Time // already has the safety buffer subtracted
}

func (c cachedToken) validAt(now time.Time) bool {
	return now.Before(c.expiresAt)
}

// Provider fetches and caches tokens for exactly one user at a time,
// implementing the state machine of spec §4.4: Unconfigured, Configured,
// Cached, Expired/near-expired.
type Provider struct {
	endpoint     string
	httpClient   *http.Client
	safetyBuffer time.Duration
	logger       *slog.Logger

	mu        sync.Mutex
	userID    string
	cache     *cachedToken
	group     singleflight.Group
	nowFunc   func() time.Time
}

// New builds a Provider against the given token-service endpoint. The
// provider starts Unconfigured; SetUser must be called before GetToken.
func New(endpoint string, httpClient *http.Client, safetyBuffer time.Duration, logger *slog.Logger) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if safetyBuffer <= 0 {
		safetyBuffer = DefaultSafetyBuffer
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		endpoint:     endpoint,
		httpClient:   httpClient,
		safetyBuffer: safetyBuffer,
		logger:       logger,
		nowFunc:      time.Now,
	}
}

// SetUser moves the provider to Configured for user u. If u differs from
// the previously configured user, any cached entry for the previous user
// is evicted (spec §4.4 transitions).
func (p *Provider) SetUser(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if u != p.userID {
		p.cache = nil
	}

	p.userID = u
}

// CurrentUser returns the user id the provider is configured for, or ""
// if Unconfigured.
func (p *Provider) CurrentUser() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.userID
}

// GetToken returns a valid access token for the configured user, serving
// from cache when possible and collapsing concurrent cache misses into a
// single outstanding fetch (spec §4.4 "Concurrency").
func (p *Provider) GetToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	userID := p.userID
	if userID == "" {
		p.mu.Unlock()
		return "", docerr.New(docerr.InvalidState, "tokenauth.GetToken", "no user configured; call SetUser first")
	}

	if p.cache != nil && p.cache.validAt(p.nowFunc()) {
		token := p.cache.token
		p.mu.Unlock()

		return token, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do(userID, func() (any, error) {
		return p.fetchOrServeCache(ctx, userID)
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// fetchOrServeCache re-checks the cache after acquiring the fetch right
// (the double-checked pattern spec §4.4 mandates) before issuing an HTTP
// request, so that a waiter who arrived after a sibling's fetch already
// completed does not trigger a redundant fetch.
func (p *Provider) fetchOrServeCache(ctx context.Context, userID string) (string, error) {
	p.mu.Lock()
	if p.userID == userID && p.cache != nil && p.cache.validAt(p.nowFunc()) {
		token := p.cache.token
		p.mu.Unlock()

		return token, nil
	}
	p.mu.Unlock()

	token, expiry, err := p.fetch(ctx, userID)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Another SetUser call may have switched users while the fetch was in
	// flight; only cache the result if it's still the current user.
	if p.userID == userID {
		p.cache = &cachedToken{token: token, expiresAt: expiry.Add(-p.safetyBuffer)}
	}

	return token, nil
}

type tokenResponse struct {
	Token          string    `json:"token"`
	ExpiryDateTime time.Time `json:"expiryDateTime"`
}

// fetch performs the HTTP GET against the token service, per spec §4.4/§6.
func (p *Provider) fetch(ctx context.Context, userID string) (string, time.Time, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", time.Time{}, docerr.Wrap(docerr.InvalidArgument, "tokenauth.fetch", "parsing token endpoint", err)
	}

	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", time.Time{}, docerr.Wrap(docerr.RemoteIO, "tokenauth.fetch", "building request", err)
	}

	p.logger.Debug("fetching remote token", "user_id", userID)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", time.Time{}, docerr.Wrap(docerr.Cancelled, "tokenauth.fetch", "request cancelled", ctx.Err())
		}

		return "", time.Time{}, docerr.Wrap(docerr.RemoteIO, "tokenauth.fetch", "calling token endpoint", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", time.Time{}, docerr.New(docerr.RemoteAuth, "tokenauth.fetch",
			fmt.Sprintf("token service returned %d: %s", resp.StatusCode, string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", time.Time{}, docerr.Wrap(docerr.RemoteIO, "tokenauth.fetch", "decoding token response", err)
	}

	p.logger.Info("fetched remote token", "user_id", userID, "expires_at", tr.ExpiryDateTime)

	return tr.Token, tr.ExpiryDateTime.UTC(), nil
}

// Token implements remotestore.TokenSource.
func (p *Provider) Token(ctx context.Context) (string, error) {
	return p.GetToken(ctx)
}
