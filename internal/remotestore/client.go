// Package remotestore implements the remote store adapter (C3): a
// docstore.Store backed by an HTTP-accessed, user-partitioned document
// database, with retry, backoff, and error classification on every call.
package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/docsync/internal/docerr"
	"github.com/tonimelisma/docsync/internal/docstore"
)

// Retry policy constants.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// TokenSource provides bearer tokens for authenticated requests. Defined at
// the consumer per "accept interfaces, return structs" — internal/tokenauth
// satisfies this without remotestore importing it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Options configures a Client, mirroring spec §4.5's client options.
type Options struct {
	MaxRetries     int
	MaxRetryWait   time.Duration
	RequestTimeout time.Duration
	BulkDisabled   bool // always true: token-based auth is incompatible with batch modes
}

// DefaultOptions matches spec §4.5's stated defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:     3,
		MaxRetryWait:   30 * time.Second,
		RequestTimeout: 60 * time.Second,
		BulkDisabled:   true,
	}
}

// Client is a docstore.Store backed by an HTTP document database,
// partitioned per spec §4.3.
type Client struct {
	baseURL    string
	kind       string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
	opts       Options
	sleepFunc  func(ctx context.Context, d time.Duration) error
}

// NewClient builds a remote store Client for one document kind. baseURL
// points at the remote document database container root.
func NewClient(baseURL, kind string, httpClient *http.Client, token TokenSource, opts Options, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		kind:       kind,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		opts:       opts,
		sleepFunc:  timeSleep,
	}
}

// Get is a partition-scoped point read (§4.3).
func (c *Client) Get(ctx context.Context, id, userID string) (*docstore.Record, error) {
	if err := docstore.RequireUserID(userID, "remotestore.Get"); err != nil {
		return nil, err
	}

	partition := docstore.PartitionKey(userID, c.kind)
	path := fmt.Sprintf("/docs/%s/%s?partitionKey=%s", c.kind, id, partition)

	resp, err := c.doRetry(ctx, http.MethodGet, path, nil)
	if err != nil {
		var herr *httpError
		if errors.As(err, &herr) && herr.StatusCode == http.StatusNotFound {
			return nil, nil //nolint:nilnil // NotFound is represented as (nil, nil), per contract
		}

		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, docerr.Wrap(docerr.RemoteIO, "remotestore.Get", "reading response body", err)
	}

	return docstore.Extract(raw, c.kind)
}

// GetByUser is a partition-scoped scan, never a cross-partition scan (§4.3).
func (c *Client) GetByUser(ctx context.Context, userID string) ([]*docstore.Record, error) {
	if err := docstore.RequireUserID(userID, "remotestore.GetByUser"); err != nil {
		return nil, err
	}

	partition := docstore.PartitionKey(userID, c.kind)
	path := fmt.Sprintf("/docs/%s?partitionKey=%s", c.kind, partition)

	return c.scanQuery(ctx, path, "remotestore.GetByUser")
}

// GetAll scans every document of this store's kind, across partitions.
func (c *Client) GetAll(ctx context.Context) ([]*docstore.Record, error) {
	path := fmt.Sprintf("/docs/%s", c.kind)

	return c.scanQuery(ctx, path, "remotestore.GetAll")
}

func (c *Client) scanQuery(ctx context.Context, path, op string) ([]*docstore.Record, error) {
	resp, err := c.doRetry(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rawDocs []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rawDocs); err != nil {
		return nil, docerr.Wrap(docerr.RemoteIO, op, "decoding response body", err)
	}

	recs := make([]*docstore.Record, 0, len(rawDocs))

	for _, raw := range rawDocs {
		rec, err := docstore.Extract(raw, c.kind)
		if err != nil {
			c.logger.Warn("skipping unparseable remote document", "type", c.kind, "error", err)
			continue
		}

		recs = append(recs, rec)
	}

	return recs, nil
}

// Upsert writes a document to its own partition, setting its partitionKey
// field via docstore.WithPartitionKey, which keeps every other field's
// value but not the payload's key order or formatting.
func (c *Client) Upsert(ctx context.Context, rec *docstore.Record, _ docstore.UpsertOptions) error {
	if err := docstore.Validate(rec, "remotestore.Upsert"); err != nil {
		return err
	}

	partition := rec.PartitionKey()

	body, err := docstore.WithPartitionKey(rec.Raw, partition)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/docs/%s/%s", c.kind, rec.ID)

	resp, err := c.doRetry(ctx, http.MethodPut, path, bytes.NewReader(body))
	if err != nil {
		return err
	}

	return resp.Body.Close()
}

// UpsertBulk performs concurrent per-document upserts and aggregates
// per-document failures into a single composite error (§4.3).
func (c *Client) UpsertBulk(ctx context.Context, recs []*docstore.Record, opts docstore.UpsertOptions) error {
	g, gctx := errgroup.WithContext(ctx)

	errs := make([]error, len(recs))

	for i, rec := range recs {
		i, rec := i, rec

		g.Go(func() error {
			if err := c.Upsert(gctx, rec, opts); err != nil {
				errs[i] = fmt.Errorf("document %s: %w", rec.ID, err)
			}

			return nil // collect, don't abort siblings
		})
	}

	_ = g.Wait()

	return errors.Join(errs...)
}

// GetPending is a no-op for remote adapters: pending-change tracking is
// local-only (§4.1, §4.3).
func (c *Client) GetPending(ctx context.Context) ([]*docstore.Record, error) {
	return nil, nil
}

// GetPendingForUser is a no-op for remote adapters.
func (c *Client) GetPendingForUser(ctx context.Context, userID string) ([]*docstore.Record, error) {
	return nil, nil
}

// RemovePending is a no-op for remote adapters.
func (c *Client) RemovePending(ctx context.Context, id string) error {
	return nil
}

// Compile-time interface check.
var _ docstore.Store = (*Client)(nil)
