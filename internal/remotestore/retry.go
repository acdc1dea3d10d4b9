package remotestore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/tonimelisma/docsync/internal/docerr"
)

// httpError carries a non-2xx response's status for classification by
// callers (e.g. Get translating 404 into the (nil, nil) NotFound
// convention).
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("remotestore: HTTP %d: %s", e.StatusCode, e.Body)
}

// doRetry is the shared retry loop: exponential backoff with jitter,
// honoring Retry-After on 429, bounded by MaxRetries.
func (c *Client) doRetry(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	url := c.baseURL + path

	var attempt int

	for {
		// Rewind the body so a retried request resends it in full.
		if seeker, ok := body.(io.Seeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return nil, docerr.Wrap(docerr.RemoteIO, "remotestore.doRetry", "rewinding request body", err)
			}
		}

		resp, err := c.doOnce(ctx, method, url, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, docerr.Wrap(docerr.Cancelled, "remotestore.doRetry", "request canceled", ctx.Err())
			}

			if attempt < c.maxRetries() {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method), slog.String("path", path),
					slog.Int("attempt", attempt+1), slog.Duration("backoff", backoff))

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, docerr.Wrap(docerr.Cancelled, "remotestore.doRetry", "request canceled", sleepErr)
				}

				attempt++

				continue
			}

			return nil, docerr.Wrap(docerr.RemoteIO, "remotestore.doRetry",
				fmt.Sprintf("%s %s failed after %d retries", method, path, c.maxRetries()), err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if isRetryable(resp.StatusCode) && attempt < c.maxRetries() {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method), slog.String("path", path),
				slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff))

			if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil, docerr.Wrap(docerr.Cancelled, "remotestore.doRetry", "request canceled", sleepErr)
			}

			attempt++

			continue
		}

		return nil, c.terminalError(resp.StatusCode, errBody)
	}
}

func (c *Client) doOnce(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.token.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) terminalError(statusCode int, body []byte) error {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return docerr.New(docerr.RemoteAuth, "remotestore", fmt.Sprintf("HTTP %d: %s", statusCode, string(body)))
	}

	if statusCode == http.StatusNotFound {
		return &httpError{StatusCode: statusCode, Body: string(body)}
	}

	return docerr.New(docerr.RemoteIO, "remotestore", fmt.Sprintf("HTTP %d: %s", statusCode, string(body)))
}

func (c *Client) maxRetries() int {
	if c.opts.MaxRetries > 0 {
		return c.opts.MaxRetries
	}

	return maxRetries
}

// retryBackoff honors the remote's Retry-After header on 429 before
// falling back to calculated exponential backoff.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with +/-25% jitter, capped at
// maxBackoff or the configured MaxRetryWait, whichever is smaller.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))

	cap := float64(maxBackoff)
	if c.opts.MaxRetryWait > 0 && float64(c.opts.MaxRetryWait) < cap {
		cap = float64(c.opts.MaxRetryWait)
	}

	if backoff > cap {
		backoff = cap
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1)
	backoff += jitter

	return time.Duration(backoff)
}

func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
