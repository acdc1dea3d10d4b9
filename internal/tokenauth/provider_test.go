package tokenauth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/docsync/internal/docerr"
)

func newTestServer(t *testing.T, fetches *int64, expiry time.Duration) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(fetches, 1)

		userID := r.URL.Query().Get("userId")
		if userID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"token":"tok-%s","expiryDateTime":%q}`, userID, time.Now().Add(expiry).UTC().Format(time.RFC3339))
	}))
}

func TestGetTokenBeforeSetUserFailsInvalidState(t *testing.T) {
	var fetches int64
	srv := newTestServer(t, &fetches, time.Hour)
	defer srv.Close()

	p := New(srv.URL, srv.Client(), time.Minute, nil)

	_, err := p.GetToken(context.Background())
	require.Error(t, err)
	assert.True(t, docerr.Is(err, docerr.InvalidState))
}

func TestGetTokenFetchesAndCaches(t *testing.T) {
	var fetches int64
	srv := newTestServer(t, &fetches, time.Hour)
	defer srv.Close()

	p := New(srv.URL, srv.Client(), time.Minute, nil)
	p.SetUser("alice")

	tok1, err := p.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-alice", tok1)

	tok2, err := p.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tok1, tok2)
	assert.EqualValues(t, 1, atomic.LoadInt64(&fetches), "second call should be served from cache")
}

func TestTokenTreatedAsExpiredWithinSafetyBuffer(t *testing.T) {
	var fetches int64
	srv := newTestServer(t, &fetches, 4*time.Minute)
	defer srv.Close()

	p := New(srv.URL, srv.Client(), 5*time.Minute, nil)
	p.SetUser("alice")

	_, err := p.GetToken(context.Background())
	require.NoError(t, err)

	_, err = p.GetToken(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt64(&fetches), "token within safety buffer must be refetched")
}

func TestSetUserEvictsPreviousUserCache(t *testing.T) {
	var fetches int64
	srv := newTestServer(t, &fetches, time.Hour)
	defer srv.Close()

	p := New(srv.URL, srv.Client(), time.Minute, nil)
	p.SetUser("alice")

	tokAlice, err := p.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-alice", tokAlice)

	p.SetUser("bob")

	tokBob, err := p.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-bob", tokBob)
	assert.EqualValues(t, 2, atomic.LoadInt64(&fetches))

	p.SetUser("alice")

	tokAlice2, err := p.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-alice", tokAlice2)
	assert.EqualValues(t, 3, atomic.LoadInt64(&fetches), "switching back to alice must refetch, not reuse evicted cache")
}

func TestConcurrentGetTokenSingleFlights(t *testing.T) {
	var fetches int64
	srv := newTestServer(t, &fetches, time.Hour)
	defer srv.Close()

	p := New(srv.URL, srv.Client(), time.Minute, nil)
	p.SetUser("alice")

	const n = 20

	var wg sync.WaitGroup

	results := make([]string, n)

	for i := range n {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			tok, err := p.GetToken(context.Background())
			require.NoError(t, err)
			results[i] = tok
		}(i)
	}

	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "tok-alice", r)
	}

	assert.EqualValues(t, 1, atomic.LoadInt64(&fetches), "concurrent misses must collapse into one fetch")
}

func TestRemoteAuthOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "bad credentials")
	}))
	defer srv.Close()

	p := New(srv.URL, srv.Client(), time.Minute, nil)
	p.SetUser("alice")

	_, err := p.GetToken(context.Background())
	require.Error(t, err)
	assert.True(t, docerr.Is(err, docerr.RemoteAuth))
}
