package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/docsync/internal/config"
)

// fakeRemote is a tiny in-memory document service standing in for the
// partitioned remote store the CLI talks to, reused across the sync and
// status integration tests below.
type fakeRemote struct {
	docs map[string]json.RawMessage
}

func newFakeRemoteServer() (*httptest.Server, *fakeRemote) {
	fr := &fakeRemote{docs: map[string]json.RawMessage{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/docs/Item/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/docs/Item/"):]

		switch r.Method {
		case http.MethodGet:
			raw, ok := fr.docs[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}

			w.Write(raw)
		case http.MethodPut:
			var buf bytes.Buffer
			buf.ReadFrom(r.Body)
			fr.docs[id] = buf.Bytes()
			w.WriteHeader(http.StatusOK)
		}
	})
	mux.HandleFunc("/docs/Item", func(w http.ResponseWriter, r *http.Request) {
		out := make([]json.RawMessage, 0, len(fr.docs))
		for _, raw := range fr.docs {
			out = append(out, raw)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	return httptest.NewServer(mux), fr
}

func newFakeTokenServerCLI() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"token":"tok","expiryDateTime":%q}`, time.Now().Add(time.Hour).UTC().Format(time.RFC3339))
	}))
}

func setCLIEnv(t *testing.T, remoteURL, tokenURL, dbPath string) {
	t.Helper()

	t.Setenv(config.EnvRemoteURL, remoteURL)
	t.Setenv(config.EnvTokenURL, tokenURL)
	t.Setenv(config.EnvLocalDBPath, dbPath)
	t.Setenv(config.EnvUserID, "u1")
	t.Setenv(config.EnvConfigPath, filepath.Join(t.TempDir(), "missing-config.toml"))
}

func TestSyncCommandRunsEndToEnd(t *testing.T) {
	remoteSrv, _ := newFakeRemoteServer()
	defer remoteSrv.Close()

	tokenSrv := newFakeTokenServerCLI()
	defer tokenSrv.Close()

	dbPath := filepath.Join(t.TempDir(), "local.db")
	setCLIEnv(t, remoteSrv.URL, tokenSrv.URL, dbPath)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--quiet", "sync"})

	require.NoError(t, cmd.Execute())
}

func TestStatusCommandRunsEndToEnd(t *testing.T) {
	remoteSrv, _ := newFakeRemoteServer()
	defer remoteSrv.Close()

	tokenSrv := newFakeTokenServerCLI()
	defer tokenSrv.Close()

	dbPath := filepath.Join(t.TempDir(), "local.db")
	setCLIEnv(t, remoteSrv.URL, tokenSrv.URL, dbPath)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"status"})

	require.NoError(t, cmd.Execute())
}

func TestInitialPullRefusesAfterSync(t *testing.T) {
	remoteSrv, fr := newFakeRemoteServer()
	defer remoteSrv.Close()

	tokenSrv := newFakeTokenServerCLI()
	defer tokenSrv.Close()

	dbPath := filepath.Join(t.TempDir(), "local.db")
	setCLIEnv(t, remoteSrv.URL, tokenSrv.URL, dbPath)

	raw, err := json.Marshal(map[string]any{
		"id": "remote-1", "userId": "u1", "type": "Item",
		"lastModified": time.Now().UTC().Format(time.RFC3339Nano),
		"content":      "seeded",
	})
	require.NoError(t, err)
	fr.docs["remote-1"] = raw

	syncCmd := newRootCmd()
	syncCmd.SetArgs([]string{"--quiet", "sync"})
	require.NoError(t, syncCmd.Execute())

	pullCmd := newRootCmd()
	pullCmd.SetArgs([]string{"--quiet", "initial-pull"})
	require.Error(t, pullCmd.Execute())
}
