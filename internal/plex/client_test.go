package plex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/plexmirror/internal/engine"
)

const identityXML = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="0" friendlyName="Main Server" machineIdentifier="abc123" version="1.40.0.7998"/>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-token", false, testLogger())
}

// identityMux returns a mux pre-wired with the identity endpoint so write
// calls can resolve the machine identifier.
func identityMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, identityXML)
	})
	return mux
}

func TestIdentity(t *testing.T) {
	var gotToken, gotAccept string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Plex-Token")
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, identityXML)
	}))

	id, err := client.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Main Server", id.Name)
	assert.Equal(t, "1.40.0.7998", id.Version)
	assert.Equal(t, "abc123", id.MachineID)
	assert.Equal(t, "test-token", gotToken)
	assert.Equal(t, "application/xml", gotAccept)
}

func TestMachineIdentifierCached(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, identityXML)
	}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		id, err := client.machineIdentifier(ctx)
		require.NoError(t, err)
		assert.Equal(t, "abc123", id)
	}
	assert.Equal(t, 1, calls)
}

func TestAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	_, err := client.Sections(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "not found")
	assert.NotErrorIs(t, err, engine.ErrBulkRejected)
}

func TestBulkRejectionClassified(t *testing.T) {
	mux := identityMux()
	mux.HandleFunc("PUT /playlists/5/items", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Must include items to add", http.StatusBadRequest)
	})
	client := newTestClient(t, mux)

	err := client.AddPlaylistItems(context.Background(), "5", []engine.MediaItem{{Key: "1"}})
	assert.ErrorIs(t, err, engine.ErrBulkRejected)
}

func TestOtherBadRequestNotClassified(t *testing.T) {
	mux := identityMux()
	mux.HandleFunc("PUT /playlists/5/items", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "malformed uri", http.StatusBadRequest)
	})
	client := newTestClient(t, mux)

	err := client.AddPlaylistItems(context.Background(), "5", []engine.MediaItem{{Key: "1"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, engine.ErrBulkRejected)
}

func TestInsecureClientAcceptsSelfSigned(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, identityXML)
	}))
	t.Cleanup(server.Close)

	strict := NewClient(server.URL, "t", false, testLogger())
	_, err := strict.Identity(context.Background())
	assert.Error(t, err, "self-signed certificate must fail verification by default")

	insecure := NewClient(server.URL, "t", true, testLogger())
	id, err := insecure.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", id.MachineID)
}

func TestBaseURLTrailingSlash(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `<MediaContainer size="0"/>`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL+"/", "t", false, testLogger())
	_, err := client.Sections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/library/sections", gotPath)
}
