package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "groove.csv"), []byte("Count,Instrument 1\n1,Kick\n"), 0o644))
	r := NewResolver(dir)

	data, err := r.Fetch(context.Background(), "groove.csv")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Kick")

	data, err = r.Fetch(context.Background(), "file://"+filepath.Join(dir, "groove.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Kick")

	_, err = r.Fetch(context.Background(), "missing.wav")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Fetch(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/track.mp3":
			_, _ = w.Write([]byte("ID3"))
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()
	r := NewResolver("")

	data, err := r.Fetch(context.Background(), srv.URL+"/track.mp3")
	require.NoError(t, err)
	assert.Equal(t, "ID3", string(data))

	_, err = r.Fetch(context.Background(), srv.URL+"/nothing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Fetch(context.Background(), srv.URL+"/broken")
	assert.ErrorContains(t, err, "status 500")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Fetch(ctx, srv.URL+"/track.mp3")
	assert.Error(t, err)
}
