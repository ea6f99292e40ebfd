package avatar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if _, err := w.Write([]byte(body)); err != nil {
			t.Error(err)
		}
	}))
}

func TestDownloadCachesByContent(t *testing.T) {
	server := pngServer(t, "fake png bytes")
	defer server.Close()

	h, err := NewHandler(t.TempDir(), 8)
	require.NoError(t, err)

	p1, err := h.Download(context.Background(), server.URL+"/a.png")
	require.NoError(t, err)
	assert.FileExists(t, p1)

	// Same content from a different URL lands on the same cache file.
	p2, err := h.Download(context.Background(), server.URL+"/b.png")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "fake png bytes", string(data))
}

func TestDownloadRejectsInvalidURL(t *testing.T) {
	h, err := NewHandler(t.TempDir(), 8)
	require.NoError(t, err)

	_, err = h.Download(context.Background(), "not-a-url")
	assert.Error(t, err)

	_, err = h.Download(context.Background(), "")
	assert.Error(t, err)
}

func TestDownloadRejectsDisallowedType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("binary"))
	}))
	defer server.Close()

	h, err := NewHandler(t.TempDir(), 8)
	require.NoError(t, err)

	_, err = h.Download(context.Background(), server.URL+"/file.exe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
}

func TestDownloadRejectsOversizedFile(t *testing.T) {
	server := pngServer(t, strings.Repeat("x", 2*1024*1024))
	defer server.Close()

	h, err := NewHandler(t.TempDir(), 1)
	require.NoError(t, err)

	_, err = h.Download(context.Background(), server.URL+"/big.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestDownloadErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	h, err := NewHandler(t.TempDir(), 8)
	require.NoError(t, err)

	_, err = h.Download(context.Background(), server.URL+"/gone.png")
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	h, err := NewHandler(dir, 8)
	require.NoError(t, err)

	path := filepath.Join(dir, "victim.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	require.NoError(t, h.Remove(path))
	assert.NoFileExists(t, path)

	// Removing a missing file is not an error.
	require.NoError(t, h.Remove(path))
}

func TestCleanupOldFiles(t *testing.T) {
	dir := t.TempDir()
	h, err := NewHandler(dir, 8)
	require.NoError(t, err)

	oldPath := filepath.Join(dir, "old.png")
	newPath := filepath.Join(dir, "new.png")
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0600))
	require.NoError(t, os.WriteFile(newPath, []byte("y"), 0600))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	require.NoError(t, h.CleanupOldFiles(24*time.Hour))
	assert.NoFileExists(t, oldPath)
	assert.FileExists(t, newPath)
}
