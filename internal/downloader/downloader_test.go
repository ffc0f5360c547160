package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thumbset/youtube-thumbnail-collector-go/internal/models"
)

func thumbnailServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken.jpg":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Header().Set("Content-Type", "image/jpeg")
			fmt.Fprintf(w, "jpeg-bytes-for%s", r.URL.Path)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func video(id, url string) models.Video {
	return models.Video{VideoID: id, ThumbnailURL: url}
}

func TestFetchDownloadsThumbnails(t *testing.T) {
	server := thumbnailServer(t)
	dir := t.TempDir()
	d := New(5*time.Second, 0, nil)

	videos := []models.Video{
		video("vid1", server.URL+"/vid1.jpg"),
		video("vid2", server.URL+"/vid2.jpg"),
	}

	result, err := d.Fetch(context.Background(), videos, dir)
	require.NoError(t, err)

	require.Len(t, result.Downloaded, 2)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	data, err := os.ReadFile(filepath.Join(dir, "vid1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes-for/vid1.jpg", string(data))
}

func TestFetchSkipsExistingFiles(t *testing.T) {
	server := thumbnailServer(t)
	dir := t.TempDir()
	d := New(5*time.Second, 0, nil)

	existing := filepath.Join(dir, "vid1.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("original"), 0o644))

	result, err := d.Fetch(context.Background(), []models.Video{
		video("vid1", server.URL+"/vid1.jpg"),
		video("vid2", server.URL+"/vid2.jpg"),
	}, dir)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Downloaded, 1)
	assert.Equal(t, "vid2", result.Downloaded[0].VideoID)

	// The existing file must be untouched.
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestFetchSkipsFailedItems(t *testing.T) {
	server := thumbnailServer(t)
	dir := t.TempDir()
	d := New(5*time.Second, 0, nil)

	result, err := d.Fetch(context.Background(), []models.Video{
		video("vid1", server.URL+"/vid1.jpg"),
		video("broken", server.URL+"/broken.jpg"),
		video("vid3", server.URL+"/vid3.jpg"),
	}, dir)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Downloaded, 2)
	assert.Equal(t, "vid1", result.Downloaded[0].VideoID)
	assert.Equal(t, "vid3", result.Downloaded[1].VideoID)

	_, err = os.Stat(filepath.Join(dir, "broken.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestFetchUnreachableHostCountsAsFailure(t *testing.T) {
	dir := t.TempDir()
	d := New(500*time.Millisecond, 0, nil)

	result, err := d.Fetch(context.Background(), []models.Video{
		video("vid1", "http://127.0.0.1:1/missing.jpg"),
	}, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, result.Downloaded)
}

func TestFetchStorageWriteFailure(t *testing.T) {
	server := thumbnailServer(t)
	d := New(5*time.Second, 0, nil)

	// A file where the directory should be makes MkdirAll fail.
	parent := t.TempDir()
	blocked := filepath.Join(parent, "not-a-dir")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

	_, err := d.Fetch(context.Background(), []models.Video{
		video("vid1", server.URL+"/vid1.jpg"),
	}, blocked)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageWrite), "expected ErrStorageWrite, got %v", err)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	server := thumbnailServer(t)
	dir := t.TempDir()
	d := New(5*time.Second, 0.001, nil) // limiter forces a long wait

	ctx, cancel := context.WithCancel(context.Background())

	videos := []models.Video{
		video("vid1", server.URL+"/vid1.jpg"),
		video("vid2", server.URL+"/vid2.jpg"),
	}
	cancel()

	_, err := d.Fetch(ctx, videos, dir)
	require.Error(t, err)
}

func TestHTTPErrorMessage(t *testing.T) {
	err := &HTTPError{StatusCode: 404, URL: "http://example.com/x.jpg"}
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "x.jpg")
}
