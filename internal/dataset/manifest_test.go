package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thumbset/youtube-thumbnail-collector-go/internal/models"
)

func TestAppendAndReadManifest(t *testing.T) {
	dir := t.TempDir()

	published := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	videos := []models.Video{
		{
			VideoID:            "vid1",
			Title:              "First Video",
			CategoryID:         "20",
			CategoryName:       "Gaming",
			ChannelID:          "chan1",
			ChannelTitle:       "Channel One",
			Views:              1000,
			Likes:              50,
			Comments:           7,
			ChannelSubscribers: 20000,
			DurationSeconds:    253,
			Definition:         "hd",
			Language:           "en",
			PublishedAt:        published,
			ThumbnailURL:       "http://example.com/vid1.jpg",
		},
		{VideoID: "vid2", Title: "Second, with comma"},
	}

	require.NoError(t, AppendManifest(dir, videos, "batch_001"))

	rows, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "vid1", rows[0].VideoID)
	assert.Equal(t, "First Video", rows[0].Fields[1])
	assert.Equal(t, "1000", rows[0].Fields[6])
	assert.Equal(t, "2026-08-20T10:00:00Z", rows[0].Fields[16])
	assert.Equal(t, "batch_001", rows[0].Fields[len(rows[0].Fields)-1])
	assert.Equal(t, "Second, with comma", rows[1].Fields[1])
}

func TestAppendManifestAccumulates(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, AppendManifest(dir, []models.Video{{VideoID: "vid1"}}, "batch_001"))
	require.NoError(t, AppendManifest(dir, []models.Video{{VideoID: "vid2"}, {VideoID: "vid3"}}, "batch_001"))

	rows, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "vid1", rows[0].VideoID)
	assert.Equal(t, "vid3", rows[2].VideoID)
}

func TestAppendManifestNoVideosNoFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AppendManifest(dir, nil, "batch_001"))

	_, err := os.Stat(filepath.Join(dir, ManifestName))
	assert.True(t, os.IsNotExist(err))
}

func TestReadManifestMissingIsEmpty(t *testing.T) {
	rows, err := ReadManifest(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriteManifestReplaces(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AppendManifest(dir, []models.Video{
		{VideoID: "vid1"}, {VideoID: "vid2"}, {VideoID: "vid3"},
	}, "batch_001"))

	rows, err := ReadManifest(dir)
	require.NoError(t, err)

	require.NoError(t, WriteManifest(dir, rows[1:2]))

	got, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "vid2", got[0].VideoID)
}

func TestWriteManifestEmptyRemovesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AppendManifest(dir, []models.Video{{VideoID: "vid1"}}, "batch_001"))

	require.NoError(t, WriteManifest(dir, nil))

	_, err := os.Stat(filepath.Join(dir, ManifestName))
	assert.True(t, os.IsNotExist(err))

	// Removing twice is fine.
	require.NoError(t, WriteManifest(dir, nil))
}
