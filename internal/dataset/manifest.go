package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/thumbset/youtube-thumbnail-collector-go/internal/models"
)

// ManifestName is the per-collection metadata file. Its row order is
// the append order of the collection, which drives overflow selection
// during rotation.
const ManifestName = "metadata.csv"

var manifestHeader = []string{
	"video_id", "title", "category_id", "category_name",
	"channel_id", "channel_title",
	"views", "likes", "comments",
	"channel_subscribers", "channel_total_views", "channel_video_count",
	"description_len", "duration_seconds", "definition", "language",
	"published_at", "captured_at", "video_url", "thumbnail_url",
	"viral_ratio", "title_length", "is_clickbait", "batch_version",
}

// ManifestRow is one collected video's record. Fields holds the full
// CSV record; VideoID is lifted out for rotation bookkeeping.
type ManifestRow struct {
	VideoID string
	Fields  []string
}

func manifestPath(dir string) string {
	return filepath.Join(dir, ManifestName)
}

// AppendManifest appends one row per video, creating the manifest with
// a header row when absent. batchTag records which target batch the
// run was collecting toward.
func AppendManifest(dir string, videos []models.Video, batchTag string) error {
	if len(videos) == 0 {
		return nil
	}

	path := manifestPath(dir)
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)
	if statErr != nil && !fresh {
		return statErr
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(manifestHeader); err != nil {
			return err
		}
	}
	for i := range videos {
		if err := w.Write(manifestRecord(&videos[i], batchTag)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadManifest returns the rows in append order. A missing manifest is
// an empty collection, not an error.
func ReadManifest(dir string) ([]ManifestRow, error) {
	f, err := os.Open(manifestPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", manifestPath(dir), err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	rows := make([]ManifestRow, 0, len(records)-1)
	for _, rec := range records[1:] { // skip header
		if len(rec) == 0 {
			continue
		}
		rows = append(rows, ManifestRow{VideoID: rec[0], Fields: rec})
	}
	return rows, nil
}

// WriteManifest replaces dir's manifest with exactly rows, atomically.
// An empty rows slice removes the manifest.
func WriteManifest(dir string, rows []ManifestRow) error {
	path := manifestPath(dir)
	if len(rows) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	tmp, err := os.CreateTemp(dir, "."+ManifestName+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(manifestHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row.Fields); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func manifestRecord(v *models.Video, batchTag string) []string {
	return []string{
		v.VideoID,
		v.Title,
		v.CategoryID,
		v.CategoryName,
		v.ChannelID,
		v.ChannelTitle,
		strconv.FormatInt(v.Views, 10),
		strconv.FormatInt(v.Likes, 10),
		strconv.FormatInt(v.Comments, 10),
		strconv.FormatInt(v.ChannelSubscribers, 10),
		strconv.FormatInt(v.ChannelTotalViews, 10),
		strconv.FormatInt(v.ChannelVideoCount, 10),
		strconv.Itoa(v.DescriptionLength),
		strconv.Itoa(v.DurationSeconds),
		v.Definition,
		v.Language,
		formatTime(v.PublishedAt),
		formatTime(v.CapturedAt),
		v.VideoURL(),
		v.ThumbnailURL,
		strconv.FormatFloat(v.ViralRatio(), 'f', 6, 64),
		strconv.Itoa(len([]rune(v.Title))),
		strconv.FormatBool(v.IsClickbait()),
		batchTag,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
