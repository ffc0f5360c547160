// Package downloader fetches thumbnail images into the current
// collection directory. Failures of individual items are skipped and
// logged; only local storage failures abort the run.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/thumbset/youtube-thumbnail-collector-go/internal/models"
)

// ErrStorageWrite indicates the local filesystem rejected a write.
// Unlike a failed HTTP fetch this is not recoverable at the item level.
var ErrStorageWrite = errors.New("downloader: storage write failed")

// HTTPError carries the status code of a failed thumbnail fetch.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// Result summarizes one bulk download pass. Downloaded preserves the
// order in which files were appended to the collection.
type Result struct {
	Downloaded []models.Video
	Skipped    int
	Failed     int
}

// Downloader fetches thumbnails with a global rate limit.
type Downloader struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// New creates a Downloader. perSecond bounds the request rate; zero or
// negative disables the limiter.
func New(timeout time.Duration, perSecond float64, log *zap.Logger) *Downloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	var limiter *rate.Limiter
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}

	return &Downloader{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		log:     log,
	}
}

// Fetch downloads each video's thumbnail into dir, skipping files that
// already exist locally. Per-item fetch errors are counted and logged;
// a storage write error aborts immediately with ErrStorageWrite.
func (d *Downloader) Fetch(ctx context.Context, videos []models.Video, dir string) (Result, error) {
	var result Result

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, fmt.Errorf("%w: create %s: %v", ErrStorageWrite, dir, err)
	}

	for _, video := range videos {
		dst := filepath.Join(dir, video.ThumbnailFilename())
		if _, err := os.Stat(dst); err == nil {
			result.Skipped++
			d.log.Debug("thumbnail already present, skipping",
				zap.String("video_id", video.VideoID))
			continue
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return result, err
			}
		}

		data, err := d.fetchOne(ctx, video.ThumbnailURL)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			d.log.Warn("thumbnail download failed, skipping item",
				zap.String("video_id", video.VideoID),
				zap.String("url", video.ThumbnailURL),
				zap.Error(err))
			continue
		}

		if err := writeFileAtomic(dir, video.ThumbnailFilename(), data); err != nil {
			return result, fmt.Errorf("%w: %s: %v", ErrStorageWrite, dst, err)
		}

		result.Downloaded = append(result.Downloaded, video)
	}

	d.log.Info("thumbnail downloads complete",
		zap.Int("downloaded", len(result.Downloaded)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))

	return result, nil
}

func (d *Downloader) fetchOne(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	return io.ReadAll(resp.Body)
}

// writeFileAtomic writes data under dir via a same-directory temp file
// and rename, so a crashed run never leaves a truncated image behind.
func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, filepath.Join(dir, name))
}
