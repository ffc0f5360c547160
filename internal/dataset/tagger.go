package dataset

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/thumbset/youtube-thumbnail-collector-go/internal/models"
)

// Tagger creates a named, immutable version marker for a freshly
// archived batch. The real tagging backend (dataset VCS, object-store
// manifest) lives outside this job; this is its boundary.
type Tagger interface {
	Tag(ctx context.Context, batch *models.Batch, batchDir string) error
}

// FileTagger writes a batch_NNN.tag file next to the batch directory.
// Tag files are write-once: an existing tag is left untouched.
type FileTagger struct{}

// Tag writes the marker. Re-tagging an already tagged batch is a no-op,
// which makes crash-recovery repair safe.
func (FileTagger) Tag(_ context.Context, batch *models.Batch, batchDir string) error {
	path := filepath.Join(filepath.Dir(batchDir), batch.Tag+".tag")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o444)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch); err != nil {
		return err
	}
	return f.Sync()
}
