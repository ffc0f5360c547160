// Package dataset maintains the on-disk thumbnail dataset: a mutable,
// size-capped current/ collection and immutable, sequentially numbered
// batches/batch_NNN snapshots, each paired with a version tag.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thumbset/youtube-thumbnail-collector-go/internal/models"
)

const (
	currentDirName = "current"
	stagingDirName = "current.next"
	batchesDirName = "batches"
	batchPrefix    = "batch_"
)

// State is the rotator's position in its two-state machine.
type State string

// Rotator states.
const (
	StateCollecting     State = "COLLECTING"
	StateRotationNeeded State = "ROTATION_NEEDED"
)

// ErrNotFull is returned by Rotate when the current collection has not
// reached the batch limit.
var ErrNotFull = errors.New("dataset: current collection below batch limit")

// Rotator owns the dataset directory tree. Not safe for concurrent use;
// the job's external scheduler guarantees a single active run.
type Rotator struct {
	root   string
	limit  int
	tagger Tagger
	log    *zap.Logger
}

// Open prepares the dataset tree under root, completing any rotation a
// previous run left half-finished before the current run touches it.
func Open(root string, limit int, tagger Tagger, log *zap.Logger) (*Rotator, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("dataset: batch limit must be positive, got %d", limit)
	}
	if tagger == nil {
		tagger = FileTagger{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &Rotator{root: root, limit: limit, tagger: tagger, log: log}

	if err := os.MkdirAll(r.batchesDir(), 0o755); err != nil {
		return nil, err
	}
	if err := r.recover(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.CurrentDir(), 0o755); err != nil {
		return nil, err
	}
	if err := r.repairTags(); err != nil {
		return nil, err
	}

	return r, nil
}

// CurrentDir is where new thumbnails are appended.
func (r *Rotator) CurrentDir() string {
	return filepath.Join(r.root, currentDirName)
}

func (r *Rotator) stagingDir() string {
	return filepath.Join(r.root, stagingDirName)
}

func (r *Rotator) batchesDir() string {
	return filepath.Join(r.root, batchesDirName)
}

// BatchDir returns the directory of an archived batch.
func (r *Rotator) BatchDir(number int) string {
	return filepath.Join(r.batchesDir(), models.BatchTag(number))
}

// CurrentSize counts the image files in the current collection.
func (r *Rotator) CurrentSize() (int, error) {
	images, err := listImages(r.CurrentDir())
	if err != nil {
		return 0, err
	}
	return len(images), nil
}

// State reports Collecting below the limit, RotationNeeded at or above.
func (r *Rotator) State() (State, error) {
	size, err := r.CurrentSize()
	if err != nil {
		return "", err
	}
	if size >= r.limit {
		return StateRotationNeeded, nil
	}
	return StateCollecting, nil
}

// NextBatchNumber is one past the highest existing batch number, or 1
// for a fresh dataset. Numbers are never reused.
func (r *Rotator) NextBatchNumber() (int, error) {
	entries, err := os.ReadDir(r.batchesDir())
	if err != nil {
		return 0, err
	}

	max := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, ok := parseBatchNumber(entry.Name())
		if ok && n > max {
			max = n
		}
	}
	return max + 1, nil
}

// Rotate freezes the oldest limit images of the current collection into
// the next numbered batch and reinitializes current with the overflow.
// Sequence: stage overflow out, one atomic rename of current into the
// batch directory, one atomic rename of the staging directory back into
// place, then the version tag. A crash between the renames is repaired
// by Open on the next run.
func (r *Rotator) Rotate(ctx context.Context) (*models.Batch, error) {
	current := r.CurrentDir()
	staging := r.stagingDir()

	images, err := listImages(current)
	if err != nil {
		return nil, err
	}
	if len(images) < r.limit {
		return nil, ErrNotFull
	}

	rows, err := ReadManifest(current)
	if err != nil {
		return nil, err
	}

	archived, overflow := splitByAge(images, rows, r.limit)
	overflowSet := make(map[string]bool, len(overflow))
	for _, name := range overflow {
		overflowSet[name] = true
	}

	number, err := r.NextBatchNumber()
	if err != nil {
		return nil, err
	}
	batchDir := r.BatchDir(number)

	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, err
	}
	for _, name := range overflow {
		if err := os.Rename(filepath.Join(current, name), filepath.Join(staging, name)); err != nil {
			return nil, fmt.Errorf("stage overflow %s: %w", name, err)
		}
	}

	var keepRows, moveRows []ManifestRow
	for _, row := range rows {
		if overflowSet[row.VideoID+".jpg"] {
			moveRows = append(moveRows, row)
		} else {
			keepRows = append(keepRows, row)
		}
	}
	if err := WriteManifest(staging, moveRows); err != nil {
		return nil, err
	}
	if err := WriteManifest(current, keepRows); err != nil {
		return nil, err
	}

	batch := &models.Batch{
		ID:         uuid.New(),
		Number:     number,
		Tag:        models.BatchTag(number),
		ImageCount: len(archived),
		CreatedAt:  time.Now().UTC(),
	}

	if err := os.Rename(current, batchDir); err != nil {
		return nil, fmt.Errorf("archive current collection: %w", err)
	}
	if err := os.Rename(staging, current); err != nil {
		return nil, fmt.Errorf("reinitialize current collection: %w", err)
	}

	if err := r.tagger.Tag(ctx, batch, batchDir); err != nil {
		return nil, fmt.Errorf("tag %s: %w", batch.Tag, err)
	}

	r.log.Info("rotated current collection into batch",
		zap.String("tag", batch.Tag),
		zap.Int("archived", batch.ImageCount),
		zap.Int("carried_over", len(overflow)))

	return batch, nil
}

// recover finishes a rotation interrupted between its renames so that
// observers never see images missing from current without the matching
// archive existing.
func (r *Rotator) recover() error {
	staging := r.stagingDir()
	current := r.CurrentDir()

	if _, err := os.Stat(staging); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if _, err := os.Stat(current); os.IsNotExist(err) {
		// Crashed after archiving current, before promoting staging.
		r.log.Warn("recovering interrupted rotation: promoting staged collection")
		return os.Rename(staging, current)
	}

	// Crashed before the archive rename: the staged overflow belongs
	// back in current.
	r.log.Warn("recovering interrupted rotation: merging staged files back")
	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == ManifestName {
			continue
		}
		src := filepath.Join(staging, entry.Name())
		dst := filepath.Join(current, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			return err
		}
	}

	stagedRows, err := ReadManifest(staging)
	if err != nil {
		return err
	}
	if len(stagedRows) > 0 {
		currentRows, err := ReadManifest(current)
		if err != nil {
			return err
		}
		if err := WriteManifest(current, append(currentRows, stagedRows...)); err != nil {
			return err
		}
	}

	return os.RemoveAll(staging)
}

// repairTags writes a tag for any batch directory missing one, which
// covers a crash between the batch rename and the tag write.
func (r *Rotator) repairTags() error {
	entries, err := os.ReadDir(r.batchesDir())
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		number, ok := parseBatchNumber(entry.Name())
		if !ok {
			continue
		}
		tagPath := filepath.Join(r.batchesDir(), entry.Name()+".tag")
		if _, err := os.Stat(tagPath); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return err
		}

		batchDir := filepath.Join(r.batchesDir(), entry.Name())
		images, err := listImages(batchDir)
		if err != nil {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}

		r.log.Warn("repairing missing batch tag", zap.String("batch", entry.Name()))
		batch := &models.Batch{
			ID:         uuid.New(),
			Number:     number,
			Tag:        entry.Name(),
			ImageCount: len(images),
			CreatedAt:  info.ModTime().UTC(),
		}
		if err := r.tagger.Tag(context.Background(), batch, batchDir); err != nil {
			return err
		}
	}
	return nil
}

// splitByAge orders image filenames oldest first and cuts at limit.
// Manifest row order is the append order; images with no manifest row
// are treated as oldest. Returns (archived, overflow).
func splitByAge(images []string, rows []ManifestRow, limit int) ([]string, []string) {
	present := make(map[string]bool, len(images))
	for _, name := range images {
		present[name] = true
	}

	referenced := make(map[string]bool, len(rows))
	ordered := make([]string, 0, len(images))

	var unknown []string
	for _, name := range images {
		unknown = append(unknown, name)
	}
	sort.Strings(unknown)

	for _, row := range rows {
		referenced[row.VideoID+".jpg"] = true
	}

	added := make(map[string]bool, len(images))
	for _, name := range unknown {
		if !referenced[name] {
			ordered = append(ordered, name)
			added[name] = true
		}
	}
	for _, row := range rows {
		name := row.VideoID + ".jpg"
		if present[name] && !added[name] {
			ordered = append(ordered, name)
			added[name] = true
		}
	}

	if limit >= len(ordered) {
		return ordered, nil
	}
	return ordered[:limit], ordered[limit:]
}

func parseBatchNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, batchPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, batchPrefix))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".jpg", ".jpeg", ".png", ".webp":
			images = append(images, name)
		}
	}
	return images, nil
}
