// Package models contains the data models shared across the thumbnail
// collection pipeline.
package models

import (
	"fmt"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Video is the metadata captured for a single candidate video. It is
// immutable once fetched from the API.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Video struct {
	VideoID            string    `json:"video_id"`
	Title              string    `json:"title"`
	CategoryID         string    `json:"category_id"`
	CategoryName       string    `json:"category_name"`
	ChannelID          string    `json:"channel_id"`
	ChannelTitle       string    `json:"channel_title"`
	Views              int64     `json:"views"`
	Likes              int64     `json:"likes"`
	Comments           int64     `json:"comments"`
	ChannelSubscribers int64     `json:"channel_subscribers"`
	ChannelTotalViews  int64     `json:"channel_total_views"`
	ChannelVideoCount  int64     `json:"channel_video_count"`
	Tags               []string  `json:"tags"`
	DescriptionLength  int       `json:"description_len"`
	DurationSeconds    int       `json:"duration_seconds"`
	Definition         string    `json:"definition"`
	Language           string    `json:"language"`
	PublishedAt        time.Time `json:"published_at"`
	CapturedAt         time.Time `json:"captured_at"`
	ThumbnailURL       string    `json:"thumbnail_url"`
}

// VideoURL returns the canonical watch URL for the video.
func (v *Video) VideoURL() string {
	return "https://www.youtube.com/watch?v=" + v.VideoID
}

// ThumbnailFilename returns the local filename the thumbnail is stored
// under inside a collection directory.
func (v *Video) ThumbnailFilename() string {
	return v.VideoID + ".jpg"
}

// ViralRatio is views relative to channel subscribers. A channel with
// zero reported subscribers counts as one to keep the ratio defined.
func (v *Video) ViralRatio() float64 {
	subs := v.ChannelSubscribers
	if subs < 1 {
		subs = 1
	}
	return float64(v.Views) / float64(subs)
}

// IsClickbait flags titles that lean on punctuation or shouting:
// an exclamation or question mark, or more than half the title in caps.
func (v *Video) IsClickbait() bool {
	var caps, letters int
	for _, r := range v.Title {
		if r == '!' || r == '?' {
			return true
		}
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				caps++
			}
		}
	}
	return letters > 0 && float64(caps)/float64(letters) > 0.5
}

// Batch is an immutable, sequentially numbered snapshot of a filled
// current collection. Created exactly once, never mutated afterwards.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Batch struct {
	ID         uuid.UUID `json:"id"`
	Number     int       `json:"number"`
	Tag        string    `json:"tag"`
	ImageCount int       `json:"image_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// BatchTag formats the canonical tag for a batch number, e.g. "batch_003".
func BatchTag(number int) string {
	return fmt.Sprintf("batch_%03d", number)
}

// RunStatus represents the terminal state of a collection run.
type RunStatus string

// RunStatus constants define the possible terminal states of a run.
const (
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// RunReport summarizes a single collection run. It is what gets logged,
// published to the event exchange and pushed as metrics.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RunReport struct {
	RunID        uuid.UUID     `json:"run_id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Status       RunStatus     `json:"status"`
	Fetched      int           `json:"fetched"`
	AlreadyKnown int           `json:"already_known"`
	Downloaded   int           `json:"downloaded"`
	SkippedLocal int           `json:"skipped_local"`
	FailedItems  int           `json:"failed_items"`
	QuotaUsed    int           `json:"quota_used"`
	CurrentSize  int           `json:"current_size"`
	RotatedBatch *Batch        `json:"rotated_batch,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"`
}

// RunEvent is the message published to the event exchange after a run.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RunEvent struct {
	ID         uuid.UUID  `json:"id"`
	EventType  string     `json:"event_type"`
	RunID      uuid.UUID  `json:"run_id"`
	Report     *RunReport `json:"report"`
	Batch      *Batch     `json:"batch,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Event types carried by RunEvent.
const (
	EventTypeRunCompleted = "run.completed"
	EventTypeBatchRotated = "batch.rotated"
)
