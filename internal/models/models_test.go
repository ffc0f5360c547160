package models

import (
	"testing"
)

func TestViralRatio(t *testing.T) {
	tests := []struct {
		name  string
		video Video
		want  float64
	}{
		{
			name:  "typical ratio",
			video: Video{Views: 1000, ChannelSubscribers: 50000},
			want:  0.02,
		},
		{
			name:  "zero subscribers counts as one",
			video: Video{Views: 42, ChannelSubscribers: 0},
			want:  42,
		},
		{
			name:  "viral video exceeds subscriber count",
			video: Video{Views: 200000, ChannelSubscribers: 10000},
			want:  20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.video.ViralRatio(); got != tt.want {
				t.Errorf("ViralRatio() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsClickbait(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  bool
	}{
		{"plain title", "A quiet walk through Kyoto", false},
		{"exclamation mark", "You won't believe this!", true},
		{"question mark", "Is this the best camera of 2026?", true},
		{"mostly caps", "INSANE NEW GAMING SETUP tour", true},
		{"empty title", "", false},
		{"caps below threshold", "NASA launches new probe", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Video{Title: tt.title}
			if got := v.IsClickbait(); got != tt.want {
				t.Errorf("IsClickbait(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestBatchTag(t *testing.T) {
	tests := []struct {
		number int
		want   string
	}{
		{1, "batch_001"},
		{42, "batch_042"},
		{137, "batch_137"},
		{1000, "batch_1000"},
	}

	for _, tt := range tests {
		if got := BatchTag(tt.number); got != tt.want {
			t.Errorf("BatchTag(%d) = %q, want %q", tt.number, got, tt.want)
		}
	}
}

func TestThumbnailFilename(t *testing.T) {
	v := Video{VideoID: "dQw4w9WgXcQ"}
	if got := v.ThumbnailFilename(); got != "dQw4w9WgXcQ.jpg" {
		t.Errorf("ThumbnailFilename() = %q, want %q", got, "dQw4w9WgXcQ.jpg")
	}
	if got := v.VideoURL(); got != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("VideoURL() = %q", got)
	}
}
