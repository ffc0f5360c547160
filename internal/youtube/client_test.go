package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// fakeAPI serves canned YouTube Data API responses.
type fakeAPI struct {
	searchStatus int
	searchBody   string
	videosBody   string
	channelsBody string
	searchCalls  int
}

func (f *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "search"):
			f.searchCalls++
			if f.searchStatus != 0 {
				w.WriteHeader(f.searchStatus)
				fmt.Fprint(w, f.searchBody)
				return
			}
			fmt.Fprint(w, f.searchBody)
		case strings.Contains(r.URL.Path, "videos"):
			fmt.Fprint(w, f.videosBody)
		case strings.Contains(r.URL.Path, "channels"):
			fmt.Fprint(w, f.channelsBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), "test-api-key", zap.NewNop(),
		option.WithEndpoint(server.URL))
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", zap.NewNop())
	assert.Error(t, err)
}

func TestFetchBatch(t *testing.T) {
	api := &fakeAPI{
		searchBody: `{"items":[{"id":{"videoId":"vid1"}},{"id":{"videoId":"vid2"}}]}`,
		videosBody: `{"items":[
			{
				"id": "vid1",
				"snippet": {
					"title": "Test Video 1",
					"categoryId": "20",
					"publishedAt": "2026-08-20T10:00:00Z",
					"channelId": "chan1",
					"channelTitle": "Test Channel",
					"description": "A test description",
					"tags": ["gaming", "test"],
					"defaultAudioLanguage": "en",
					"thumbnails": {"high": {"url": "http://example.com/vid1.jpg"}}
				},
				"contentDetails": {"duration": "PT4M13S", "definition": "hd"},
				"statistics": {"viewCount": "1000", "likeCount": "100", "commentCount": "10"}
			},
			{
				"id": "vid2",
				"snippet": {
					"title": "Low View Video",
					"categoryId": "20",
					"publishedAt": "2026-08-21T10:00:00Z",
					"channelId": "chan1",
					"channelTitle": "Test Channel",
					"thumbnails": {"high": {"url": "http://example.com/vid2.jpg"}}
				},
				"contentDetails": {"duration": "PT3M", "definition": "hd"},
				"statistics": {"viewCount": "5", "likeCount": "0", "commentCount": "0"}
			}
		]}`,
		channelsBody: `{"items":[
			{"id": "chan1", "statistics": {"subscriberCount": "50000", "viewCount": "900000", "videoCount": "45"}}
		]}`,
	}

	client := newTestClient(t, api)

	videos, err := client.FetchBatch(context.Background(), SearchParams{
		DaysAgo:            7,
		VideosPerCategory:  5,
		Categories:         []string{"20"},
		RegionCode:         "US",
		VideoDuration:      "medium",
		MinSubscribers:     10000,
		MinViews:           100,
		MinDurationSeconds: 60,
	})
	require.NoError(t, err)

	// vid2 is filtered out by min views.
	require.Len(t, videos, 1)
	v := videos[0]
	assert.Equal(t, "vid1", v.VideoID)
	assert.Equal(t, "Test Video 1", v.Title)
	assert.Equal(t, "Gaming", v.CategoryName)
	assert.Equal(t, int64(1000), v.Views)
	assert.Equal(t, int64(100), v.Likes)
	assert.Equal(t, int64(50000), v.ChannelSubscribers)
	assert.Equal(t, int64(900000), v.ChannelTotalViews)
	assert.Equal(t, int64(45), v.ChannelVideoCount)
	assert.Equal(t, 253, v.DurationSeconds)
	assert.Equal(t, "hd", v.Definition)
	assert.Equal(t, "en", v.Language)
	assert.Equal(t, "http://example.com/vid1.jpg", v.ThumbnailURL)
	assert.Equal(t, len("A test description"), v.DescriptionLength)
	assert.False(t, v.CapturedAt.IsZero())

	// search(100) + videos(1) + channels(1)
	assert.Equal(t, 102, client.QuotaUsed())
}

func TestFetchBatchSearchesEveryCategory(t *testing.T) {
	api := &fakeAPI{searchBody: `{"items":[]}`}
	client := newTestClient(t, api)

	videos, err := client.FetchBatch(context.Background(), SearchParams{
		DaysAgo:           7,
		VideosPerCategory: 2,
		Categories:        []string{"10", "20", "24"},
	})
	require.NoError(t, err)
	assert.Empty(t, videos)
	assert.Equal(t, 3, api.searchCalls)
	assert.Equal(t, 3*searchListCost, client.QuotaUsed())
}

func TestFetchBatchClassifiesQuotaErrors(t *testing.T) {
	api := &fakeAPI{
		searchStatus: http.StatusForbidden,
		searchBody:   `{"error":{"code":403,"message":"quota exceeded","errors":[{"reason":"quotaExceeded","message":"quota exceeded"}]}}`,
	}
	client := newTestClient(t, api)

	_, err := client.FetchBatch(context.Background(), SearchParams{
		DaysAgo:           7,
		VideosPerCategory: 5,
		Categories:        []string{"20"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited), "expected ErrRateLimited, got %v", err)
}

func TestFetchBatchClassifiesServerErrors(t *testing.T) {
	api := &fakeAPI{
		searchStatus: http.StatusInternalServerError,
		searchBody:   `{"error":{"code":500,"message":"backend error","errors":[{"reason":"backendError","message":"backend error"}]}}`,
	}
	client := newTestClient(t, api)

	_, err := client.FetchBatch(context.Background(), SearchParams{
		DaysAgo:           7,
		VideosPerCategory: 5,
		Categories:        []string{"20"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable), "expected ErrUnavailable, got %v", err)
}

func TestParseVideoDuration(t *testing.T) {
	tests := []struct {
		duration string
		want     int
		wantErr  bool
	}{
		{"PT4M13S", 253, false},
		{"PT1H2M3S", 3723, false},
		{"PT45S", 45, false},
		{"PT10M", 600, false},
		{"P1D", 0, true},
		{"4M13S", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.duration, func(t *testing.T) {
			got, err := ParseVideoDuration(tt.duration)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVideoDuration(%q) error = %v, wantErr %v", tt.duration, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseVideoDuration(%q) = %d, want %d", tt.duration, got, tt.want)
			}
		})
	}
}

func TestChunkIDs(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	chunks := chunkIDs(ids, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"a", "b"}, chunks[0])
	assert.Equal(t, []string{"e"}, chunks[2])

	assert.Nil(t, chunkIDs(nil, 2))
}
