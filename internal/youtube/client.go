// Package youtube wraps the YouTube Data API v3 for the collection job:
// category-spread search within a recency window, metadata hydration and
// quota accounting.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"github.com/thumbset/youtube-thumbnail-collector-go/internal/models"
)

// Upstream failure conditions. Either aborts the run before any dataset
// mutation happens.
var (
	// ErrRateLimited indicates the API rejected the request due to
	// quota exhaustion or rate limiting.
	ErrRateLimited = errors.New("youtube: rate limited")
	// ErrUnavailable indicates the API or the network failed.
	ErrUnavailable = errors.New("youtube: upstream unavailable")
)

// Quota costs per YouTube Data API v3 method.
const (
	searchListCost   = 100
	videosListCost   = 1
	channelsListCost = 1

	maxIDsPerList = 50
)

// CategoryNames maps the platform's topic category IDs to their
// human-readable names, recorded alongside each video.
var CategoryNames = map[string]string{
	"1":  "Film & Animation",
	"2":  "Autos & Vehicles",
	"10": "Music",
	"15": "Pets & Animals",
	"17": "Sports",
	"20": "Gaming",
	"22": "People & Blogs",
	"23": "Comedy",
	"24": "Entertainment",
	"25": "News & Politics",
	"26": "Howto & Style",
	"27": "Education",
	"28": "Science & Technology",
}

// SearchParams bounds a single fetch batch.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type SearchParams struct {
	DaysAgo            int
	VideosPerCategory  int
	Categories         []string
	RegionCode         string
	VideoDuration      string
	MinSubscribers     int64
	MinViews           int64
	MinDurationSeconds int
}

// Client wraps the YouTube Data API v3 client.
type Client struct {
	service   *youtubeapi.Service
	log       *zap.Logger
	quotaUsed int
}

// NewClient creates a new YouTube API client. Extra options are passed
// through to the underlying service, which lets tests point the client
// at a fake endpoint.
func NewClient(ctx context.Context, apiKey string, log *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("YouTube API key is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	allOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtubeapi.NewService(ctx, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return &Client{service: service, log: log}, nil
}

// QuotaUsed reports the total quota units spent by this client.
func (c *Client) QuotaUsed() int {
	return c.quotaUsed
}

// FetchBatch retrieves up to VideosPerCategory recent videos per topic
// category, hydrates their statistics and channel data, and applies the
// client-side filters. An upstream failure aborts the whole batch with
// ErrRateLimited or ErrUnavailable so the run mutates nothing.
func (c *Client) FetchBatch(ctx context.Context, params SearchParams) ([]models.Video, error) {
	publishedAfter := time.Now().UTC().AddDate(0, 0, -params.DaysAgo).Format(time.RFC3339)

	var videoIDs []string
	seen := make(map[string]bool)

	for _, category := range params.Categories {
		ids, err := c.searchCategory(ctx, category, publishedAfter, params)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				videoIDs = append(videoIDs, id)
			}
		}
	}

	if len(videoIDs) == 0 {
		return nil, nil
	}

	videos, err := c.hydrateVideos(ctx, videoIDs)
	if err != nil {
		return nil, err
	}

	if err := c.hydrateChannels(ctx, videos); err != nil {
		return nil, err
	}

	filtered := filterVideos(videos, params)
	c.log.Info("fetched video batch",
		zap.Int("candidates", len(videoIDs)),
		zap.Int("hydrated", len(videos)),
		zap.Int("after_filters", len(filtered)),
		zap.Int("quota_used", c.quotaUsed),
	)

	return filtered, nil
}

// searchCategory runs one search.list call for a category.
func (c *Client) searchCategory(ctx context.Context, category, publishedAfter string, params SearchParams) ([]string, error) {
	call := c.service.Search.List([]string{"id"}).
		Type("video").
		VideoCategoryId(category).
		PublishedAfter(publishedAfter).
		Order("date").
		MaxResults(int64(params.VideosPerCategory)).
		Context(ctx)

	if params.RegionCode != "" {
		call = call.RegionCode(params.RegionCode)
	}
	if params.VideoDuration != "" {
		call = call.VideoDuration(params.VideoDuration)
	}

	response, err := call.Do()
	c.quotaUsed += searchListCost
	if err != nil {
		return nil, classifyAPIError("search videos", err)
	}

	ids := make([]string, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	return ids, nil
}

// hydrateVideos fills snippet, statistics and content details for the
// found IDs, batching at the API's 50-ID limit.
func (c *Client) hydrateVideos(ctx context.Context, videoIDs []string) ([]models.Video, error) {
	capturedAt := time.Now().UTC()
	videos := make([]models.Video, 0, len(videoIDs))

	for _, chunk := range chunkIDs(videoIDs, maxIDsPerList) {
		call := c.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
			Id(chunk...).
			Context(ctx)

		response, err := call.Do()
		c.quotaUsed += videosListCost
		if err != nil {
			return nil, classifyAPIError("hydrate videos", err)
		}

		for _, item := range response.Items {
			videos = append(videos, mapVideo(item, capturedAt))
		}
	}

	return videos, nil
}

// hydrateChannels resolves subscriber and upload statistics for every
// distinct channel in the batch and writes them back onto the videos.
func (c *Client) hydrateChannels(ctx context.Context, videos []models.Video) error {
	channelIDs := make([]string, 0)
	seen := make(map[string]bool)
	for i := range videos {
		if id := videos[i].ChannelID; id != "" && !seen[id] {
			seen[id] = true
			channelIDs = append(channelIDs, id)
		}
	}
	if len(channelIDs) == 0 {
		return nil
	}

	type channelStats struct {
		subscribers int64
		totalViews  int64
		videoCount  int64
	}
	stats := make(map[string]channelStats, len(channelIDs))

	for _, chunk := range chunkIDs(channelIDs, maxIDsPerList) {
		call := c.service.Channels.List([]string{"statistics"}).
			Id(chunk...).
			Context(ctx)

		response, err := call.Do()
		c.quotaUsed += channelsListCost
		if err != nil {
			return classifyAPIError("hydrate channels", err)
		}

		for _, item := range response.Items {
			if item.Statistics == nil {
				continue
			}
			stats[item.Id] = channelStats{
				subscribers: int64(item.Statistics.SubscriberCount),
				totalViews:  int64(item.Statistics.ViewCount),
				videoCount:  int64(item.Statistics.VideoCount),
			}
		}
	}

	for i := range videos {
		if s, ok := stats[videos[i].ChannelID]; ok {
			videos[i].ChannelSubscribers = s.subscribers
			videos[i].ChannelTotalViews = s.totalViews
			videos[i].ChannelVideoCount = s.videoCount
		}
	}
	return nil
}

// mapVideo converts a YouTube API video resource to our model.
func mapVideo(item *youtubeapi.Video, capturedAt time.Time) models.Video {
	video := models.Video{
		VideoID:    item.Id,
		CapturedAt: capturedAt,
	}

	if item.Snippet != nil {
		video.Title = item.Snippet.Title
		video.CategoryID = item.Snippet.CategoryId
		video.CategoryName = CategoryNames[item.Snippet.CategoryId]
		video.ChannelID = item.Snippet.ChannelId
		video.ChannelTitle = item.Snippet.ChannelTitle
		video.DescriptionLength = len(item.Snippet.Description)
		video.Tags = item.Snippet.Tags

		video.Language = item.Snippet.DefaultAudioLanguage
		if video.Language == "" {
			video.Language = item.Snippet.DefaultLanguage
		}

		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			video.PublishedAt = t
		}

		// Prefer the highest-resolution thumbnail the platform offers.
		if item.Snippet.Thumbnails != nil {
			switch {
			case item.Snippet.Thumbnails.Maxres != nil:
				video.ThumbnailURL = item.Snippet.Thumbnails.Maxres.Url
			case item.Snippet.Thumbnails.High != nil:
				video.ThumbnailURL = item.Snippet.Thumbnails.High.Url
			case item.Snippet.Thumbnails.Medium != nil:
				video.ThumbnailURL = item.Snippet.Thumbnails.Medium.Url
			case item.Snippet.Thumbnails.Default != nil:
				video.ThumbnailURL = item.Snippet.Thumbnails.Default.Url
			}
		}
	}

	if item.Statistics != nil {
		video.Views = int64(item.Statistics.ViewCount)
		video.Likes = int64(item.Statistics.LikeCount)
		video.Comments = int64(item.Statistics.CommentCount)
	}

	if item.ContentDetails != nil {
		video.Definition = item.ContentDetails.Definition
		if seconds, err := ParseVideoDuration(item.ContentDetails.Duration); err == nil {
			video.DurationSeconds = seconds
		}
	}

	return video
}

// filterVideos applies the client-side thresholds. A record without a
// thumbnail URL is useless to the dataset and is dropped here too.
func filterVideos(videos []models.Video, params SearchParams) []models.Video {
	filtered := make([]models.Video, 0, len(videos))
	for _, v := range videos {
		if v.ThumbnailURL == "" {
			continue
		}
		if v.ChannelSubscribers < params.MinSubscribers {
			continue
		}
		if v.Views < params.MinViews {
			continue
		}
		if v.DurationSeconds < params.MinDurationSeconds {
			continue
		}
		filtered = append(filtered, v)
	}
	return filtered
}

// classifyAPIError maps API failures onto the run-level taxonomy.
func classifyAPIError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 {
			return fmt.Errorf("%s: %w: %v", op, ErrRateLimited, err)
		}
		if apiErr.Code == 403 {
			for _, e := range apiErr.Errors {
				switch e.Reason {
				case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
					return fmt.Errorf("%s: %w: %v", op, ErrRateLimited, err)
				}
			}
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// chunkIDs splits ids into slices of at most size entries.
func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = maxIDsPerList
	}
	var chunks [][]string
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[i:end])
	}
	return chunks
}

// ParseVideoDuration converts ISO 8601 duration to seconds.
// Example: "PT4M13S" -> 253 seconds
func ParseVideoDuration(duration string) (int, error) {
	if !strings.HasPrefix(duration, "PT") {
		return 0, fmt.Errorf("invalid duration format: %s", duration)
	}

	duration = strings.TrimPrefix(duration, "PT")

	var hours, minutes, seconds int

	if hIdx := strings.Index(duration, "H"); hIdx != -1 {
		h, err := strconv.Atoi(duration[:hIdx])
		if err != nil {
			return 0, err
		}
		hours = h
		duration = duration[hIdx+1:]
	}

	if mIdx := strings.Index(duration, "M"); mIdx != -1 {
		m, err := strconv.Atoi(duration[:mIdx])
		if err != nil {
			return 0, err
		}
		minutes = m
		duration = duration[mIdx+1:]
	}

	if sIdx := strings.Index(duration, "S"); sIdx != -1 {
		s, err := strconv.Atoi(duration[:sIdx])
		if err != nil {
			return 0, err
		}
		seconds = s
	}

	return hours*3600 + minutes*60 + seconds, nil
}
