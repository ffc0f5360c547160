// Package collector orchestrates a single collection run: fetch recent
// videos, dedup against the index, download thumbnails into the current
// collection and rotate it into an archived batch when full.
package collector

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thumbset/youtube-thumbnail-collector-go/internal/dataset"
	"github.com/thumbset/youtube-thumbnail-collector-go/internal/downloader"
	"github.com/thumbset/youtube-thumbnail-collector-go/internal/models"
	"github.com/thumbset/youtube-thumbnail-collector-go/internal/service"
	"github.com/thumbset/youtube-thumbnail-collector-go/internal/youtube"
)

// Fetcher retrieves candidate videos from the video platform.
type Fetcher interface {
	FetchBatch(ctx context.Context, params youtube.SearchParams) ([]models.Video, error)
	QuotaUsed() int
}

// ThumbnailFetcher bulk-downloads thumbnails into a directory.
type ThumbnailFetcher interface {
	Fetch(ctx context.Context, videos []models.Video, dir string) (downloader.Result, error)
}

// Index is the persistent record of everything ever collected.
type Index interface {
	FilterNew(ctx context.Context, candidates []models.Video) ([]models.Video, error)
	RecordVideos(ctx context.Context, videos []models.Video) error
	CreateBatch(ctx context.Context, batch *models.Batch) error
	AssignBatchTag(ctx context.Context, tag string, videoIDs []string) error
}

// Publisher announces run and rotation events. Optional.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, report *models.RunReport) error
	PublishBatchRotated(ctx context.Context, batch *models.Batch, report *models.RunReport) error
}

// Service wires one collection run together.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Service struct {
	fetcher   Fetcher
	downloads ThumbnailFetcher
	index     Index
	rotator   *dataset.Rotator
	publisher Publisher
	metrics   *service.Metrics
	params    youtube.SearchParams
	log       *zap.Logger
}

// Deps bundles the collaborators of a Service. Publisher and Metrics
// may be nil, which disables them.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Deps struct {
	Fetcher   Fetcher
	Downloads ThumbnailFetcher
	Index     Index
	Rotator   *dataset.Rotator
	Publisher Publisher
	Metrics   *service.Metrics
	Params    youtube.SearchParams
	Log       *zap.Logger
}

// New creates the run orchestrator.
func New(deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		fetcher:   deps.Fetcher,
		downloads: deps.Downloads,
		index:     deps.Index,
		rotator:   deps.Rotator,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		params:    deps.Params,
		log:       log,
	}
}

// Run executes one collection pass end to end and returns its report.
// An API or storage failure aborts before the dataset is mutated
// further; per-item download failures only reduce the yield.
func (s *Service) Run(ctx context.Context) (*models.RunReport, error) {
	report := &models.RunReport{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusCompleted,
	}

	s.log.Info("Starting collection run",
		zap.String("runId", report.RunID.String()),
		zap.Int("daysAgo", s.params.DaysAgo),
		zap.Int("videosPerCategory", s.params.VideosPerCategory),
		zap.Int("categories", len(s.params.Categories)),
	)

	err := s.run(ctx, report)
	report.QuotaUsed = s.fetcher.QuotaUsed()
	report.Duration = time.Since(report.StartedAt)

	if err != nil {
		report.Status = models.RunStatusFailed
		msg := err.Error()
		report.ErrorMessage = &msg
		s.log.Error("Collection run failed",
			zap.String("runId", report.RunID.String()),
			zap.Error(err),
		)
	} else {
		s.log.Info("Collection run completed",
			zap.String("runId", report.RunID.String()),
			zap.Int("fetched", report.Fetched),
			zap.Int("downloaded", report.Downloaded),
			zap.Int("failed", report.FailedItems),
			zap.Int("quotaUsed", report.QuotaUsed),
			zap.Int("currentSize", report.CurrentSize),
			zap.Duration("duration", report.Duration),
		)
	}

	s.finalize(ctx, report)
	return report, err
}

func (s *Service) run(ctx context.Context, report *models.RunReport) error {
	fetched, err := s.fetcher.FetchBatch(ctx, s.params)
	if err != nil {
		return err
	}
	report.Fetched = len(fetched)

	fresh, err := s.index.FilterNew(ctx, fetched)
	if err != nil {
		return err
	}
	report.AlreadyKnown = len(fetched) - len(fresh)

	if len(fresh) == 0 {
		s.log.Info("No new videos to collect",
			zap.Int("fetched", report.Fetched),
			zap.Int("alreadyKnown", report.AlreadyKnown),
		)
		return s.refreshSize(report)
	}

	result, err := s.downloads.Fetch(ctx, fresh, s.rotator.CurrentDir())
	if err != nil {
		return err
	}
	report.Downloaded = len(result.Downloaded)
	report.SkippedLocal = result.Skipped
	report.FailedItems = result.Failed

	if len(result.Downloaded) > 0 {
		next, err := s.rotator.NextBatchNumber()
		if err != nil {
			return err
		}
		if err := dataset.AppendManifest(s.rotator.CurrentDir(), result.Downloaded, models.BatchTag(next)); err != nil {
			return err
		}
		if err := s.index.RecordVideos(ctx, result.Downloaded); err != nil {
			return err
		}
	}

	if err := s.rotateWhileFull(ctx, report); err != nil {
		return err
	}

	return s.refreshSize(report)
}

// rotateWhileFull archives the current collection as long as it sits at
// or above the cap. A very large run can fill more than one batch.
func (s *Service) rotateWhileFull(ctx context.Context, report *models.RunReport) error {
	for {
		state, err := s.rotator.State()
		if err != nil {
			return err
		}
		if state != dataset.StateRotationNeeded {
			return nil
		}

		batch, err := s.rotator.Rotate(ctx)
		if err != nil {
			return err
		}
		report.RotatedBatch = batch

		if err := s.index.CreateBatch(ctx, batch); err != nil {
			return err
		}

		rows, err := dataset.ReadManifest(s.rotator.BatchDir(batch.Number))
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.VideoID)
		}
		if err := s.index.AssignBatchTag(ctx, batch.Tag, ids); err != nil {
			return err
		}

		s.log.Info("Rotated full collection into batch",
			zap.String("tag", batch.Tag),
			zap.Int("imageCount", batch.ImageCount),
		)

		if s.publisher != nil {
			if err := s.publisher.PublishBatchRotated(ctx, batch, report); err != nil {
				s.log.Warn("Failed to publish batch.rotated event", zap.Error(err))
			}
		}
	}
}

func (s *Service) refreshSize(report *models.RunReport) error {
	size, err := s.rotator.CurrentSize()
	if err != nil {
		return err
	}
	report.CurrentSize = size
	return nil
}

// finalize pushes metrics and the run event. Both are best-effort: a
// broken gateway or broker must not fail an otherwise good run.
func (s *Service) finalize(ctx context.Context, report *models.RunReport) {
	if s.metrics != nil {
		s.metrics.Record(report)
		if err := s.metrics.Push(); err != nil {
			s.log.Warn("Failed to push run metrics", zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRunCompleted(ctx, report); err != nil {
			s.log.Warn("Failed to publish run.completed event", zap.Error(err))
		}
	}
}
