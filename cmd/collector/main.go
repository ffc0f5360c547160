package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/thumbset/youtube-thumbnail-collector-go/internal/collector"
	"github.com/thumbset/youtube-thumbnail-collector-go/internal/config"
	"github.com/thumbset/youtube-thumbnail-collector-go/internal/dataset"
	"github.com/thumbset/youtube-thumbnail-collector-go/internal/downloader"
	"github.com/thumbset/youtube-thumbnail-collector-go/internal/repository"
	"github.com/thumbset/youtube-thumbnail-collector-go/internal/service"
	"github.com/thumbset/youtube-thumbnail-collector-go/internal/youtube"
	"github.com/thumbset/youtube-thumbnail-collector-go/pkg/logger"
)

func main() {
	flags := pflag.NewFlagSet("collector", pflag.ExitOnError)
	flags.Int("days-ago", 7, "How many days back to search for videos")
	flags.Int("videos-per-category", 5, "How many videos to request per category")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Collector.APIKey == "" {
		logger.Log.Error("YOUTUBE_API_KEY environment variable is required")
		os.Exit(1)
	}

	// One run per invocation; the scheduler (cron, systemd timer) owns
	// the cadence. SIGINT/SIGTERM cancels the run cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Connect(ctx, cfg.Index.DSN(),
		cfg.Index.MaxConnections, cfg.Index.MinConnections,
		cfg.Index.MaxIdleTime, cfg.Index.MaxLifetime)
	if err != nil {
		logger.Log.Error("Failed to connect to index database", zap.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	index := repository.New(pool)
	if err := index.EnsureSchema(ctx); err != nil {
		logger.Log.Error("Failed to ensure index schema", zap.Error(err))
		os.Exit(1)
	}

	rotator, err := dataset.Open(cfg.Dataset.Root, cfg.Dataset.BatchLimit, nil, logger.Named("dataset"))
	if err != nil {
		logger.Log.Error("Failed to open dataset", zap.Error(err), zap.String("root", cfg.Dataset.Root))
		os.Exit(1)
	}

	client, err := youtube.NewClient(ctx, cfg.Collector.APIKey, logger.Named("youtube"))
	if err != nil {
		logger.Log.Error("Failed to create YouTube client", zap.Error(err))
		os.Exit(1)
	}

	downloads := downloader.New(
		cfg.Collector.DownloadTimeout,
		cfg.Collector.DownloadsPerSecond,
		logger.Named("downloader"),
	)

	var publisher collector.Publisher
	if cfg.Events.Enabled {
		eventPublisher, err := service.NewEventPublisher(&cfg.Events)
		if err != nil {
			logger.Log.Error("Failed to connect event publisher", zap.Error(err))
			os.Exit(1)
		}
		defer func() { _ = eventPublisher.Close() }()
		publisher = eventPublisher
	}

	svc := collector.New(collector.Deps{
		Fetcher:   client,
		Downloads: downloads,
		Index:     index,
		Rotator:   rotator,
		Publisher: publisher,
		Metrics:   service.NewMetrics(&cfg.Metrics),
		Params: youtube.SearchParams{
			DaysAgo:            cfg.Collector.DaysAgo,
			VideosPerCategory:  cfg.Collector.VideosPerCategory,
			Categories:         cfg.Collector.Categories,
			RegionCode:         cfg.Collector.RegionCode,
			VideoDuration:      cfg.Collector.VideoDuration,
			MinSubscribers:     cfg.Collector.MinSubscribers,
			MinViews:           cfg.Collector.MinViews,
			MinDurationSeconds: cfg.Collector.MinDurationSeconds,
		},
		Log: logger.Named("collector"),
	})

	if _, err := svc.Run(ctx); err != nil {
		os.Exit(1)
	}
}
