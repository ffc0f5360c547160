package service

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/thumbset/youtube-thumbnail-collector-go/internal/config"
	"github.com/thumbset/youtube-thumbnail-collector-go/internal/models"
)

// Metrics collects per-run counters and pushes them to a Prometheus
// Pushgateway when the run finishes. A short-lived job cannot be
// scraped, so push is the only way out.
type Metrics struct {
	registry *prometheus.Registry
	config   *config.MetricsConfig

	videosFetched    prometheus.Gauge
	videosDownloaded prometheus.Gauge
	videosSkipped    prometheus.Gauge
	downloadFailures prometheus.Gauge
	quotaUsed        prometheus.Gauge
	currentSize      prometheus.Gauge
	batchRotated     prometheus.Gauge
	latestBatch      prometheus.Gauge
	runDuration      prometheus.Gauge
	runSuccess       prometheus.Gauge
}

// NewMetrics builds the run's metric set on a private registry so the
// push carries only collector metrics, not Go runtime noise.
func NewMetrics(cfg *config.MetricsConfig) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		config:   cfg,
		videosFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_videos_fetched",
			Help: "Candidate videos returned by the platform API this run",
		}),
		videosDownloaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_videos_downloaded",
			Help: "Thumbnails downloaded into the current collection this run",
		}),
		videosSkipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_videos_skipped",
			Help: "Candidates skipped because they were already collected",
		}),
		downloadFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_download_failures",
			Help: "Thumbnail downloads that failed this run",
		}),
		quotaUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_api_quota_used",
			Help: "Platform API quota units spent this run",
		}),
		currentSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_current_collection_size",
			Help: "Images in the current collection after the run",
		}),
		batchRotated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_batch_rotated",
			Help: "1 when this run archived a batch, 0 otherwise",
		}),
		latestBatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_latest_batch_number",
			Help: "Number of the batch archived by this run, when one was",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_run_duration_seconds",
			Help: "Wall-clock duration of the collection run",
		}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_run_success",
			Help: "1 when the run completed, 0 when it failed",
		}),
	}

	m.registry.MustRegister(
		m.videosFetched,
		m.videosDownloaded,
		m.videosSkipped,
		m.downloadFailures,
		m.quotaUsed,
		m.currentSize,
		m.batchRotated,
		m.latestBatch,
		m.runDuration,
		m.runSuccess,
	)

	return m
}

// Record fills the metric set from a finished run's report.
func (m *Metrics) Record(report *models.RunReport) {
	m.videosFetched.Set(float64(report.Fetched))
	m.videosDownloaded.Set(float64(report.Downloaded))
	m.videosSkipped.Set(float64(report.AlreadyKnown + report.SkippedLocal))
	m.downloadFailures.Set(float64(report.FailedItems))
	m.quotaUsed.Set(float64(report.QuotaUsed))
	m.currentSize.Set(float64(report.CurrentSize))
	m.runDuration.Set(report.Duration.Seconds())

	if report.RotatedBatch != nil {
		m.batchRotated.Set(1)
		m.latestBatch.Set(float64(report.RotatedBatch.Number))
	}
	if report.Status == models.RunStatusCompleted {
		m.runSuccess.Set(1)
	}
}

// Push sends the metric set to the configured Pushgateway. With no
// gateway configured it is a no-op.
func (m *Metrics) Push() error {
	if m.config.PushgatewayURL == "" {
		return nil
	}

	if err := push.New(m.config.PushgatewayURL, m.config.JobName).
		Gatherer(m.registry).
		Push(); err != nil {
		return fmt.Errorf("push metrics to gateway: %w", err)
	}
	return nil
}
