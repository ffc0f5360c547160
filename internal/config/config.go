// Package config provides configuration management for the collector.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the collection job.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Collector CollectorConfig
	Dataset   DatasetConfig
	Index     IndexConfig
	Events    EventsConfig
	Metrics   MetricsConfig
	Logging   LoggingConfig
}

// CollectorConfig controls what the run fetches from the video platform.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type CollectorConfig struct {
	APIKey             string
	DaysAgo            int
	VideosPerCategory  int
	Categories         []string
	RegionCode         string
	VideoDuration      string
	MinSubscribers     int64
	MinViews           int64
	MinDurationSeconds int
	DownloadTimeout    time.Duration
	DownloadsPerSecond float64
}

// DatasetConfig describes the on-disk dataset layout.
type DatasetConfig struct {
	Root       string
	BatchLimit int
}

// IndexConfig contains connection settings for the Postgres video index.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type IndexConfig struct {
	Host           string
	Name           string
	User           string
	Password       string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// DSN renders the index configuration as a pgx connection string.
func (c IndexConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// EventsConfig contains RabbitMQ connection and exchange configuration
// for run/rotation notifications. Disabled runs skip publishing entirely.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type EventsConfig struct {
	Enabled    bool
	Host       string
	User       string
	Password   string
	Exchange   string
	Queue      string
	RoutingKey string
	Port       int
}

// MetricsConfig points at a Prometheus Pushgateway. Empty URL disables
// the push.
type MetricsConfig struct {
	PushgatewayURL string
	JobName        string
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file, environment variables and, when
// provided, a bound flag set (for the CLI overrides).
func Load(flags *pflag.FlagSet) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	// The API key always comes from the environment, never from file.
	_ = viper.BindEnv("collector.apikey", "YOUTUBE_API_KEY")

	if flags != nil {
		if err := bindFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindFlags wires the daily-run CLI overrides into viper. Only flags
// that were actually set take precedence over file and env values.
func bindFlags(flags *pflag.FlagSet) error {
	if f := flags.Lookup("days-ago"); f != nil && f.Changed {
		if err := viper.BindPFlag("collector.daysago", f); err != nil {
			return err
		}
	}
	if f := flags.Lookup("videos-per-category"); f != nil && f.Changed {
		if err := viper.BindPFlag("collector.videospercategory", f); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults() {
	// Collector. Category IDs follow the platform's topic taxonomy:
	// Film, Autos, Music, Pets, Sports, Gaming, People, Comedy,
	// Entertainment, News, Howto, Education, Science & Tech.
	viper.SetDefault("collector.daysago", 7)
	viper.SetDefault("collector.videospercategory", 5)
	viper.SetDefault("collector.categories", []string{
		"1", "2", "10", "15", "17", "20", "22", "23", "24", "25", "26", "27", "28",
	})
	viper.SetDefault("collector.regioncode", "US")
	viper.SetDefault("collector.videoduration", "medium")
	viper.SetDefault("collector.minsubscribers", 10000)
	viper.SetDefault("collector.minviews", 100)
	viper.SetDefault("collector.mindurationseconds", 60)
	viper.SetDefault("collector.downloadtimeout", 30*time.Second)
	viper.SetDefault("collector.downloadspersecond", 4.0)

	// Dataset
	viper.SetDefault("dataset.root", "./data")
	viper.SetDefault("dataset.batchlimit", 500)

	// Index
	viper.SetDefault("index.host", "localhost")
	viper.SetDefault("index.port", 5432)
	viper.SetDefault("index.name", "thumbset")
	viper.SetDefault("index.user", "postgres")
	viper.SetDefault("index.password", "postgres")
	viper.SetDefault("index.maxconnections", 4)
	viper.SetDefault("index.minconnections", 1)
	viper.SetDefault("index.maxidletime", 10*time.Minute)
	viper.SetDefault("index.maxlifetime", 1*time.Hour)

	// Events
	viper.SetDefault("events.enabled", false)
	viper.SetDefault("events.host", "localhost")
	viper.SetDefault("events.port", 5672)
	viper.SetDefault("events.user", "guest")
	viper.SetDefault("events.password", "guest")
	viper.SetDefault("events.exchange", "thumbset.dataset")
	viper.SetDefault("events.queue", "thumbset.dataset.runs")
	viper.SetDefault("events.routingkey", "dataset.run")

	// Metrics
	viper.SetDefault("metrics.pushgatewayurl", "")
	viper.SetDefault("metrics.jobname", "thumbnail_collector")

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
