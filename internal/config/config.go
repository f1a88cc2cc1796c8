package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	PostgresURI string

	// GeoSphere Dataset API.
	BaseURL           string
	Dataset           string
	FetchTimeout      time.Duration
	FetchRetries      int
	StationChunkSize  int
	BackfillChunkDays int

	StationsCSV string

	// Builder output.
	SiteDir     string
	SummaryDays int

	// Daemon mode.
	HTTPAddr        string
	CollectInterval time.Duration
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string

	// Optional Kafka sink for newly upserted readings.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "120s")
	if err != nil {
		return nil, err
	}
	collectInterval, err := parseDuration("COLLECT_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	fetchRetries, err := parseInt("FETCH_RETRIES", 5)
	if err != nil {
		return nil, err
	}
	chunkSize, err := parseInt("STATION_CHUNK_SIZE", 200)
	if err != nil {
		return nil, err
	}
	backfillChunkDays, err := parseInt("BACKFILL_CHUNK_DAYS", 30)
	if err != nil {
		return nil, err
	}
	summaryDays, err := parseInt("SUMMARY_DAYS", 7)
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		PostgresURI: os.Getenv("PG_URI"),

		BaseURL:           envOrDefault("GEOSPHERE_BASE_URL", "https://dataset.api.hub.geosphere.at/v1"),
		Dataset:           envOrDefault("GEOSPHERE_DATASET", "klima-v2-10min"),
		FetchTimeout:      fetchTimeout,
		FetchRetries:      fetchRetries,
		StationChunkSize:  chunkSize,
		BackfillChunkDays: backfillChunkDays,

		StationsCSV: envOrDefault("STATIONS_CSV", "stations.csv"),

		SiteDir:     envOrDefault("SITE_DIR", "site"),
		SummaryDays: summaryDays,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		CollectInterval: collectInterval,
		ShutdownTimeout: shutdownTimeout,

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		KafkaBrokers: brokers,
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "weather-readings"),
		KafkaEnabled: kafkaEnabled,
	}

	if cfg.PostgresURI == "" {
		return nil, errors.New("PG_URI is required")
	}
	if cfg.SummaryDays <= 0 {
		return nil, errors.New("SUMMARY_DAYS must be positive")
	}
	if cfg.StationChunkSize <= 0 {
		return nil, errors.New("STATION_CHUNK_SIZE must be positive")
	}
	if cfg.FetchRetries < 0 {
		return nil, errors.New("FETCH_RETRIES must not be negative")
	}
	if cfg.BackfillChunkDays <= 0 {
		return nil, errors.New("BACKFILL_CHUNK_DAYS must be positive")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
