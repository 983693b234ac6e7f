package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// MaxWorkers bounds WORKERS.
const MaxWorkers = 64

// Config holds process settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	MetricsTextfile string
	ShutdownTimeout time.Duration

	// Kafka notifications are disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	// Region-keyed (1-D) models.
	RegionCatalog   string
	RegionProperty  string
	RegionModels    string
	RegionCacheSize int

	Workers           int
	SamplingTolerance float64
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first if
// present; it never overrides variables already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("REGION_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("WORKERS", 1)
	if err != nil {
		return nil, err
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("invalid WORKERS: must be at most %d", MaxWorkers)
	}

	tolerance, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("SAMPLING_TOLERANCE", "0.01"), 64)
	if err != nil || tolerance < 0 || tolerance >= 1 {
		return nil, errors.New("invalid SAMPLING_TOLERANCE: must be in [0, 1)")
	}

	cfg := &Config{
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "derived-records"),

		RegionCatalog:   os.Getenv("REGION_CATALOG"),
		RegionProperty:  sharedcfg.EnvOrDefault("REGION_PROPERTY", "name"),
		RegionModels:    os.Getenv("REGION_MODELS"),
		RegionCacheSize: cacheSize,

		Workers:           workers,
		SamplingTolerance: tolerance,
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if (cfg.RegionCatalog == "") != (cfg.RegionModels == "") {
		return nil, errors.New("REGION_CATALOG and REGION_MODELS must be set together")
	}

	return cfg, nil
}

// NotificationsEnabled reports whether Kafka brokers are configured.
func (c *Config) NotificationsEnabled() bool { return len(c.KafkaBrokers) > 0 }

// RegionModelsEnabled reports whether 1-D region models are configured.
func (c *Config) RegionModelsEnabled() bool { return c.RegionCatalog != "" }

func parseBrokers(raw string) []string {
	if raw == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(raw)
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", name)
	}
	return n, nil
}
