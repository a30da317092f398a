package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all client settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	LogFile         string
	ShutdownTimeout time.Duration

	// Prediction endpoint configuration.
	PredictBaseURL   string
	PredictTimeout   time.Duration // 0 means no client-side timeout
	PredictCacheSize int           // 0 disables the prediction cache
	HazardTableFile  string

	// Optional result event publishing; disabled when KafkaBrokers is empty.
	KafkaBrokers     []string
	KafkaResultTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	baseURL, err := parseBaseURL(sharedcfg.EnvOrDefault("PREDICT_BASE_URL", "http://localhost:5000"))
	if err != nil {
		return nil, err
	}

	predictTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("PREDICT_TIMEOUT", "0s"))
	if err != nil || predictTimeout < 0 {
		return nil, errors.New("invalid PREDICT_TIMEOUT")
	}

	cacheSize, err := parseCacheSize()
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); strings.TrimSpace(v) != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		LogFile:         os.Getenv("LOG_FILE"),
		ShutdownTimeout: shutdownTimeout,

		PredictBaseURL:   baseURL,
		PredictTimeout:   predictTimeout,
		PredictCacheSize: cacheSize,
		HazardTableFile:  os.Getenv("HAZARD_TABLE_FILE"),

		KafkaBrokers:     brokers,
		KafkaResultTopic: sharedcfg.EnvOrDefault("KAFKA_RESULT_TOPIC", "hazard-predictions"),
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, errors.New("LOG_FORMAT must be json or text")
	}
	if cfg.PublishEnabled() && cfg.KafkaResultTopic == "" {
		return nil, errors.New("KAFKA_RESULT_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// PublishEnabled reports whether prediction events go to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid PREDICT_BASE_URL %q", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func parseCacheSize() (int, error) {
	s := os.Getenv("PREDICT_CACHE_SIZE")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid PREDICT_CACHE_SIZE")
	}
	return n, nil
}
