package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // PULSE_DATABASE_URL (required)
	NATSURL     string // PULSE_NATS_URL (default "nats://127.0.0.1:4222")
	HTTPAddr    string // PULSE_HTTP_ADDR (default ":8080")
	LogLevel    string // PULSE_LOG_LEVEL (default "info")

	// Stream settings
	StreamName    string // PULSE_STREAM (default "PULSE_POSTS")
	ConsumerGroup string // PULSE_CONSUMER_GROUP (default "sentiment_workers")
	WorkerBatch   int    // PULSE_WORKER_BATCH (default 10)

	// Producer settings
	PostsPerMinute int    // PULSE_POSTS_PER_MINUTE (default 60)
	TemplateFile   string // PULSE_TEMPLATE_FILE (optional TOML template set)

	// Oracle settings
	OracleURL    string // PULSE_ORACLE_URL (empty = lexicon analyzer)
	OracleAPIKey string // PULSE_ORACLE_API_KEY
	OracleModel  string // PULSE_ORACLE_MODEL (default "llama-3.1-8b-instant")

	// Alert settings
	AlertThreshold     float64       // PULSE_ALERT_NEGATIVE_RATIO_THRESHOLD (default 2.0)
	AlertWindowMinutes int           // PULSE_ALERT_WINDOW_MINUTES (default 5)
	AlertMinPosts      int           // PULSE_ALERT_MIN_POSTS (default 10)
	AlertInterval      time.Duration // PULSE_ALERT_INTERVAL (default 60s)

	// Archive settings
	ArchiveInterval   time.Duration // PULSE_ARCHIVE_INTERVAL (default 0 = disabled)
	ArchiveS3Bucket   string        // PULSE_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // PULSE_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // PULSE_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Key      string        // PULSE_ARCHIVE_S3_KEY (default "pulse/posts.jsonl")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:       os.Getenv("PULSE_DATABASE_URL"),
		NATSURL:           envOrDefault("PULSE_NATS_URL", "nats://127.0.0.1:4222"),
		HTTPAddr:          envOrDefault("PULSE_HTTP_ADDR", ":8080"),
		LogLevel:          envOrDefault("PULSE_LOG_LEVEL", "info"),
		StreamName:        envOrDefault("PULSE_STREAM", "PULSE_POSTS"),
		ConsumerGroup:     envOrDefault("PULSE_CONSUMER_GROUP", "sentiment_workers"),
		TemplateFile:      os.Getenv("PULSE_TEMPLATE_FILE"),
		OracleURL:         os.Getenv("PULSE_ORACLE_URL"),
		OracleAPIKey:      os.Getenv("PULSE_ORACLE_API_KEY"),
		OracleModel:       envOrDefault("PULSE_ORACLE_MODEL", "llama-3.1-8b-instant"),
		ArchiveS3Bucket:   os.Getenv("PULSE_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("PULSE_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("PULSE_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Key:      envOrDefault("PULSE_ARCHIVE_S3_KEY", "pulse/posts.jsonl"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("PULSE_DATABASE_URL is required")
	}

	var err error
	if c.WorkerBatch, err = envInt("PULSE_WORKER_BATCH", 10); err != nil {
		return nil, err
	}
	if c.PostsPerMinute, err = envInt("PULSE_POSTS_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if c.AlertWindowMinutes, err = envInt("PULSE_ALERT_WINDOW_MINUTES", 5); err != nil {
		return nil, err
	}
	if c.AlertMinPosts, err = envInt("PULSE_ALERT_MIN_POSTS", 10); err != nil {
		return nil, err
	}
	if c.AlertThreshold, err = envFloat("PULSE_ALERT_NEGATIVE_RATIO_THRESHOLD", 2.0); err != nil {
		return nil, err
	}
	if c.AlertInterval, err = envDuration("PULSE_ALERT_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if c.ArchiveInterval, err = envDuration("PULSE_ARCHIVE_INTERVAL", 0); err != nil {
		return nil, err
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
