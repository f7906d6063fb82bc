// Package config centralizes how compressdash reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration for the dashboard, the artifact
// sinks and the mock job service.
type Config struct {
	APIURL         string
	PollInterval   time.Duration
	ItemsPerPage   int
	RequestTimeout time.Duration
	EscalateAfter  int
	EventsURL      string
	DownloadDir    string
	LogLevel       slog.Level

	S3 S3Config

	MockAddress    string
	MockWorkers    int
	MockDelay      time.Duration
	MaxUploadBytes int64
}

// S3Config holds the optional object storage target for downloaded artifacts.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

// Enabled reports whether enough settings are present to build an S3 sink.
func (s S3Config) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

const (
	defaultAPIURL         = "http://localhost:8080"
	defaultPollInterval   = 5 * time.Second
	defaultItemsPerPage   = 5
	defaultRequestTimeout = 15 * time.Second
	defaultEscalateAfter  = 3
	defaultDownloadDir    = "."
	defaultMockAddress    = ":8080"
	defaultMockWorkers    = 2
	defaultMockDelay      = 2 * time.Second
	defaultMaxUploadBytes = 25 << 20 // 25 MiB
)

// Load reads configuration from environment variables falling back to defaults.
// Invalid values are ignored rather than reported.
func Load() (*Config, error) {
	cfg := &Config{
		APIURL:         strings.TrimRight(readEnv("COMPRESSDASH_API_URL", defaultAPIURL), "/"),
		PollInterval:   parseDuration("COMPRESSDASH_POLL_INTERVAL", defaultPollInterval),
		ItemsPerPage:   parseInt("COMPRESSDASH_ITEMS_PER_PAGE", defaultItemsPerPage),
		RequestTimeout: parseDuration("COMPRESSDASH_REQUEST_TIMEOUT", defaultRequestTimeout),
		EscalateAfter:  parseInt("COMPRESSDASH_ESCALATE_AFTER", defaultEscalateAfter),
		EventsURL:      readEnv("COMPRESSDASH_EVENTS_URL", ""),
		DownloadDir:    readEnv("COMPRESSDASH_DOWNLOAD_DIR", defaultDownloadDir),
		LogLevel:       parseLevel("COMPRESSDASH_LOG_LEVEL", slog.LevelInfo),
		S3: S3Config{
			Endpoint:  readEnv("COMPRESSDASH_S3_ENDPOINT", ""),
			AccessKey: readEnv("COMPRESSDASH_S3_ACCESS_KEY", ""),
			SecretKey: readEnv("COMPRESSDASH_S3_SECRET_KEY", ""),
			Bucket:    readEnv("COMPRESSDASH_S3_BUCKET", ""),
			Region:    readEnv("COMPRESSDASH_S3_REGION", ""),
			Prefix:    readEnv("COMPRESSDASH_S3_PREFIX", ""),
			UseSSL:    parseBool("COMPRESSDASH_S3_USE_SSL", false),
		},
		MockAddress:    readEnv("COMPRESSDASH_MOCK_ADDR", defaultMockAddress),
		MockWorkers:    parseInt("COMPRESSDASH_MOCK_WORKERS", defaultMockWorkers),
		MockDelay:      parseDuration("COMPRESSDASH_MOCK_DELAY", defaultMockDelay),
		MaxUploadBytes: parseInt64("COMPRESSDASH_MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
	}
	cfg.normalize()
	return cfg, nil
}

// normalize replaces out-of-range values with defaults. Flag overrides call
// it again after they are applied.
func (c *Config) normalize() {
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.ItemsPerPage <= 0 {
		c.ItemsPerPage = defaultItemsPerPage
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.EscalateAfter < 0 {
		c.EscalateAfter = 0
	}
	if c.DownloadDir == "" {
		c.DownloadDir = defaultDownloadDir
	}
	if c.MockWorkers <= 0 {
		c.MockWorkers = defaultMockWorkers
	}
	if c.MockDelay < 0 {
		c.MockDelay = 0
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
}

// Normalize is exported for callers that mutate a loaded Config.
func (c *Config) Normalize() { c.normalize() }

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	// time.ParseDuration understands inputs like "5s" or "1m30s".
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseLevel(key string, def slog.Level) slog.Level {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(v)); err == nil {
			return lvl
		}
	}
	return def
}
