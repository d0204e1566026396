package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// HTTPConfig defines the API listener.
type HTTPConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	MaxUploadMB     int
}

// IntakeConfig defines validation and batch behavior.
type IntakeConfig struct {
	ExpectedType string
	MaxFileMB    int
	Parser       string // "pdfcpu"|"fitz"
	Prefetch     int
	FeedSize     int
}

// MaxFileBytes returns the per-file limit in bytes; 0 disables it.
func (c IntakeConfig) MaxFileBytes() int64 {
	if c.MaxFileMB <= 0 {
		return 0
	}
	return int64(c.MaxFileMB) << 20
}

// EventsConfig defines the Redis pub/sub mirror.
type EventsConfig struct {
	Enabled             bool
	RedisURL            string
	SnapshotChannel     string
	NotificationChannel string
	SelectionChannel    string
}

// PreviewConfig defines thumbnail rendering.
type PreviewConfig struct {
	DPI     int
	Quality int
	Gray    bool
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	HTTP    HTTPConfig
	Intake  IntakeConfig
	Events  EventsConfig
	Preview PreviewConfig
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over the file.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return FromEnv()
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdfintake.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdfintake",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.HTTP = HTTPConfig{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
		MaxUploadMB:     parseInt(getEnv("HTTP_MAX_UPLOAD_MB", "256"), 256),
	}

	cfg.Intake = IntakeConfig{
		ExpectedType: getEnv("INTAKE_EXPECTED_TYPE", "application/pdf"),
		MaxFileMB:    parseInt(getEnv("INTAKE_MAX_FILE_MB", "64"), 64),
		Parser:       strings.ToLower(getEnv("INTAKE_PARSER", "pdfcpu")),
		Prefetch:     parseInt(getEnv("INTAKE_PREFETCH", "1"), 1),
		FeedSize:     parseInt(getEnv("NOTIFICATION_FEED_SIZE", "100"), 100),
	}

	cfg.Events = EventsConfig{
		Enabled:             parseBool(getEnv("EVENTS_ENABLED", "0")),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		SnapshotChannel:     getEnv("EVENTS_SNAPSHOT_CHANNEL", "pdfintake:snapshots"),
		NotificationChannel: getEnv("EVENTS_NOTIFICATION_CHANNEL", "pdfintake:notifications"),
		SelectionChannel:    getEnv("EVENTS_SELECTION_CHANNEL", "pdfintake:selections"),
	}

	cfg.Preview = PreviewConfig{
		DPI:     parseInt(getEnv("PREVIEW_DPI", "72"), 72),
		Quality: parseInt(getEnv("PREVIEW_QUALITY", "80"), 80),
		Gray:    parseBool(getEnv("PREVIEW_GRAY", "0")),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
