package server

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds the intake server configuration, loaded from environment
// variables.
type Config struct {
	ListenAddr string
	DataDir    string
	BaseURL    string // public URL for the QR code; empty = detect

	MaxUploadMB int // whole-request cap for POST /api/submit
	RatePerMin  int // submit requests per IP per minute
	RateBurst   int

	LogFormat string // "text" (default) or "json"
	LogLevel  string // "debug", "info" (default), "warn", "error"

	WebhookURL    string
	WebhookSecret string

	ShutdownTimeout time.Duration
}

// LoadConfig reads configuration from environment variables with defaults
// sized for a Pi on a field network.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:      ":8080",
		DataDir:         "./data",
		MaxUploadMB:     16,
		RatePerMin:      30,
		RateBurst:       10,
		LogFormat:       "text",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
	}

	if v := os.Getenv("FIELDPOST_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("FIELDPOST_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FIELDPOST_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("FIELDPOST_MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxUploadMB = n
		}
	}
	if v := os.Getenv("FIELDPOST_RATE_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RatePerMin = n
		}
	}
	if v := os.Getenv("FIELDPOST_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("FIELDPOST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FIELDPOST_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("FIELDPOST_WEBHOOK_SECRET"); v != "" {
		cfg.WebhookSecret = v
	}

	return cfg
}

// MaxUploadBytes returns the request size cap in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// UploadsDir returns where attachments are stored.
func (c Config) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}
