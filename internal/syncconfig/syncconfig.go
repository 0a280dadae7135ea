// Package syncconfig stores the cloud sync settings as a JSON document in
// the data directory. Missing or unreadable files fall back to safe
// defaults with sync disabled; a submission collector must keep accepting
// data no matter what state its config is in.
package syncconfig

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const configFile = "sync.json"

// Config holds the sync settings for one data directory.
type Config struct {
	APIKey              string     `json:"api_key"`
	APISecret           string     `json:"api_secret"`
	BaseURL             string     `json:"base_url"`
	SyncEnabled         bool       `json:"sync_enabled"`
	AutoSync            bool       `json:"auto_sync"`
	SyncIntervalSeconds int        `json:"sync_interval_seconds"`
	LastSyncTime        *time.Time `json:"last_sync_time"`
}

// Default returns the safe starting config: sync disabled until the
// operator provides credentials.
func Default() *Config {
	return &Config{
		SyncEnabled:         false,
		AutoSync:            true,
		SyncIntervalSeconds: 300,
	}
}

// Path returns the config file location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, configFile)
}

// Load reads the config from dir. It always returns a usable config: a
// missing file is created with defaults, an unreadable or corrupt file is
// left in place and reported as a warning while defaults (sync disabled)
// are used for this process.
func Load(dir string) *Config {
	path := Path(dir)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(dir, cfg); err != nil {
				slog.Warn("could not write default sync config", "path", path, "error", err)
			}
			return cfg
		}
		slog.Warn("could not read sync config, using defaults with sync disabled", "path", path, "error", err)
		return Default()
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Warn("sync config is corrupt, using defaults with sync disabled", "path", path, "error", err)
		return Default()
	}
	if cfg.SyncIntervalSeconds <= 0 {
		cfg.SyncIntervalSeconds = 300
	}
	return &cfg
}

// Save writes the config atomically: marshal to a temp file in the same
// directory, then rename over the target. A crash mid-save never leaves a
// torn document. 0600 perms, the file holds the API secret.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sync config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, configFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("write sync config: %w", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write sync config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write sync config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write sync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write sync config: %w", err)
	}

	if err := os.Rename(tmpPath, Path(dir)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace sync config: %w", err)
	}
	return nil
}

// ResolvedAPIKey returns the API key.
// Priority: FIELDPOST_API_KEY env > config file.
func (c *Config) ResolvedAPIKey() string {
	if v := os.Getenv("FIELDPOST_API_KEY"); v != "" {
		return v
	}
	return c.APIKey
}

// ResolvedAPISecret returns the signing secret.
// Priority: FIELDPOST_API_SECRET env > config file.
func (c *Config) ResolvedAPISecret() string {
	if v := os.Getenv("FIELDPOST_API_SECRET"); v != "" {
		return v
	}
	return c.APISecret
}

// ResolvedBaseURL returns the cloud API base URL.
// Priority: FIELDPOST_CLOUD_URL env > config file.
func (c *Config) ResolvedBaseURL() string {
	if v := os.Getenv("FIELDPOST_CLOUD_URL"); v != "" {
		return v
	}
	return c.BaseURL
}

// Enabled reports whether sync is switched on.
// Priority: FIELDPOST_SYNC_ENABLED env > config file.
func (c *Config) Enabled() bool {
	if v := os.Getenv("FIELDPOST_SYNC_ENABLED"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true":
			return true
		case "0", "false":
			return false
		}
	}
	return c.SyncEnabled
}

// Interval returns the auto-sync period.
func (c *Config) Interval() time.Duration {
	secs := c.SyncIntervalSeconds
	if secs <= 0 {
		secs = 300
	}
	return time.Duration(secs) * time.Second
}
