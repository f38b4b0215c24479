package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// YouTube contains configuration for the YouTube Data API.
// WatcherChannelID names the channel whose public subscription list defines
// the set of watched channels.
type YouTube struct {
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url"`
	WatcherChannelID string `toml:"watcher_channel_id"`
}

// Hub contains WebSub hub subscription settings.
type Hub struct {
	URL               string `toml:"url"`
	CallbackURL       string `toml:"callback_url"`
	Secret            string `toml:"secret"`
	LeaseSeconds      int    `toml:"lease_seconds"`
	RenewalWindowDays int    `toml:"renewal_window_days"`
}

// Notifier contains delivery and filtering settings for notifications.
type Notifier struct {
	WebhookURL           string `toml:"webhook_url"`
	RequestTimeout       int    `toml:"request_timeout"`
	Timezone             string `toml:"timezone"`
	MembersOnlyPolicy    string `toml:"members_only_policy"`
	ExcludeShorts        bool   `toml:"exclude_shorts"`
	UploadRetentionHours int    `toml:"upload_retention_hours"`
	StaleLiveMinutes     int    `toml:"stale_live_minutes"`
}

// Reconciler contains scheduling and backoff settings for the
// subscription sweep.
type Reconciler struct {
	IntervalMinutes  int `toml:"interval_minutes"`
	BackoffBaseMS    int `toml:"backoff_base_ms"`
	BackoffCapMS     int `toml:"backoff_cap_ms"`
	MaxAttempts      int `toml:"max_attempts"`
	PurgeIntervalMin int `toml:"purge_interval_minutes"`
}

// Server contains configuration for the callback HTTP server.
type Server struct {
	Bind         string   `toml:"bind"`
	AllowedCIDRs []string `toml:"allowed_cidrs"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tubewatch.
//
// Sections by subsystem:
//   - Paths: data and log directories
//   - YouTube: Data API credentials and endpoint
//   - Hub: WebSub subscription parameters (hub URL, callback, secret, lease)
//   - Notifier: chat webhook target and notification filters
//   - Reconciler: sweep interval and rate-limit backoff schedule
//   - Server: callback bind address and optional CIDR allow-list
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	YouTube    YouTube    `toml:"youtube"`
	Hub        Hub        `toml:"hub"`
	Notifier   Notifier   `toml:"notifier"`
	Reconciler Reconciler `toml:"reconciler"`
	Server     Server     `toml:"server"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tubewatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tubewatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the record database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "tubewatch.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
