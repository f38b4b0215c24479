package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeYouTube()
	c.normalizeHub()
	c.normalizeNotifier()
	c.normalizeReconciler()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeYouTube() {
	c.YouTube.APIKey = strings.TrimSpace(c.YouTube.APIKey)
	if c.YouTube.APIKey == "" {
		c.YouTube.APIKey = strings.TrimSpace(os.Getenv("YOUTUBE_API_KEY"))
	}
	c.YouTube.WatcherChannelID = strings.TrimSpace(c.YouTube.WatcherChannelID)
	c.YouTube.BaseURL = strings.TrimRight(strings.TrimSpace(c.YouTube.BaseURL), "/")
	if c.YouTube.BaseURL == "" {
		c.YouTube.BaseURL = defaultYouTubeBaseURL
	}
}

func (c *Config) normalizeHub() {
	c.Hub.URL = strings.TrimSpace(c.Hub.URL)
	if c.Hub.URL == "" {
		c.Hub.URL = defaultHubURL
	}
	c.Hub.CallbackURL = strings.TrimRight(strings.TrimSpace(c.Hub.CallbackURL), "/")
	c.Hub.Secret = strings.TrimSpace(c.Hub.Secret)
	if c.Hub.Secret == "" {
		c.Hub.Secret = strings.TrimSpace(os.Getenv("TUBEWATCH_HUB_SECRET"))
	}
	if c.Hub.LeaseSeconds <= 0 {
		c.Hub.LeaseSeconds = defaultLeaseSeconds
	}
	if c.Hub.RenewalWindowDays <= 0 {
		c.Hub.RenewalWindowDays = defaultRenewalWindowDays
	}
}

func (c *Config) normalizeNotifier() {
	c.Notifier.WebhookURL = strings.TrimSpace(c.Notifier.WebhookURL)
	if c.Notifier.WebhookURL == "" {
		c.Notifier.WebhookURL = strings.TrimSpace(os.Getenv("TUBEWATCH_WEBHOOK_URL"))
	}
	if c.Notifier.RequestTimeout <= 0 {
		c.Notifier.RequestTimeout = defaultNotifierTimeout
	}
	if strings.TrimSpace(c.Notifier.Timezone) == "" {
		c.Notifier.Timezone = defaultTimezone
	}
	c.Notifier.MembersOnlyPolicy = strings.ToLower(strings.TrimSpace(c.Notifier.MembersOnlyPolicy))
	if c.Notifier.MembersOnlyPolicy == "" {
		c.Notifier.MembersOnlyPolicy = defaultMembersOnlyPolicy
	}
	if c.Notifier.UploadRetentionHours <= 0 {
		c.Notifier.UploadRetentionHours = defaultUploadRetentionHours
	}
	if c.Notifier.StaleLiveMinutes < 0 {
		c.Notifier.StaleLiveMinutes = defaultStaleLiveMinutes
	}
}

func (c *Config) normalizeReconciler() {
	if c.Reconciler.IntervalMinutes <= 0 {
		c.Reconciler.IntervalMinutes = defaultReconcileIntervalMin
	}
	if c.Reconciler.BackoffBaseMS <= 0 {
		c.Reconciler.BackoffBaseMS = defaultBackoffBaseMS
	}
	if c.Reconciler.BackoffCapMS <= 0 {
		c.Reconciler.BackoffCapMS = defaultBackoffCapMS
	}
	if c.Reconciler.MaxAttempts <= 0 {
		c.Reconciler.MaxAttempts = defaultMaxAttempts
	}
	if c.Reconciler.PurgeIntervalMin <= 0 {
		c.Reconciler.PurgeIntervalMin = defaultPurgeIntervalMin
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
