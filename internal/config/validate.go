package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Members-only content policies accepted by notifier.members_only_policy.
const (
	MembersPolicyAll            = "all"
	MembersPolicyNone           = "none"
	MembersPolicySubscribedOnly = "subscribed_only"
)

var validMembersOnlyPolicies = map[string]struct{}{
	MembersPolicyAll:            {},
	MembersPolicyNone:           {},
	MembersPolicySubscribedOnly: {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := c.validateHub(); err != nil {
		return err
	}
	if err := c.validateNotifier(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateYouTube() error {
	if c.YouTube.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/tubewatch/config.toml"
		}
		return fmt.Errorf("youtube.api_key is required. Set YOUTUBE_API_KEY env var or edit %s (create with 'tubewatch config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateHub() error {
	if _, err := url.ParseRequestURI(c.Hub.URL); err != nil {
		return fmt.Errorf("hub.url is not a valid URL: %w", err)
	}
	if c.Hub.CallbackURL != "" {
		parsed, err := url.ParseRequestURI(c.Hub.CallbackURL)
		if err != nil {
			return fmt.Errorf("hub.callback_url is not a valid URL: %w", err)
		}
		if parsed.Scheme != "https" && parsed.Scheme != "http" {
			return errors.New("hub.callback_url must use http or https")
		}
	}
	return nil
}

func (c *Config) validateNotifier() error {
	if c.Notifier.WebhookURL != "" {
		if _, err := url.ParseRequestURI(c.Notifier.WebhookURL); err != nil {
			return fmt.Errorf("notifier.webhook_url is not a valid URL: %w", err)
		}
	}
	if _, ok := validMembersOnlyPolicies[c.Notifier.MembersOnlyPolicy]; !ok {
		return fmt.Errorf("notifier.members_only_policy must be one of all, none, subscribed_only (got %q)", c.Notifier.MembersOnlyPolicy)
	}
	if _, err := time.LoadLocation(c.Notifier.Timezone); err != nil {
		return fmt.Errorf("notifier.timezone: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind must be set")
	}
	return nil
}
