package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tubewatch/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[youtube]
api_key = "test-key"
`)
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Hub.LeaseSeconds != 864000 {
		t.Fatalf("expected default lease seconds, got %d", cfg.Hub.LeaseSeconds)
	}
	if cfg.Hub.RenewalWindowDays != 3 {
		t.Fatalf("expected default renewal window, got %d", cfg.Hub.RenewalWindowDays)
	}
	if cfg.Notifier.UploadRetentionHours != 24 {
		t.Fatalf("expected default retention, got %d", cfg.Notifier.UploadRetentionHours)
	}
	if cfg.Notifier.StaleLiveMinutes != 10 {
		t.Fatalf("expected default stale-live threshold, got %d", cfg.Notifier.StaleLiveMinutes)
	}
	if cfg.Notifier.MembersOnlyPolicy != "all" {
		t.Fatalf("expected default members policy, got %q", cfg.Notifier.MembersOnlyPolicy)
	}
}

func TestLoadExpandsPaths(t *testing.T) {
	path := writeConfig(t, `
[paths]
data_dir = "~/tubewatch-data"

[youtube]
api_key = "test-key"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	if cfg.Paths.DataDir != filepath.Join(home, "tubewatch-data") {
		t.Fatalf("expected tilde expansion, got %q", cfg.Paths.DataDir)
	}
	if cfg.DatabasePath() != filepath.Join(cfg.Paths.DataDir, "tubewatch.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
}

func TestLoadAPIKeyEnvFallback(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "env-key")
	path := writeConfig(t, "")
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.YouTube.APIKey != "env-key" {
		t.Fatalf("expected env fallback, got %q", cfg.YouTube.APIKey)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "")
	path := writeConfig(t, "")
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "youtube.api_key") {
		t.Fatalf("expected missing api key error, got %v", err)
	}
}

func TestLoadRejectsUnknownMembersPolicy(t *testing.T) {
	path := writeConfig(t, `
[youtube]
api_key = "test-key"

[notifier]
members_only_policy = "everyone"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected members policy validation error")
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	path := writeConfig(t, `
[youtube]
api_key = "test-key"

[notifier]
timezone = "Mars/Olympus"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected timezone validation error")
	}
}

func TestCreateSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[hub]") {
		t.Fatalf("sample missing hub section: %s", data)
	}
}
