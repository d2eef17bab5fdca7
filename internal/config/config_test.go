package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
cache:
  root: /tmp/cache
  extra: true
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
model:
  default: qwen/qwen2.5-0.5b-instruct
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default logging level info, got %q", cfg.Logging.Level)
	}
	if cfg.Tools.Policy.Profile != "full" {
		t.Fatalf("expected default tool profile full, got %q", cfg.Tools.Policy.Profile)
	}
}

func TestLoadEnvOverridesCacheRoot(t *testing.T) {
	path := writeConfig(t, `
cache:
  root: /tmp/file-root
`)
	t.Setenv("AILOY_CACHE_ROOT", "/tmp/env-root")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Root != "/tmp/env-root" {
		t.Fatalf("expected env override to win, got %q", cfg.Cache.Root)
	}
}

func TestLoadEnvOverridesProviderAPIKey(t *testing.T) {
	path := writeConfig(t, `
providers:
  anthropic:
    api_key: file-key
`)
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Providers["anthropic"].APIKey != "env-key" {
		t.Fatalf("expected env API key to win, got %q", cfg.Providers["anthropic"].APIKey)
	}
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "model:\n  default: a\n---\nmodel:\n  default: b\n")

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "single YAML document") {
		t.Fatalf("expected single-document error, got %v", err)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ailoy.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
