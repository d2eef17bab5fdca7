// Package config implements process-wide configuration: cache
// root/remote overrides, default model selection, provider API
// keys/endpoints, the MCP server list, and tool policy, loaded from a
// single YAML document with unknown-field rejection.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ailoy-go/ailoy/internal/tools/policy"
)

// Config is the top-level process configuration.
type Config struct {
	Cache     CacheConfig               `yaml:"cache"`
	Model     ModelConfig               `yaml:"model"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	MCPServers []MCPServerConfig        `yaml:"mcp_servers"`
	Tools     ToolsConfig               `yaml:"tools"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// CacheConfig configures the asset cache. Root and RemoteURL are
// overridden by AILOY_CACHE_ROOT/AILOY_CACHE_REMOTE_URL, which always win
// over the file value.
type CacheConfig struct {
	Root      string `yaml:"root"`
	RemoteURL string `yaml:"remote_url"`
}

// ModelConfig selects the default model a bare `ailoy run` should load.
type ModelConfig struct {
	Default string `yaml:"default"`
}

// ProviderConfig holds per-remote-dialect credentials (component I).
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// MCPServerConfig describes one MCP server to connect at startup
// (component J). Command/Args launch a stdio server; URL connects over
// HTTP instead when set.
type MCPServerConfig struct {
	ID      string   `yaml:"id"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	URL     string   `yaml:"url"`
}

// ToolsConfig configures tool authorization and async dispatch
// (components J, O).
type ToolsConfig struct {
	Policy policy.Policy `yaml:"policy"`
	Async  []string      `yaml:"async"`
}

// LoggingConfig configures the log/slog handler every component logs
// through.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path, expands ${VAR} references against the process
// environment, decodes exactly one YAML document with unknown-field
// rejection, applies defaults, then applies the secret/cache env
// overrides that always take precedence.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: %s must be a single YAML document", path)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tools.Policy.Profile == "" {
		cfg.Tools.Policy.Profile = policy.ProfileFull
	}
}

// applyEnvOverrides applies the env vars that always win over file
// values: the two cache overrides above, plus the per-provider API
// key convention `<PROVIDER>_API_KEY` (e.g. ANTHROPIC_API_KEY,
// OPENAI_API_KEY) for any provider already present in cfg.Providers.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("AILOY_CACHE_ROOT")); v != "" {
		cfg.Cache.Root = v
	}
	if v := strings.TrimSpace(os.Getenv("AILOY_CACHE_REMOTE_URL")); v != "" {
		cfg.Cache.RemoteURL = v
	}
	for name, provider := range cfg.Providers {
		envKey := strings.ToUpper(name) + "_API_KEY"
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			provider.APIKey = v
			cfg.Providers[name] = provider
		}
	}
}
