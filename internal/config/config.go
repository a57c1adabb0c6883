package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "https://api.compliance-service.com"
	DefaultTimeout = 30 * time.Second
)

// Config is read once at startup and passed by value afterwards.
type Config struct {
	Upstream        UpstreamConfig  `yaml:"upstream"`
	DevelopmentMode bool            `yaml:"development_mode"`
	Server          ServerConfig    `yaml:"server"`
	Log             LogConfig       `yaml:"log"`
	HTTPCache       HTTPCacheConfig `yaml:"http_cache"`
	Audit           AuditConfig     `yaml:"audit"`
}

type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPCacheConfig controls the upstream response cache. It is off by default;
// when enabled, responses are kept in memory across calls.
type HTTPCacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// AuditConfig enables the SQLite invocation journal when Path is set. It is off
// by default; when enabled, every call is persisted to that file.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Upstream: UpstreamConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Log:    LogConfig{Level: "info", Format: "text"},
		HTTPCache: HTTPCacheConfig{
			TTL:        60 * time.Second,
			MaxEntries: 512,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file (if any), then
// variables from a .env file, then the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := LoadDotEnv(""); err != nil {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg = ApplyEnv(cfg, os.LookupEnv)
	return cfg.normalize(), nil
}

// ApplyEnv overlays environment variables on cfg. Environment wins over file values.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) Config {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get("COMPLIANCE_API_BASE"); ok && v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v, ok := get("COMPLIANCE_API_KEY"); ok {
		cfg.Upstream.APIKey = v
	}
	if v, ok := get("COMPLIANCE_API_TIMEOUT_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Upstream.Timeout = time.Duration(n) * time.Second
		}
	}
	// Any non-empty value enables development mode.
	if v, ok := get("DEVELOPMENT_MODE"); ok && v != "" {
		cfg.DevelopmentMode = true
	}
	if v, ok := get("COMPLIANCE_HOST"); ok && v != "" {
		cfg.Server.Host = v
	}
	if v, ok := get("COMPLIANCE_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.Port = n
		}
	}
	if v, ok := get("COMPLIANCE_LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := get("COMPLIANCE_LOG_FORMAT"); ok && v != "" {
		cfg.Log.Format = v
	}
	if v, ok := get("COMPLIANCE_HTTP_CACHE_ENABLED"); ok {
		cfg.HTTPCache.Enabled = truthy(v)
	}
	if v, ok := get("COMPLIANCE_HTTP_CACHE_TTL_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.HTTPCache.TTL = time.Duration(n) * time.Second
		}
	}
	if v, ok := get("COMPLIANCE_HTTP_CACHE_MAX_ENTRIES"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPCache.MaxEntries = n
		}
	}
	if v, ok := get("COMPLIANCE_AUDIT_DB"); ok {
		cfg.Audit.Path = v
	}
	return cfg
}

func (c Config) normalize() Config {
	c.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(c.Upstream.BaseURL), "/")
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultBaseURL
	}
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = DefaultTimeout
	}
	if c.HTTPCache.MaxEntries <= 0 {
		c.HTTPCache.MaxEntries = 512
	}
	if c.HTTPCache.TTL < 0 {
		c.HTTPCache.TTL = 0
	}
	return c
}

// Warnings lists startup warnings derived from the configuration.
func (c Config) Warnings() []string {
	var out []string
	if c.Upstream.APIKey == "" && !c.DevelopmentMode {
		out = append(out, "API key not found. Set COMPLIANCE_API_KEY environment variable for production use.")
	}
	return out
}

// Addr returns host:port for the HTTP listener.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func truthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}
