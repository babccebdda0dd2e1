// ABOUTME: Configuration loading and parsing for guday-portal
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultBackendURL is the services API the portal fronts.
const DefaultBackendURL = "https://guday.taliyap2p.com/api/v1"

// Config represents the complete guday-portal configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Backend  BackendConfig  `yaml:"backend" toml:"backend"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Session  SessionConfig  `yaml:"session" toml:"session"`
	Cache    CacheConfig    `yaml:"cache" toml:"cache"`
	Admin    AdminConfig    `yaml:"admin" toml:"admin"`
	Portal   PortalConfig   `yaml:"portal" toml:"portal"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// BaseURL is the external URL of the portal, used in absolute links.
	BaseURL string `yaml:"base_url" toml:"base_url"`
	// TrustProxy makes the client IP come from X-Forwarded-For.
	TrustProxy bool `yaml:"trust_proxy" toml:"trust_proxy"`
}

// BackendConfig points at the services REST API
type BackendConfig struct {
	BaseURL   string        `yaml:"base_url" toml:"base_url"`
	Timeout   time.Duration `yaml:"-" toml:"-"`
	UserAgent string        `yaml:"user_agent" toml:"user_agent"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// SessionConfig controls portal session cookies
type SessionConfig struct {
	Duration      time.Duration `yaml:"-" toml:"-"`
	SecureCookies bool          `yaml:"secure_cookies" toml:"secure_cookies"`

	DurationRaw string `yaml:"duration" toml:"duration"`
}

// CacheConfig sizes the backend query cache
type CacheConfig struct {
	TTL        time.Duration `yaml:"-" toml:"-"`
	MaxEntries int           `yaml:"max_entries" toml:"max_entries"`

	TTLRaw string `yaml:"ttl" toml:"ttl"`
}

// AdminConfig holds back-office settings
type AdminConfig struct {
	// LoginRate is the sustained login attempts per minute per client IP.
	LoginRate  float64 `yaml:"login_rate" toml:"login_rate"`
	LoginBurst int     `yaml:"login_burst" toml:"login_burst"`
}

// PortalConfig holds public site settings
type PortalConfig struct {
	SiteName       string `yaml:"site_name" toml:"site_name"`
	FeaturedCount  int    `yaml:"featured_count" toml:"featured_count"`
	SearchPageSize int    `yaml:"search_page_size" toml:"search_page_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := parseDurations(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// DefaultPath resolves the config file location: GUDAY_CONFIG, then
// $XDG_CONFIG_HOME/guday/portal.yaml, then ~/.config/guday/portal.yaml.
func DefaultPath() string {
	if p := os.Getenv("GUDAY_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "guday", "portal.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "portal.yaml"
	}
	return filepath.Join(home, ".config", "guday", "portal.yaml")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = DefaultBackendURL
	}
	if cfg.Backend.TimeoutRaw == "" {
		cfg.Backend.TimeoutRaw = "15s"
	}
	if cfg.Backend.UserAgent == "" {
		cfg.Backend.UserAgent = "guday-portal"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./guday-portal.db"
	}
	if cfg.Session.DurationRaw == "" {
		cfg.Session.DurationRaw = "12h"
	}
	if cfg.Cache.TTLRaw == "" {
		cfg.Cache.TTLRaw = "30s"
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 1000
	}
	if cfg.Admin.LoginRate == 0 {
		cfg.Admin.LoginRate = 10
	}
	if cfg.Admin.LoginBurst == 0 {
		cfg.Admin.LoginBurst = 5
	}
	if cfg.Portal.SiteName == "" {
		cfg.Portal.SiteName = "Guday"
	}
	if cfg.Portal.FeaturedCount == 0 {
		cfg.Portal.FeaturedCount = 6
	}
	if cfg.Portal.SearchPageSize == 0 {
		cfg.Portal.SearchPageSize = 50
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute http(s) URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Session.Duration < time.Minute {
		return fmt.Errorf("session.duration must be at least 1m")
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative")
	}

	if c.Admin.LoginRate < 0 || c.Admin.LoginBurst < 0 {
		return fmt.Errorf("admin.login_rate and admin.login_burst must not be negative")
	}

	if c.Portal.FeaturedCount < 0 || c.Portal.SearchPageSize < 0 {
		return fmt.Errorf("portal.featured_count and portal.search_page_size must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Backend.TimeoutRaw != "" {
		cfg.Backend.Timeout, err = time.ParseDuration(cfg.Backend.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing backend.timeout %q: %w", cfg.Backend.TimeoutRaw, err)
		}
	}

	if cfg.Session.DurationRaw != "" {
		cfg.Session.Duration, err = time.ParseDuration(cfg.Session.DurationRaw)
		if err != nil {
			return fmt.Errorf("parsing session.duration %q: %w", cfg.Session.DurationRaw, err)
		}
	}

	if cfg.Cache.TTLRaw != "" {
		cfg.Cache.TTL, err = time.ParseDuration(cfg.Cache.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.ttl %q: %w", cfg.Cache.TTLRaw, err)
		}
	}

	return nil
}

// DefaultYAML is the annotated config written by `guday-portal init`.
const DefaultYAML = `# guday-portal configuration
server:
  http_addr: "127.0.0.1:8080"
  base_url: ""
  trust_proxy: false

backend:
  base_url: "${GUDAY_BACKEND_URL}"
  timeout: "15s"
  user_agent: "guday-portal"

database:
  path: "./guday-portal.db"

session:
  duration: "12h"
  secure_cookies: false

cache:
  ttl: "30s"
  max_entries: 1000

admin:
  login_rate: 10
  login_burst: 5

portal:
  site_name: "Guday"
  featured_count: 6
  search_page_size: 50

logging:
  level: "info"
  format: "text"
`
