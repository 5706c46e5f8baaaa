// ABOUTME: Configuration loading and parsing for tripdesk-dashboard
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Page size bounds accepted for list views.
const (
	MinPageSize = 1
	MaxPageSize = 100
)

// Config represents the complete tripdesk-dashboard configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Assets    AssetsConfig    `yaml:"assets"`
	Database  DatabaseConfig  `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig is the plain TCP listener used when tailscale is off.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// APIConfig points at the remote platform REST API
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// AssetsConfig controls how relative media paths are turned into URLs
type AssetsConfig struct {
	BaseURL     string `yaml:"base_url"`
	Placeholder string `yaml:"placeholder"` // shown once when an image fails to load
}

// DatabaseConfig holds the path of the local token/profile store
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DashboardConfig holds UI presentation settings
type DashboardConfig struct {
	ConversationsPageSize int    `yaml:"conversations_page_size"`
	MessagesPageSize      int    `yaml:"messages_page_size"`
	TimeZone              string `yaml:"time_zone"`
	Locale                string `yaml:"locale"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"` // serve on :443 with certs from the tailnet
}

// LoggingConfig selects the root slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default values applied by Load before validation.
const (
	DefaultAPITimeout            = 15 * time.Second
	DefaultConversationsPageSize = 20
	DefaultMessagesPageSize      = 30
	DefaultLocale                = "en"
	DefaultPlaceholder           = "/static/placeholder.svg"
	DefaultMetricsPath           = "/metrics"
)

// KnownLocales lists the locales the dashboard ships catalogs for.
var KnownLocales = []string{"en", "fr"}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML config bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = DefaultAPITimeout
	}
	if cfg.Assets.Placeholder == "" {
		cfg.Assets.Placeholder = DefaultPlaceholder
	}
	if cfg.Assets.BaseURL == "" {
		cfg.Assets.BaseURL = cfg.API.BaseURL
	}
	if cfg.Dashboard.ConversationsPageSize == 0 {
		cfg.Dashboard.ConversationsPageSize = DefaultConversationsPageSize
	}
	if cfg.Dashboard.MessagesPageSize == 0 {
		cfg.Dashboard.MessagesPageSize = DefaultMessagesPageSize
	}
	if cfg.Dashboard.TimeZone == "" {
		cfg.Dashboard.TimeZone = "Local"
	}
	if cfg.Dashboard.Locale == "" {
		cfg.Dashboard.Locale = DefaultLocale
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	cfg.Database.Path = ExpandHome(cfg.Database.Path)
	cfg.Tailscale.StateDir = ExpandHome(cfg.Tailscale.StateDir)
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if err := requireAbsoluteURL("api.base_url", c.API.BaseURL); err != nil {
		return err
	}
	if c.Assets.BaseURL != "" {
		if err := requireAbsoluteURL("assets.base_url", c.Assets.BaseURL); err != nil {
			return err
		}
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if err := checkPageSize("dashboard.conversations_page_size", c.Dashboard.ConversationsPageSize); err != nil {
		return err
	}
	if err := checkPageSize("dashboard.messages_page_size", c.Dashboard.MessagesPageSize); err != nil {
		return err
	}

	if _, err := time.LoadLocation(c.Dashboard.TimeZone); err != nil {
		return fmt.Errorf("dashboard.time_zone %q: %w", c.Dashboard.TimeZone, err)
	}

	if !isKnownLocale(c.Dashboard.Locale) {
		return fmt.Errorf("dashboard.locale %q is not one of %s", c.Dashboard.Locale, strings.Join(KnownLocales, ", "))
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	return nil
}

// Location returns the display time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Dashboard.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.API.TimeoutRaw != "" {
		cfg.API.Timeout, err = time.ParseDuration(cfg.API.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing api.timeout %q: %w", cfg.API.TimeoutRaw, err)
		}
	}

	return nil
}

func requireAbsoluteURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q: %w", field, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s %q must start with http:// or https://", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q has no host", field, raw)
	}
	return nil
}

func checkPageSize(field string, n int) error {
	if n < MinPageSize || n > MaxPageSize {
		return fmt.Errorf("%s must be between %d and %d, got %d", field, MinPageSize, MaxPageSize, n)
	}
	return nil
}

func isKnownLocale(tag string) bool {
	for _, l := range KnownLocales {
		if l == tag {
			return true
		}
	}
	return false
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
