// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FetchMode selects the transport used for page rendering.
const (
	FetchModeHeadless = "headless"
	FetchModeHTTP     = "http"
)

// Config captures all harvester knobs loaded via Viper.
type Config struct {
	BaseURL    string           `mapstructure:"base_url"`
	CatalogURL string           `mapstructure:"catalog_url"`
	MaxLots    int              `mapstructure:"max_lots"`
	Workers    int              `mapstructure:"workers"`
	MaxPages   int              `mapstructure:"max_pages"`
	SeenFile   string           `mapstructure:"seen_file"`
	OutputFile string           `mapstructure:"output_file"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Politeness PolitenessConfig `mapstructure:"politeness"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// FetchConfig configures the rendering transport.
type FetchConfig struct {
	Mode           string `mapstructure:"mode"`
	UserAgent      string `mapstructure:"user_agent"`
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds"`
	WaitTimeoutSec int    `mapstructure:"wait_timeout_seconds"`
	ShowBrowser    bool   `mapstructure:"show_browser"`
}

// AuthConfig points at the exported session cookies.
type AuthConfig struct {
	CookiesFile string `mapstructure:"cookies_file"`
	Required    bool   `mapstructure:"required"`
}

// PolitenessConfig bounds the randomized delays between requests.
type PolitenessConfig struct {
	PageDelayMinMs int `mapstructure:"page_delay_min_ms"`
	PageDelayMaxMs int `mapstructure:"page_delay_max_ms"`
	ItemDelayMinMs int `mapstructure:"item_delay_min_ms"`
	ItemDelayMaxMs int `mapstructure:"item_delay_max_ms"`
}

// RateLimitConfig caps request rate per domain across all sessions.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://bankrotbaza.ru")
	v.SetDefault("catalog_url", "https://bankrotbaza.ru/catalog")
	v.SetDefault("max_lots", 500)
	v.SetDefault("workers", 3)
	v.SetDefault("max_pages", 200)
	v.SetDefault("seen_file", "seen_lots.json")
	v.SetDefault("output_file", "bankrot_lots.xlsx")
	v.SetDefault("fetch.mode", FetchModeHeadless)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("fetch.nav_timeout_seconds", 25)
	v.SetDefault("fetch.wait_timeout_seconds", 12)
	v.SetDefault("fetch.show_browser", false)
	v.SetDefault("auth.cookies_file", "auth_cookies.json")
	v.SetDefault("auth.required", true)
	v.SetDefault("politeness.page_delay_min_ms", 1600)
	v.SetDefault("politeness.page_delay_max_ms", 2800)
	v.SetDefault("politeness.item_delay_min_ms", 800)
	v.SetDefault("politeness.item_delay_max_ms", 1600)
	v.SetDefault("ratelimit.rps", 1.0)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must be set")
	}
	if c.CatalogURL == "" {
		return fmt.Errorf("catalog_url must be set")
	}
	if c.MaxLots <= 0 {
		return fmt.Errorf("max_lots must be > 0")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.SeenFile == "" {
		return fmt.Errorf("seen_file must be set")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output_file must be set")
	}
	switch c.Fetch.Mode {
	case FetchModeHeadless, FetchModeHTTP:
	default:
		return fmt.Errorf("fetch.mode must be %q or %q", FetchModeHeadless, FetchModeHTTP)
	}
	if c.Fetch.NavTimeoutSec <= 0 {
		return fmt.Errorf("fetch.nav_timeout_seconds must be > 0")
	}
	if c.Politeness.PageDelayMinMs > c.Politeness.PageDelayMaxMs {
		return fmt.Errorf("politeness.page_delay_min_ms must not exceed politeness.page_delay_max_ms")
	}
	if c.Politeness.ItemDelayMinMs > c.Politeness.ItemDelayMaxMs {
		return fmt.Errorf("politeness.item_delay_min_ms must not exceed politeness.item_delay_max_ms")
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	return nil
}

// NavTimeout returns the page navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Fetch.NavTimeoutSec) * time.Second
}

// WaitTimeout returns the listing render wait budget.
func (c Config) WaitTimeout() time.Duration {
	return time.Duration(c.Fetch.WaitTimeoutSec) * time.Second
}

// PageDelayBounds returns the between-page politeness window.
func (c Config) PageDelayBounds() (time.Duration, time.Duration) {
	return time.Duration(c.Politeness.PageDelayMinMs) * time.Millisecond,
		time.Duration(c.Politeness.PageDelayMaxMs) * time.Millisecond
}

// ItemDelayBounds returns the between-item politeness window.
func (c Config) ItemDelayBounds() (time.Duration, time.Duration) {
	return time.Duration(c.Politeness.ItemDelayMinMs) * time.Millisecond,
		time.Duration(c.Politeness.ItemDelayMaxMs) * time.Millisecond
}
