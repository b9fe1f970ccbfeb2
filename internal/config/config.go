// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/enerkotik/pricecrawler/internal/pricewatch"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging     LoggingConfig                `mapstructure:"logging"`
	DB          DBConfig                     `mapstructure:"db"`
	Redis       RedisConfig                  `mapstructure:"redis"`
	Fetch       FetchConfig                  `mapstructure:"fetch"`
	Scrape      ScrapeConfig                 `mapstructure:"scrape"`
	Metrics     MetricsConfig                `mapstructure:"metrics"`
	Credentials map[string]CredentialsConfig `mapstructure:"credentials"`
	Profiles    []ProfileConfig              `mapstructure:"profiles"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig controls access to the price history store.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifeMins int    `mapstructure:"max_conn_life_minutes"`
}

// RedisConfig controls the optional price-event publisher.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// FetchConfig governs both retrieval strategies.
type FetchConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	PageDelayMs       int    `mapstructure:"page_delay_ms"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	RenderWaitSeconds int    `mapstructure:"render_wait_seconds"`
}

// ScrapeConfig sets the default pagination bounds per fetch mode.
type ScrapeConfig struct {
	StaticMaxPages  int `mapstructure:"static_max_pages"`
	DynamicMaxPages int `mapstructure:"dynamic_max_pages"`
}

// MetricsConfig controls the /metrics listener of the scrape command.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// CredentialsConfig is one named block of replayable session material.
// Blocks are referenced by profiles and rotated without touching them.
type CredentialsConfig struct {
	Headers map[string]string `mapstructure:"headers"`
	Cookies map[string]string `mapstructure:"cookies"`
	Params  map[string]string `mapstructure:"params"`
}

// SelectorsConfig mirrors pricewatch.Selectors in configuration form.
type SelectorsConfig struct {
	ContainerTag   string `mapstructure:"container_tag"`
	ContainerClass string `mapstructure:"container_class"`
	NameTag        string `mapstructure:"name_tag"`
	NameClass      string `mapstructure:"name_class"`
	PriceTag       string `mapstructure:"price_tag"`
	PriceClass     string `mapstructure:"price_class"`
}

// ProfileConfig is one retailer entry of the profiles list.
type ProfileConfig struct {
	Shop          string          `mapstructure:"shop"`
	URLTemplate   string          `mapstructure:"url_template"`
	Mode          string          `mapstructure:"mode"`
	Credentials   string          `mapstructure:"credentials"`
	Selectors     SelectorsConfig `mapstructure:"selectors"`
	MaxPages      int             `mapstructure:"max_pages"`
	PriceFallback string          `mapstructure:"price_fallback"`
}

// Load builds a Config from disk/environment. A .env file in the working
// directory is applied to the environment first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PRICEWATCH")
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
	// Registering db.dsn makes the PRICEWATCH_DB_DSN env override visible
	// to Unmarshal even without a config file entry.
	v.SetDefault("db.dsn", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("fetch.user_agent", "pricecrawler/1.0")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.page_delay_ms", 500)
	v.SetDefault("fetch.nav_timeout_seconds", 45)
	v.SetDefault("fetch.render_wait_seconds", 8)
	v.SetDefault("scrape.static_max_pages", 5)
	v.SetDefault("scrape.dynamic_max_pages", 2)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.channel", "pricewatch:updates")
}

// Validate enforces required values and well-formed profiles.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must be set when redis is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	if _, err := c.SiteProfiles(); err != nil {
		return err
	}
	return nil
}

// SiteProfiles resolves the profile list into immutable domain profiles,
// binding each static profile to its credentials block.
func (c Config) SiteProfiles() ([]pricewatch.SiteProfile, error) {
	profiles := make([]pricewatch.SiteProfile, 0, len(c.Profiles))
	for i, p := range c.Profiles {
		profile, err := c.siteProfile(p)
		if err != nil {
			return nil, fmt.Errorf("profiles[%d] (%s): %w", i, p.Shop, err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (c Config) siteProfile(p ProfileConfig) (pricewatch.SiteProfile, error) {
	if p.Shop == "" {
		return pricewatch.SiteProfile{}, fmt.Errorf("shop is required")
	}
	if !strings.Contains(p.URLTemplate, pricewatch.PagePlaceholder) {
		return pricewatch.SiteProfile{}, fmt.Errorf("url_template must contain %s", pricewatch.PagePlaceholder)
	}

	mode := pricewatch.FetchMode(p.Mode)
	switch mode {
	case pricewatch.FetchModeStatic, pricewatch.FetchModeDynamic:
	default:
		return pricewatch.SiteProfile{}, fmt.Errorf("unknown mode %q", p.Mode)
	}

	if p.Selectors.ContainerTag == "" || p.Selectors.NameTag == "" {
		return pricewatch.SiteProfile{}, fmt.Errorf("container and name selectors are required")
	}

	fallback := pricewatch.PriceFallback(p.PriceFallback)
	switch fallback {
	case "", pricewatch.FallbackZero, pricewatch.FallbackSkip, pricewatch.FallbackReport:
	default:
		return pricewatch.SiteProfile{}, fmt.Errorf("unknown price_fallback %q", p.PriceFallback)
	}

	var creds pricewatch.ConnectionParams
	if p.Credentials != "" {
		block, ok := c.Credentials[p.Credentials]
		if !ok {
			return pricewatch.SiteProfile{}, fmt.Errorf("credentials block %q not found", p.Credentials)
		}
		creds = pricewatch.ConnectionParams{
			Headers: block.Headers,
			Cookies: block.Cookies,
			Params:  block.Params,
		}
	}

	return pricewatch.SiteProfile{
		Shop:        p.Shop,
		URLTemplate: p.URLTemplate,
		Mode:        mode,
		Credentials: creds,
		Selectors: pricewatch.Selectors{
			ContainerTag:   p.Selectors.ContainerTag,
			ContainerClass: p.Selectors.ContainerClass,
			NameTag:        p.Selectors.NameTag,
			NameClass:      p.Selectors.NameClass,
			PriceTag:       p.Selectors.PriceTag,
			PriceClass:     p.Selectors.PriceClass,
		},
		MaxPages:      p.MaxPages,
		PriceFallback: fallback,
	}, nil
}

// FetchTimeout converts the configured seconds into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// PageDelay converts the configured milliseconds into a duration.
func (c Config) PageDelay() time.Duration {
	return time.Duration(c.Fetch.PageDelayMs) * time.Millisecond
}

// NavTimeout converts the configured seconds into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Fetch.NavTimeoutSeconds) * time.Second
}

// RenderWait converts the configured seconds into a duration.
func (c Config) RenderWait() time.Duration {
	return time.Duration(c.Fetch.RenderWaitSeconds) * time.Second
}

// MaxConnLifetime converts the configured minutes into a duration.
func (c DBConfig) MaxConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifeMins) * time.Minute
}
