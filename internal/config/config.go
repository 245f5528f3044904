// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Feeds   FeedsConfig   `mapstructure:"feeds"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	DB      DBConfig      `mapstructure:"db"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// FeedsConfig governs RSS ingestion behavior.
type FeedsConfig struct {
	LinksPath      string `mapstructure:"links_path"`
	Concurrency    int    `mapstructure:"concurrency"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ScrapeConfig points at the external scrape service.
type ScrapeConfig struct {
	APIURL         string `mapstructure:"api_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// WebhookConfig names the optional completion-event endpoint. An empty URL
// disables delivery.
type WebhookConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the relational database. One of the tiered DSNs
// is selected by Env; the prod tier additionally requires ProdConfirmed.
type DBConfig struct {
	Env           string `mapstructure:"env"`
	DSNTest       string `mapstructure:"dsn_test"`
	DSNStg        string `mapstructure:"dsn_stg"`
	DSNProd       string `mapstructure:"dsn_prod"`
	ProdConfirmed bool   `mapstructure:"prod_confirmed"`
	MaxConns      int    `mapstructure:"max_conns"`
	MinConns      int    `mapstructure:"min_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvOnly(v)

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
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("feeds.links_path", "rss_links.yml")
	v.SetDefault("feeds.concurrency", 8)
	v.SetDefault("feeds.timeout_seconds", 15)
	v.SetDefault("scrape.api_url", "http://localhost:8000")
	v.SetDefault("scrape.timeout_seconds", 15)
	v.SetDefault("webhook.timeout_seconds", 5)
	v.SetDefault("db.env", "test")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("logging.development", true)
}

// bindEnvOnly registers keys that have no default; AutomaticEnv only
// resolves keys viper already knows about, so without these bindings the
// env-only deployment path would never see the DSNs or the webhook URL.
func bindEnvOnly(v *viper.Viper) {
	for _, key := range []string{
		"db.dsn_test",
		"db.dsn_stg",
		"db.dsn_prod",
		"db.prod_confirmed",
		"webhook.url",
	} {
		// BindEnv only errors on an empty key.
		_ = v.BindEnv(key)
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Feeds.Concurrency <= 0 {
		return fmt.Errorf("feeds.concurrency must be > 0")
	}
	if c.Feeds.TimeoutSeconds <= 0 {
		return fmt.Errorf("feeds.timeout_seconds must be > 0")
	}
	if c.Scrape.APIURL == "" {
		return fmt.Errorf("scrape.api_url must be set")
	}
	if c.Scrape.TimeoutSeconds <= 0 {
		return fmt.Errorf("scrape.timeout_seconds must be > 0")
	}
	if c.Webhook.TimeoutSeconds <= 0 {
		return fmt.Errorf("webhook.timeout_seconds must be > 0")
	}
	switch c.DB.Env {
	case "test", "stg", "prod":
	default:
		return fmt.Errorf("db.env must be one of test, stg, prod")
	}
	if _, err := c.DB.ResolveDSN(); err != nil {
		return err
	}
	return nil
}

// ResolveDSN picks the connection string for the configured tier. Selecting
// the prod tier without prod_confirmed is an error so a stray env var cannot
// point a run at production.
func (c DBConfig) ResolveDSN() (string, error) {
	var dsn string
	switch c.Env {
	case "test":
		dsn = c.DSNTest
	case "stg":
		dsn = c.DSNStg
	case "prod":
		if !c.ProdConfirmed {
			return "", fmt.Errorf("db.env is prod but db.prod_confirmed is not set")
		}
		dsn = c.DSNProd
	default:
		return "", fmt.Errorf("db.env must be one of test, stg, prod")
	}
	if dsn == "" {
		return "", fmt.Errorf("no DSN configured for db.env %q", c.Env)
	}
	return dsn, nil
}

// Addr returns the host:port the HTTP server binds to.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FeedTimeout converts the per-feed budget into a duration.
func (c FeedsConfig) FeedTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout converts the scrape call budget into a duration.
func (c ScrapeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout converts the delivery budget into a duration.
func (c WebhookConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
