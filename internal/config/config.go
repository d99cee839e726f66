// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Shop    ShopConfig    `mapstructure:"shop"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Output  OutputConfig  `mapstructure:"output"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ShopConfig identifies the storefront and the listing to crawl.
type ShopConfig struct {
	Root            string   `mapstructure:"root"`
	URLs            []string `mapstructure:"urls"`
	Collection      string   `mapstructure:"collection"`
	SearchQuery     string   `mapstructure:"search_query"`
	DiscoverSitemap bool     `mapstructure:"discover_sitemap"`
	SitemapLimit    int      `mapstructure:"sitemap_limit"`
}

// CrawlConfig governs orchestrator behavior and budgets.
type CrawlConfig struct {
	Concurrency       int  `mapstructure:"concurrency"`
	MaxProducts       int  `mapstructure:"max_products"`
	MaxPages          int  `mapstructure:"max_pages"`
	IncludeVariants   bool `mapstructure:"include_variants"`
	IncludeOutOfStock bool `mapstructure:"include_out_of_stock"`
	PageRetries       int  `mapstructure:"page_retries"`
	FrontierDepth     int  `mapstructure:"frontier_depth"`
}

// HTTPConfig configures the fetch transport.
type HTTPConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	TransportRetries int    `mapstructure:"transport_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	UserAgent        string `mapstructure:"user_agent"`
	RespectRobots    bool   `mapstructure:"respect_robots"`
}

// ProxyConfig describes the session pool and its rotation thresholds.
type ProxyConfig struct {
	Addresses        []string `mapstructure:"addresses"`
	PoolSize         int      `mapstructure:"pool_size"`
	MaxSessionUses   int      `mapstructure:"max_session_uses"`
	MaxSessionErrors int      `mapstructure:"max_session_errors"`
}

// OutputConfig selects and configures the record sink.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
}

// ServerConfig controls the metrics/health endpoint.
type ServerConfig struct {
	MetricsPort int `mapstructure:"metrics_port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHOPHARVEST")
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
	v.SetDefault("shop.sitemap_limit", 100)
	v.SetDefault("crawl.concurrency", 4)
	v.SetDefault("crawl.max_products", 0)
	v.SetDefault("crawl.max_pages", 200)
	v.SetDefault("crawl.include_variants", true)
	v.SetDefault("crawl.include_out_of_stock", true)
	v.SetDefault("crawl.page_retries", 3)
	v.SetDefault("crawl.frontier_depth", 1024)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.transport_retries", 1)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.user_agent", "shopharvest/0.1")
	v.SetDefault("http.respect_robots", true)
	v.SetDefault("proxy.pool_size", 4)
	v.SetDefault("proxy.max_session_uses", 50)
	v.SetDefault("proxy.max_session_errors", 3)
	v.SetDefault("output.format", "jsonl")
	v.SetDefault("output.path", "output/products.jsonl")
	v.SetDefault("output.table", "products")
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Seed emptiness
// is not checked here; the seed resolver owns that failure mode.
func (c Config) Validate() error {
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.Crawl.MaxProducts < 0 {
		return fmt.Errorf("crawl.max_products must be >= 0")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Crawl.PageRetries <= 0 {
		return fmt.Errorf("crawl.page_retries must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Proxy.PoolSize <= 0 {
		return fmt.Errorf("proxy.pool_size must be > 0")
	}
	switch c.Output.Format {
	case "jsonl", "postgres", "memory":
	default:
		return fmt.Errorf("output.format must be jsonl, postgres, or memory")
	}
	if c.Output.Format == "jsonl" && c.Output.Path == "" {
		return fmt.Errorf("output.path must be set for jsonl output")
	}
	if c.Output.Format == "postgres" && c.Output.DSN == "" {
		return fmt.Errorf("output.dsn must be set for postgres output")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the initial page-retry backoff delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the page-retry backoff ceiling.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
