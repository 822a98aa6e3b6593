// Package config loads and validates trafficgate configuration via Viper.
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
	Logging LoggingConfig `mapstructure:"logging"`
	Gate    GateConfig    `mapstructure:"gate"`
	RDNS    RDNSConfig    `mapstructure:"rdns"`
	Links   LinksConfig   `mapstructure:"links"`
	Events  EventsConfig  `mapstructure:"events"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port             int  `mapstructure:"port"`
	TrustProxyHeader bool `mapstructure:"trust_proxy_header"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// GateConfig governs the detection pipeline and the PoW challenge.
// All signature lists are configuration, never call-site constants.
type GateConfig struct {
	Secret            string              `mapstructure:"secret"`
	Difficulty        int                 `mapstructure:"difficulty"`
	SessionTTLMinutes int                 `mapstructure:"session_ttl_minutes"`
	ChallengeScore    int                 `mapstructure:"challenge_score"`
	BlockScore        int                 `mapstructure:"block_score"`
	CookieSecure      bool                `mapstructure:"cookie_secure"`
	SafePath          string              `mapstructure:"safe_path"`
	ExemptPaths       []string            `mapstructure:"exempt_paths"`
	BotTokens         []string            `mapstructure:"bot_tokens"`
	HeadlessTokens    []string            `mapstructure:"headless_tokens"`
	WebviewTokens     []string            `mapstructure:"webview_tokens"`
	PreviewCrawlers   []string            `mapstructure:"preview_crawlers"`
	DatacenterCIDRs   []string            `mapstructure:"datacenter_cidrs"`
	CrawlerClaims     map[string][]string `mapstructure:"crawler_claims"`
}

// RDNSConfig bounds the reverse-DNS crawler verification.
type RDNSConfig struct {
	TimeoutMs int `mapstructure:"timeout_ms"`
}

// LinksConfig selects the slug resolution backend.
type LinksConfig struct {
	DSN    string            `mapstructure:"dsn"`
	Table  string            `mapstructure:"table"`
	Static map[string]string `mapstructure:"static"`
}

// EventsConfig holds metadata for decision event publishing.
type EventsConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRAFFICGATE")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.trust_proxy_header", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("gate.difficulty", 3)
	v.SetDefault("gate.session_ttl_minutes", 60)
	v.SetDefault("gate.challenge_score", 3)
	v.SetDefault("gate.block_score", 0)
	v.SetDefault("gate.cookie_secure", false)
	v.SetDefault("gate.safe_path", "/safe")
	v.SetDefault("gate.exempt_paths", []string{
		"/challenge", "/safe", "/favicon.ico", "/healthz", "/readyz", "/metrics",
	})
	v.SetDefault("gate.bot_tokens", []string{
		"bot", "crawl", "spider", "scrapy", "curl", "wget",
		"python-requests", "go-http-client", "okhttp",
		"ahrefs", "semrush", "mj12", "screaming frog", "serpstat", "majestic",
	})
	v.SetDefault("gate.headless_tokens", []string{"headlesschrome"})
	v.SetDefault("gate.webview_tokens", []string{
		"tiktok", "musical_ly", "bytedance",
		"instagram", "fban", "fbav", "fb_iab",
		"line/", "kakaotalk", "micromessenger",
		"snapchat", "twitter", "whatsapp", "telegram",
	})
	v.SetDefault("gate.preview_crawlers", []string{"facebookexternalhit"})
	v.SetDefault("gate.datacenter_cidrs", []string{
		// AWS
		"3.208.0.0/12", "18.204.0.0/14", "52.0.0.0/11", "54.144.0.0/12",
		// GCP
		"34.64.0.0/10", "35.184.0.0/13",
		// Azure
		"20.36.0.0/14", "40.74.0.0/15",
		// DigitalOcean
		"64.225.0.0/17", "167.99.0.0/16",
		// Hetzner
		"95.216.0.0/15", "135.181.0.0/16",
		// OVH
		"51.68.0.0/16", "146.59.0.0/16",
	})
	v.SetDefault("gate.crawler_claims", map[string][]string{
		"googlebot": {"googlebot.com", "google.com"},
		"bingbot":   {"search.msn.com"},
		"slurp":     {"crawl.yahoo.net", "yahoo.com"},
	})
	v.SetDefault("rdns.timeout_ms", 2000)
	v.SetDefault("links.table", "links")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Gate.Secret == "" {
		return fmt.Errorf("gate.secret must be set")
	}
	if c.Gate.Difficulty < 1 || c.Gate.Difficulty > 6 {
		return fmt.Errorf("gate.difficulty must be between 1 and 6")
	}
	if c.Gate.SessionTTLMinutes <= 0 {
		return fmt.Errorf("gate.session_ttl_minutes must be > 0")
	}
	if c.Gate.ChallengeScore <= 0 {
		return fmt.Errorf("gate.challenge_score must be > 0")
	}
	if c.RDNS.TimeoutMs <= 0 {
		return fmt.Errorf("rdns.timeout_ms must be > 0")
	}
	return nil
}

// SessionTTL converts the session TTL config into a duration.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Gate.SessionTTLMinutes) * time.Minute
}

// RDNSTimeout converts the reverse-DNS timeout config into a duration.
func (c Config) RDNSTimeout() time.Duration {
	return time.Duration(c.RDNS.TimeoutMs) * time.Millisecond
}
