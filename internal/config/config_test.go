package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_DefaultsWithSecret(t *testing.T) {
	path := writeConfigFile(t, `
gate:
  secret: test-secret
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.False(t, cfg.Server.TrustProxyHeader)
	require.Equal(t, 3, cfg.Gate.Difficulty)
	require.Equal(t, 3, cfg.Gate.ChallengeScore)
	require.Equal(t, 0, cfg.Gate.BlockScore)
	require.Equal(t, "/safe", cfg.Gate.SafePath)
	require.Contains(t, cfg.Gate.ExemptPaths, "/challenge")
	require.Contains(t, cfg.Gate.BotTokens, "curl")
	require.Contains(t, cfg.Gate.HeadlessTokens, "headlesschrome")
	require.Contains(t, cfg.Gate.PreviewCrawlers, "facebookexternalhit")
	require.NotEmpty(t, cfg.Gate.DatacenterCIDRs)
	require.Contains(t, cfg.Gate.CrawlerClaims, "googlebot")
	require.Equal(t, time.Hour, cfg.SessionTTL())
	require.Equal(t, 2*time.Second, cfg.RDNSTimeout())
	require.Equal(t, "links", cfg.Links.Table)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  trust_proxy_header: true
gate:
  secret: test-secret
  difficulty: 4
  session_ttl_minutes: 30
  block_score: 8
  safe_path: /reading
links:
  static:
    promo: https://shop.example/promo
events:
  project_id: demo-project
  topic_name: gate-decisions
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Server.TrustProxyHeader)
	require.Equal(t, 4, cfg.Gate.Difficulty)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL())
	require.Equal(t, 8, cfg.Gate.BlockScore)
	require.Equal(t, "/reading", cfg.Gate.SafePath)
	require.Equal(t, "https://shop.example/promo", cfg.Links.Static["promo"])
	require.Equal(t, "demo-project", cfg.Events.ProjectID)
	require.Equal(t, "gate-decisions", cfg.Events.TopicName)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Server: ServerConfig{Port: 8080},
			Gate: GateConfig{
				Secret:            "s",
				Difficulty:        3,
				SessionTTLMinutes: 60,
				ChallengeScore:    3,
			},
			RDNS: RDNSConfig{TimeoutMs: 2000},
		}
	}

	require.NoError(t, base().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Gate.Secret = "" }},
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"difficulty too low", func(c *Config) { c.Gate.Difficulty = 0 }},
		{"difficulty too high", func(c *Config) { c.Gate.Difficulty = 7 }},
		{"zero ttl", func(c *Config) { c.Gate.SessionTTLMinutes = 0 }},
		{"zero challenge score", func(c *Config) { c.Gate.ChallengeScore = 0 }},
		{"zero rdns timeout", func(c *Config) { c.RDNS.TimeoutMs = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
