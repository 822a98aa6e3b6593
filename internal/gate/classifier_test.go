package gate

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(ClassifierConfig{
		BotTokens:       []string{"bot", "crawl", "spider", "curl", "ahrefs", "semrush"},
		HeadlessTokens:  []string{"headlesschrome"},
		WebviewTokens:   []string{"tiktok", "instagram", "fban", "fbav", "micromessenger", "snapchat"},
		CrawlerClaims:   []string{"googlebot", "bingbot", "slurp"},
		DatacenterCIDRs: []string{"52.0.0.0/11", "34.64.0.0/10"},
	})
	require.NoError(t, err)
	return c
}

func fullBrowserHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

func TestClassify_BotTokensScoreAtLeastThree(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)
	agents := []string{
		"Mozilla/5.0 (compatible; SemrushBot/7~bl; +http://www.semrush.com/bot.html)",
		"Mozilla/5.0 (compatible; AhrefsBot/7.0; +http://ahrefs.com/robot/)",
		"curl/8.4.0",
		"some-crawler/1.0",
		"webspider",
	}
	for _, ua := range agents {
		cls := c.Classify(InboundRequest{
			SourceAddr: "198.51.100.10",
			UserAgent:  ua,
			Headers:    fullBrowserHeaders(),
		})
		require.True(t, cls.IsBot, "ua %q must classify as bot", ua)
		require.GreaterOrEqual(t, cls.RiskScore, 3, "ua %q", ua)
	}
}

func TestClassify_HeadlessScoresAtLeastFive(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)
	cls := c.Classify(InboundRequest{
		SourceAddr: "198.51.100.10",
		UserAgent:  "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) HeadlessChrome/119.0 Safari/537.36",
		Headers:    fullBrowserHeaders(),
	})
	require.GreaterOrEqual(t, cls.RiskScore, 5)
	require.False(t, cls.IsBot)
}

func TestClassify_MissingHeadersScore(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	noLang := http.Header{}
	noLang.Set("Upgrade-Insecure-Requests", "1")
	cls := c.Classify(InboundRequest{SourceAddr: "198.51.100.10", UserAgent: ua, Headers: noLang})
	require.Equal(t, 2, cls.RiskScore)

	noUIR := http.Header{}
	noUIR.Set("Accept-Language", "en")
	cls = c.Classify(InboundRequest{SourceAddr: "198.51.100.10", UserAgent: ua, Headers: noUIR})
	require.Equal(t, 1, cls.RiskScore)

	cls = c.Classify(InboundRequest{SourceAddr: "198.51.100.10", UserAgent: ua, Headers: http.Header{}})
	require.Equal(t, 3, cls.RiskScore)
}

func TestClassify_WebviewTokens(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)
	cls := c.Classify(InboundRequest{
		SourceAddr: "198.51.100.10",
		UserAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Instagram 123.0",
		Headers:    fullBrowserHeaders(),
	})
	require.True(t, cls.IsSocialApp)
	require.True(t, cls.IsMobile)
	require.False(t, cls.IsBot)
}

func TestClassify_IOSWebviewInference(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)

	// WebKit on iPhone without the Safari token is an embedded browser.
	anonymousWebview := "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148"
	cls := c.Classify(InboundRequest{SourceAddr: "198.51.100.10", UserAgent: anonymousWebview, Headers: fullBrowserHeaders()})
	require.True(t, cls.IsSocialApp)
	require.True(t, cls.IsMobile)

	genuineSafari := "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"
	cls = c.Classify(InboundRequest{SourceAddr: "198.51.100.10", UserAgent: genuineSafari, Headers: fullBrowserHeaders()})
	require.False(t, cls.IsSocialApp)
	require.True(t, cls.IsMobile)

	iosChrome := "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/120.0 Mobile/15E148"
	cls = c.Classify(InboundRequest{SourceAddr: "198.51.100.10", UserAgent: iosChrome, Headers: fullBrowserHeaders()})
	require.False(t, cls.IsSocialApp)
}

func TestClassify_DatacenterAddressScoresFour(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	cls := c.Classify(InboundRequest{SourceAddr: "52.10.20.30", UserAgent: ua, Headers: fullBrowserHeaders()})
	require.Equal(t, 4, cls.RiskScore)

	cls = c.Classify(InboundRequest{SourceAddr: "198.51.100.10", UserAgent: ua, Headers: fullBrowserHeaders()})
	require.Equal(t, 0, cls.RiskScore)
}

func TestClassify_VerifiedCrawlerClaim(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)
	cls := c.Classify(InboundRequest{
		SourceAddr: "198.51.100.10",
		UserAgent:  "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		Headers:    http.Header{},
	})
	require.True(t, cls.IsVerifiedCrawlerClaim)
	require.Equal(t, "googlebot", cls.Claim)
	require.True(t, cls.IsBot)
}

func TestClassify_CleanDesktopBrowserScoresZero(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)
	cls := c.Classify(InboundRequest{
		SourceAddr: "198.51.100.10",
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		Headers:    fullBrowserHeaders(),
	})
	require.Equal(t, Classification{}, cls)
}

func TestClassify_AndroidIsMobileOnly(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t)
	cls := c.Classify(InboundRequest{
		SourceAddr: "198.51.100.10",
		UserAgent:  "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36",
		Headers:    fullBrowserHeaders(),
	})
	require.True(t, cls.IsMobile)
	require.False(t, cls.IsSocialApp)
	require.Equal(t, 0, cls.RiskScore)
}
