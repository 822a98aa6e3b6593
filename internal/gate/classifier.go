package gate

import "strings"

// Risk score contributions per signal.
const (
	scoreBotToken        = 3
	scoreHeadless        = 5
	scoreNoAcceptLang    = 2
	scoreNoUpgradeInsec  = 1
	scoreDatacenterRange = 4
)

var iosTokens = []string{"iphone", "ipad", "ipod"}

// ClassifierConfig carries the signature lists the classifier matches
// against. All matches are case-insensitive substring checks.
type ClassifierConfig struct {
	BotTokens       []string
	HeadlessTokens  []string
	WebviewTokens   []string
	CrawlerClaims   []string
	DatacenterCIDRs []string
}

// Classifier inspects a single request's metadata and produces a
// Classification. Pure function of the request; no I/O, no mutation.
type Classifier struct {
	botTokens      []string
	headlessTokens []string
	webviewTokens  []string
	crawlerClaims  []string
	ranges         *RangeMatcher
}

// NewClassifier precompiles the configured signature lists.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	ranges, err := NewRangeMatcher(cfg.DatacenterCIDRs)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		botTokens:      lowerTokens(cfg.BotTokens),
		headlessTokens: lowerTokens(cfg.HeadlessTokens),
		webviewTokens:  lowerTokens(cfg.WebviewTokens),
		crawlerClaims:  lowerTokens(cfg.CrawlerClaims),
		ranges:         ranges,
	}, nil
}

// Classify scores the request. Total: every request yields a
// Classification, unrecognized traffic simply scores low.
func (c *Classifier) Classify(req InboundRequest) Classification {
	ua := strings.ToLower(req.UserAgent)
	var cls Classification

	if containsAny(ua, c.botTokens) {
		cls.IsBot = true
		cls.RiskScore += scoreBotToken
	}
	if containsAny(ua, c.headlessTokens) {
		cls.RiskScore += scoreHeadless
	}
	if req.Headers.Get("Accept-Language") == "" {
		cls.RiskScore += scoreNoAcceptLang
	}
	if req.Headers.Get("Upgrade-Insecure-Requests") == "" {
		cls.RiskScore += scoreNoUpgradeInsec
	}

	if containsAny(ua, c.webviewTokens) {
		cls.IsSocialApp = true
	}
	isIOS := containsAny(ua, iosTokens)
	// WebViews on iOS rarely self-identify: a WebKit UA without the
	// genuine Safari token or the iOS Chrome token is an embedded browser.
	if isIOS && !strings.Contains(ua, "safari") && !strings.Contains(ua, "crios") {
		cls.IsSocialApp = true
	}
	if isIOS || strings.Contains(ua, "android") {
		cls.IsMobile = true
	}

	if c.ranges.Contains(req.SourceAddr) {
		cls.RiskScore += scoreDatacenterRange
	}

	for _, claim := range c.crawlerClaims {
		if strings.Contains(ua, claim) {
			cls.IsVerifiedCrawlerClaim = true
			cls.Claim = claim
			break
		}
	}

	return cls
}

func lowerTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func containsAny(haystack string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}
