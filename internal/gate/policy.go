package gate

import (
	"context"
	"net/url"
	"strings"
)

// TokenVerifier validates a PoW session token against the presenting
// source address.
type TokenVerifier interface {
	VerifyToken(token, addr string) bool
}

// CrawlerVerifier confirms a self-declared crawler identity. It is the
// only potentially slow stage; implementations must honor ctx and fail
// closed.
type CrawlerVerifier interface {
	Verify(ctx context.Context, addr, claim string) bool
}

// Input is everything a policy rule may consult for one request.
type Input struct {
	Request        InboundRequest
	Classification Classification
	SessionToken   string
}

// rule is one predicate→decision pair. ok=false means "no opinion, ask
// the next rule".
type rule struct {
	name string
	eval func(ctx context.Context, in Input) (Decision, bool)
}

// PolicyConfig tunes the ordered gating policy.
type PolicyConfig struct {
	ExemptPaths     []string
	PreviewCrawlers []string
	SafePath        string
	ChallengePath   string
	ChallengeScore  int
	BlockScore      int
}

// Engine evaluates the gating policy as an explicit ordered rule list,
// first match wins, so precedence stays auditable rule by rule.
type Engine struct {
	rules []rule
}

// NewEngine builds the rule list in policy order.
func NewEngine(cfg PolicyConfig, tokens TokenVerifier, crawlers CrawlerVerifier) *Engine {
	safePath := cfg.SafePath
	if safePath == "" {
		safePath = "/safe"
	}
	challengePath := cfg.ChallengePath
	if challengePath == "" {
		challengePath = "/challenge"
	}
	previewCrawlers := lowerTokens(cfg.PreviewCrawlers)

	e := &Engine{}
	e.rules = []rule{
		{name: "exempt-path", eval: func(_ context.Context, in Input) (Decision, bool) {
			for _, prefix := range cfg.ExemptPaths {
				if strings.HasPrefix(in.Request.Path, prefix) {
					return Decision{Verdict: VerdictAllow, Reason: ReasonExemptPath}, true
				}
			}
			return Decision{}, false
		}},
		{name: "vip-pass", eval: func(_ context.Context, in Input) (Decision, bool) {
			if in.SessionToken != "" && tokens.VerifyToken(in.SessionToken, in.Request.SourceAddr) {
				return Decision{Verdict: VerdictAllow, Reason: ReasonVIPPass}, true
			}
			return Decision{}, false
		}},
		{name: "social-app", eval: func(_ context.Context, in Input) (Decision, bool) {
			// The link-preview crawler must see decoy content or the
			// destination risks being flagged in-app.
			if containsAny(strings.ToLower(in.Request.UserAgent), previewCrawlers) {
				return Decision{
					Verdict:    VerdictCloakToSafe,
					Reason:     ReasonPreviewCrawler,
					RedirectTo: safePath,
				}, true
			}
			if !in.Classification.IsSocialApp {
				return Decision{}, false
			}
			return Decision{
				Verdict:      VerdictAllow,
				Reason:       ReasonInAppWebview,
				InAppOverlay: true,
			}, true
		}},
		{name: "verified-crawler-claim", eval: func(ctx context.Context, in Input) (Decision, bool) {
			if !in.Classification.IsVerifiedCrawlerClaim {
				return Decision{}, false
			}
			// Genuine crawlers are cloaked too: search indexes should
			// reflect the decoy content, not the gated destination.
			reason := ReasonCrawlerClaimFailed
			if crawlers.Verify(ctx, in.Request.SourceAddr, in.Classification.Claim) {
				reason = ReasonVerifiedCrawler
			}
			return Decision{
				Verdict:    VerdictCloakToSafe,
				Reason:     reason,
				RedirectTo: safePath,
			}, true
		}},
		{name: "risk-block", eval: func(_ context.Context, in Input) (Decision, bool) {
			if cfg.BlockScore > 0 && in.Classification.RiskScore >= cfg.BlockScore {
				return Decision{
					Verdict:    VerdictBlockToSafe,
					Reason:     ReasonHighRisk,
					RedirectTo: safePath,
				}, true
			}
			return Decision{}, false
		}},
		{name: "risk-challenge", eval: func(_ context.Context, in Input) (Decision, bool) {
			if in.Classification.RiskScore >= cfg.ChallengeScore {
				return Decision{
					Verdict:    VerdictChallenge,
					Reason:     ReasonRiskChallenge,
					RedirectTo: challengePath + "?back=" + url.QueryEscape(in.Request.RequestURI),
				}, true
			}
			return Decision{}, false
		}},
	}
	return e
}

// Decide walks the ordered rules and returns the first match; a request
// no rule claims is allowed.
func (e *Engine) Decide(ctx context.Context, in Input) Decision {
	for _, r := range e.rules {
		if decision, ok := r.eval(ctx, in); ok {
			return decision
		}
	}
	return Decision{Verdict: VerdictAllow, Reason: ReasonClean}
}
