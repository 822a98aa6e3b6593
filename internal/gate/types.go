// Package gate implements the per-request detection and decision pipeline:
// heuristic classification, the ordered gating policy and the enforcing
// HTTP middleware.
package gate

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// InboundRequest is the pipeline's view of one HTTP call. It is owned by
// the pipeline for the request's lifetime and never persisted.
type InboundRequest struct {
	SourceAddr string
	UserAgent  string
	Headers    http.Header
	Path       string
	RequestURI string
}

// FromHTTP derives an InboundRequest from an http.Request. When
// trustProxyHeader is set, the leftmost X-Forwarded-For entry wins over
// the socket peer address.
func FromHTTP(r *http.Request, trustProxyHeader bool) InboundRequest {
	return InboundRequest{
		SourceAddr: RemoteAddr(r, trustProxyHeader),
		UserAgent:  r.UserAgent(),
		Headers:    r.Header,
		Path:       r.URL.Path,
		RequestURI: r.URL.RequestURI(),
	}
}

// RemoteAddr resolves the source address of a request.
func RemoteAddr(r *http.Request, trustProxyHeader bool) string {
	if trustProxyHeader {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if addr := strings.TrimSpace(first); addr != "" {
				return addr
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Classification is the immutable result of classifying one request.
type Classification struct {
	IsBot                  bool
	IsSocialApp            bool
	IsMobile               bool
	IsVerifiedCrawlerClaim bool
	Claim                  string
	RiskScore              int
}

// Verdict is the gate's answer for a request.
type Verdict int

const (
	// VerdictAllow passes the request through to the real resolver.
	VerdictAllow Verdict = iota
	// VerdictCloakToSafe redirects the request to the decoy page.
	VerdictCloakToSafe
	// VerdictChallenge redirects the request to the PoW surface.
	VerdictChallenge
	// VerdictBlockToSafe is a hard-block outcome, served as the decoy page.
	VerdictBlockToSafe
)

// String returns the verdict label used in logs and metrics.
func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictCloakToSafe:
		return "cloak_to_safe"
	case VerdictChallenge:
		return "challenge"
	case VerdictBlockToSafe:
		return "block_to_safe"
	default:
		return "unknown"
	}
}

// Decision is a verdict plus the response action to take. It is consumed
// immediately and never retained.
type Decision struct {
	Verdict      Verdict
	Reason       string
	RedirectTo   string
	InAppOverlay bool
}

// Decision reasons, recorded on logs, metrics and published events.
const (
	ReasonExemptPath         = "exempt_path"
	ReasonVIPPass            = "vip_pass"
	ReasonPreviewCrawler     = "preview_crawler"
	ReasonInAppWebview       = "in_app_webview"
	ReasonCrawlerClaimFailed = "crawler_claim_failed"
	ReasonVerifiedCrawler    = "verified_crawler"
	ReasonHighRisk           = "high_risk"
	ReasonRiskChallenge      = "risk_challenge"
	ReasonClean              = "clean"
)

type overlayKey struct{}

// WithInAppOverlay marks the request context so the downstream resolver
// can render the in-app-browser overlay.
func WithInAppOverlay(ctx context.Context) context.Context {
	return context.WithValue(ctx, overlayKey{}, true)
}

// InAppOverlay reports whether the request was flagged as an in-app webview.
func InAppOverlay(ctx context.Context) bool {
	flagged, _ := ctx.Value(overlayKey{}).(bool)
	return flagged
}
