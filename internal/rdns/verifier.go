// Package rdns authenticates self-declared crawlers via reverse DNS.
package rdns

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linkforge/trafficgate/internal/telemetry"
)

// Resolver performs reverse address lookups. *net.Resolver satisfies it.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Verifier checks that a source address reverse-resolves into one of the
// trusted domains for its claimed crawler identity. Every failure mode
// (unknown claim, lookup error, timeout, no matching name) is "untrusted":
// an unverifiable claim is treated as a lie, never as a pass.
type Verifier struct {
	resolver Resolver
	timeout  time.Duration
	claims   map[string][]string
	logger   *zap.Logger
}

// New builds a Verifier. claims maps a claim name to its trusted reverse
// hostname suffixes.
func New(resolver Resolver, timeout time.Duration, claims map[string][]string, logger *zap.Logger) *Verifier {
	normalized := make(map[string][]string, len(claims))
	for claim, suffixes := range claims {
		claim = strings.ToLower(strings.TrimSpace(claim))
		if claim == "" {
			continue
		}
		cleaned := make([]string, 0, len(suffixes))
		for _, s := range suffixes {
			s = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(s, ".")))
			if s != "" {
				cleaned = append(cleaned, s)
			}
		}
		normalized[claim] = cleaned
	}
	return &Verifier{
		resolver: resolver,
		timeout:  timeout,
		claims:   normalized,
		logger:   logger,
	}
}

// Verify reports whether addr reverse-resolves to a hostname under one of
// the trusted domains for claim. Single bounded lookup, no retries.
func (v *Verifier) Verify(ctx context.Context, addr, claim string) bool {
	suffixes := v.claims[strings.ToLower(claim)]
	if len(suffixes) == 0 {
		telemetry.ObserveRDNSLookup("unknown_claim")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	names, err := v.resolver.LookupAddr(ctx, addr)
	if err != nil {
		telemetry.ObserveRDNSLookup("error")
		v.logger.Debug("reverse lookup failed",
			zap.String("addr", addr),
			zap.String("claim", claim),
			zap.Error(err),
		)
		return false
	}

	for _, name := range names {
		name = strings.ToLower(strings.TrimSuffix(name, "."))
		for _, suffix := range suffixes {
			if name == suffix || strings.HasSuffix(name, "."+suffix) {
				telemetry.ObserveRDNSLookup("verified")
				return true
			}
		}
	}
	telemetry.ObserveRDNSLookup("mismatch")
	return false
}
