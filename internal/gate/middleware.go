package gate

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/linkforge/trafficgate/internal/events"
	"github.com/linkforge/trafficgate/internal/telemetry"
)

// SessionCookieName is the cookie carrying the PoW session token.
const SessionCookieName = "pow_session"

// Clock abstracts time.Now for event timestamps.
type Clock interface {
	Now() time.Time
}

// Gatekeeper runs the full pipeline for each request and enforces the
// resulting decision.
type Gatekeeper struct {
	classifier       *Classifier
	engine           *Engine
	publisher        events.Publisher
	clock            Clock
	logger           *zap.Logger
	trustProxyHeader bool
}

// NewGatekeeper wires the classifier and policy engine into an enforcing
// middleware.
func NewGatekeeper(
	classifier *Classifier,
	engine *Engine,
	publisher events.Publisher,
	clock Clock,
	logger *zap.Logger,
	trustProxyHeader bool,
) *Gatekeeper {
	return &Gatekeeper{
		classifier:       classifier,
		engine:           engine,
		publisher:        publisher,
		clock:            clock,
		logger:           logger,
		trustProxyHeader: trustProxyHeader,
	}
}

// Middleware classifies the request, applies the policy and acts on the
// verdict: pass through, redirect to the decoy page, or redirect to the
// challenge surface.
func (g *Gatekeeper) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := FromHTTP(r, g.trustProxyHeader)

		var sessionToken string
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			sessionToken = cookie.Value
		}

		cls := g.classifier.Classify(req)
		decision := g.engine.Decide(r.Context(), Input{
			Request:        req,
			Classification: cls,
			SessionToken:   sessionToken,
		})

		telemetry.ObserveDecision(decision.Verdict.String(), decision.Reason)
		g.record(req, cls, decision)

		switch decision.Verdict {
		case VerdictCloakToSafe, VerdictChallenge, VerdictBlockToSafe:
			http.Redirect(w, r, decision.RedirectTo, http.StatusFound)
		default:
			if decision.InAppOverlay {
				r = r.WithContext(WithInAppOverlay(r.Context()))
			}
			next.ServeHTTP(w, r)
		}
	})
}

// record logs and publishes decisions worth tuning on. Exempt-path, VIP
// and clean allows stay out of the event stream.
func (g *Gatekeeper) record(req InboundRequest, cls Classification, decision Decision) {
	switch decision.Reason {
	case ReasonExemptPath, ReasonVIPPass, ReasonClean:
		return
	}

	g.logger.Info("gate decision",
		zap.String("verdict", decision.Verdict.String()),
		zap.String("reason", decision.Reason),
		zap.String("source_addr", req.SourceAddr),
		zap.String("user_agent", req.UserAgent),
		zap.String("path", req.Path),
		zap.Int("risk_score", cls.RiskScore),
	)

	if g.publisher == nil {
		return
	}
	event := events.DecisionEvent{
		Timestamp:  g.clock.Now(),
		SourceAddr: req.SourceAddr,
		UserAgent:  req.UserAgent,
		Path:       req.Path,
		Verdict:    decision.Verdict.String(),
		Reason:     decision.Reason,
		RiskScore:  cls.RiskScore,
	}
	// Publishing must never delay or fail the response.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := g.publisher.Publish(ctx, event); err != nil {
			g.logger.Warn("decision event publish failed", zap.Error(err))
		}
	}()
}
