// Package challenge serves the proof-of-work puzzle page and its
// verification endpoint.
package challenge

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/linkforge/trafficgate/internal/gate"
	"github.com/linkforge/trafficgate/internal/pow"
	"github.com/linkforge/trafficgate/internal/telemetry"
)

// Handler exposes the challenge surface.
type Handler struct {
	engine           *pow.Engine
	cookieSecure     bool
	trustProxyHeader bool
	logger           *zap.Logger
	page             *template.Template
}

// NewHandler constructs the challenge surface around a PoW engine.
func NewHandler(engine *pow.Engine, cookieSecure, trustProxyHeader bool, logger *zap.Logger) *Handler {
	return &Handler{
		engine:           engine,
		cookieSecure:     cookieSecure,
		trustProxyHeader: trustProxyHeader,
		logger:           logger,
		page:             template.Must(template.New("challenge").Parse(pageTemplate)),
	}
}

// Routes mounts the challenge endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/challenge", h.serveChallenge)
	r.Get("/challenge/verify", h.verifySolution)
}

// serveChallenge issues a fresh challenge when called without a prefix,
// otherwise renders the solver page for the supplied parameters.
func (h *Handler) serveChallenge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	back := sanitizeBack(q.Get("back"))

	prefix := q.Get("prefix")
	if prefix == "" {
		ch, err := h.engine.NewChallenge()
		if err != nil {
			h.logger.Error("challenge generation failed", zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		telemetry.ObserveChallengeIssued()
		target := fmt.Sprintf("/challenge?prefix=%s&difficulty=%d&back=%s",
			url.QueryEscape(ch.Prefix), ch.Difficulty, url.QueryEscape(back))
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	difficulty := h.engine.Difficulty()
	if d, err := strconv.Atoi(q.Get("difficulty")); err == nil && d > 0 {
		difficulty = d
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := h.page.Execute(w, map[string]any{
		"Prefix":     prefix,
		"Difficulty": difficulty,
		"Back":       back,
	})
	if err != nil {
		h.logger.Error("challenge page render failed", zap.Error(err))
	}
}

// verifySolution checks the solved nonce and, on success, sets the session
// cookie and redirects to the original destination. The solution is always
// checked against the configured difficulty, not a client-supplied one.
func (h *Handler) verifySolution(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := q.Get("prefix")
	nonce := q.Get("nonce")
	if prefix == "" || nonce == "" {
		http.Error(w, "missing prefix or nonce", http.StatusBadRequest)
		return
	}

	ok := h.engine.VerifySolution(prefix, nonce, h.engine.Difficulty())
	telemetry.ObservePoWVerification(ok)
	if !ok {
		http.Error(w, "invalid solution", http.StatusForbidden)
		return
	}

	addr := gate.RemoteAddr(r, h.trustProxyHeader)
	token := h.engine.IssueToken(addr)
	telemetry.ObserveTokenIssued()
	h.logger.Info("pow session issued", zap.String("source_addr", addr))

	http.SetCookie(w, &http.Cookie{
		Name:     gate.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, sanitizeBack(q.Get("back")), http.StatusFound)
}

// sanitizeBack constrains redirect targets to same-site paths so the
// verifier cannot be used as an open redirector.
func sanitizeBack(back string) string {
	if back == "" || back[0] != '/' {
		return "/"
	}
	if len(back) > 1 && (back[1] == '/' || back[1] == '\\') {
		return "/"
	}
	return back
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="robots" content="noindex">
<title>Checking your browser</title>
<style>
body { font-family: -apple-system, sans-serif; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; background: #fafafa; color: #333; }
.card { text-align: center; }
.spinner { margin: 0 auto 16px; width: 32px; height: 32px; border: 3px solid #ddd; border-top-color: #555; border-radius: 50%; animation: spin 0.8s linear infinite; }
@keyframes spin { to { transform: rotate(360deg); } }
</style>
</head>
<body>
<div class="card">
<div class="spinner"></div>
<p>Checking your browser&hellip;</p>
</div>
<script>
const prefix = {{.Prefix}};
const difficulty = {{.Difficulty}};
const back = {{.Back}};
const target = "0".repeat(difficulty);

async function sha256Hex(input) {
  const data = new TextEncoder().encode(input);
  const digest = await crypto.subtle.digest("SHA-256", data);
  return Array.from(new Uint8Array(digest))
    .map((b) => b.toString(16).padStart(2, "0"))
    .join("");
}

async function solve() {
  let nonce = 0;
  for (;;) {
    const digest = await sha256Hex(prefix + nonce);
    if (digest.startsWith(target)) {
      window.location = "/challenge/verify?prefix=" + encodeURIComponent(prefix) +
        "&nonce=" + nonce + "&back=" + encodeURIComponent(back);
      return;
    }
    nonce++;
    if (nonce % 1000 === 0) {
      await new Promise((resolve) => setTimeout(resolve, 0));
    }
  }
}

solve();
</script>
</body>
</html>
`
