// Package api exposes the HTTP interface for the traffic gate.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkforge/trafficgate/internal/challenge"
	"github.com/linkforge/trafficgate/internal/gate"
	"github.com/linkforge/trafficgate/internal/links"
	"github.com/linkforge/trafficgate/internal/telemetry"
)

// Server wires HTTP handlers to the gating pipeline and the link store.
type Server struct {
	router chi.Router
	store  links.Store
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. Every route
// except the exempt surfaces (challenge, safe page, health, metrics) sits
// behind the gatekeeper.
func NewServer(
	gatekeeper *gate.Gatekeeper,
	challengeHandler *challenge.Handler,
	store links.Store,
	logger *zap.Logger,
) *Server {
	s := &Server{
		store:  store,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(telemetry.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	challengeHandler.Routes(r)
	r.Get("/safe", s.safePage)
	r.Get("/favicon.ico", s.favicon)

	r.Group(func(r chi.Router) {
		r.Use(gatekeeper.Middleware)
		r.Get("/{slug}", s.resolveLink)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The pipeline itself is stateless; readiness only depends on the
	// link store answering.
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.store.Resolve(ctx, "readyz-probe"); err != nil && !errors.Is(err, links.ErrNotFound) {
		writeError(w, http.StatusServiceUnavailable, "link store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// resolveLink returns the gated destination as a base64-encoded JSON
// payload; the landing page decodes it and performs the client-side
// redirect. Requests flagged as in-app webviews additionally get the
// overlay marker.
func (s *Server) resolveLink(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	link, err := s.store.Resolve(r.Context(), slug)
	if err != nil {
		if errors.Is(err, links.ErrNotFound) {
			writeError(w, http.StatusNotFound, "link unavailable")
			return
		}
		s.logger.Error("link resolution failed", zap.String("slug", slug), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "link unavailable")
		return
	}

	raw, err := json.Marshal(map[string]string{"u": link.Destination})
	if err != nil {
		s.logger.Error("payload encode failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "link unavailable")
		return
	}

	resp := map[string]any{"payload": base64.StdEncoding.EncodeToString(raw)}
	if gate.InAppOverlay(r.Context()) {
		resp["overlay"] = true
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) safePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(safePageHTML)); err != nil {
		s.logger.Error("safe page write failed", zap.Error(err))
	}
}

func (s *Server) favicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

const safePageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Curated Reading List</title>
<style>
body { font-family: Georgia, serif; max-width: 640px; margin: 48px auto; padding: 0 16px; color: #222; }
h1 { font-size: 1.6em; }
li { margin: 8px 0; }
</style>
</head>
<body>
<h1>Curated Reading List</h1>
<p>A small collection of articles and essays worth your time.</p>
<ul>
<li>The history of the printing press</li>
<li>How tides work</li>
<li>A beginner&rsquo;s guide to birdwatching</li>
<li>Why sourdough starters need patience</li>
</ul>
</body>
</html>
`
