// Package api exposes the HTTP surface: the streaming chat endpoint,
// session CRUD, and health probes.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitlane/f1gpt/internal/chat"
	"github.com/pitlane/f1gpt/internal/session"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Pipeline     *chat.Pipeline // Required
	SessionStore *session.Store // Optional: nil disables session persistence API
	Pool         *pgxpool.Pool  // Optional: nil disables pool stats in /ready
	CORSOrigins  []string
	TrustProxy   bool // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst    int  // Per-IP burst size (0 = default 60)
}

// Server is the JSON/SSE HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes and middleware wired.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("chat pipeline is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	ch := &chatHandler{
		pipeline: cfg.Pipeline,
		sessions: cfg.SessionStore,
		logger:   logger,
	}
	mux.HandleFunc("POST /api/v1/chat", ch.send)

	if cfg.SessionStore != nil {
		sh := &sessionHandler{store: cfg.SessionStore, logger: logger}
		mux.HandleFunc("GET /api/v1/sessions", sh.list)
		mux.HandleFunc("POST /api/v1/sessions", sh.create)
		mux.HandleFunc("DELETE /api/v1/sessions", sh.deleteAll)
		mux.HandleFunc("GET /api/v1/sessions/{id}", sh.get)
		mux.HandleFunc("GET /api/v1/sessions/{id}/messages", sh.messages)
		mux.HandleFunc("PATCH /api/v1/sessions/{id}", sh.rename)
		mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.deleteOne)
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery -> RequestID -> Logging -> CORS -> RateLimit -> Routes
	// RequestID precedes Logging so request_id shows up in log lines;
	// CORS precedes RateLimit so preflight responses carry CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
