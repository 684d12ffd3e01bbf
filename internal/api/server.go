// Package api is the HTTP transport: thin handlers over the dialogue
// orchestrator, session store, and offer state. Handlers only translate
// between JSON and the domain; every decision lives below this layer.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/jupiterlabs/reengage/internal/config"
	"github.com/jupiterlabs/reengage/internal/dialogue"
	"github.com/jupiterlabs/reengage/internal/log"
	"github.com/jupiterlabs/reengage/internal/offer"
	"github.com/jupiterlabs/reengage/internal/session"
)

// Responder runs dialogue turns. Satisfied by *dialogue.Orchestrator;
// declared here so handler tests can script replies.
type Responder interface {
	Respond(ctx context.Context, userID, text, displayName string) (dialogue.Reply, error)
	StartConversation(ctx context.Context, ev dialogue.Event) (dialogue.Reply, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger   log.Logger
	Dialogue Responder      // Required
	Sessions *session.Store // Required
	Offers   *offer.State   // Required
	APIKey   string         // Empty disables API-key auth
	WhatsApp config.WhatsAppConfig
	Ready    func() error // Optional readiness probe, nil means always ready
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Dialogue == nil {
		return nil, errors.New("dialogue responder is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Offers == nil {
		return nil, errors.New("offer state is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{dialogue: cfg.Dialogue, sessions: cfg.Sessions, logger: logger}
	oh := &offerHandler{offers: cfg.Offers, logger: logger}
	wh := &webhookHandler{
		dialogue:    cfg.Dialogue,
		verifyToken: cfg.WhatsApp.VerifyToken,
		appSecret:   cfg.WhatsApp.AppSecret,
		logger:      logger,
	}

	mux := http.NewServeMux()

	// Conversation
	mux.HandleFunc("POST /api/init", ch.start)
	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("POST /api/reset", ch.reset)

	// Session inspection
	mux.HandleFunc("GET /api/sessions/{user_id}", ch.getSession)
	mux.HandleFunc("GET /api/stats", ch.stats)

	// Offer management
	mux.HandleFunc("GET /api/offer", oh.get)
	mux.HandleFunc("PUT /api/offer", oh.put)

	// WhatsApp webhook
	mux.HandleFunc("GET /webhook", wh.verify)
	mux.HandleFunc("POST /webhook", wh.receive)

	// Build middleware stack (outermost first):
	//   Recovery → Logging → Auth → Routes
	var handler http.Handler = mux
	handler = authMiddleware(cfg.APIKey, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Ready))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
