// Package api exposes the console's REST surface: account management,
// provider proxies, template previews and import job control.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/inboxops/brevo-console/internal/accounts"
	"github.com/inboxops/brevo-console/internal/config"
	"github.com/inboxops/brevo-console/internal/importer"
	"github.com/inboxops/brevo-console/internal/templates"
)

// Server represents the console API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer wires the handlers, health checker and routes into a server
func NewServer(cfg *config.Config, store accounts.Store, engine *importer.Engine, previewer *templates.Previewer) *Server {
	handlers := NewHandlers(cfg.Brevo, store, engine, previewer)
	health := NewHealthChecker(cfg.Brevo, store, engine)
	router := SetupRoutes(handlers, health, cfg.CORS)

	return &Server{
		config:  cfg.Server,
		handler: router,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Import batches arrive as one pasted text body, so read and write
		// timeouts leave room for large payloads.
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
