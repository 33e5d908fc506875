package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/verifyhub/internal/config"
)

// Server is the HTTP front of the verification service.
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

func NewServer(cfg config.ServerConfig, authCfg config.AuthConfig, handlers *Handlers) *Server {
	return &Server{
		config:  cfg,
		handler: SetupRoutes(handlers, authCfg, cfg.AllowedOrigins),
	}
}

// ListenAndServe starts the HTTP server. Read and write timeouts leave
// room for large CSV uploads and provider-streamed downloads.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       2 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
