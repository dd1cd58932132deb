package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"skidbuild/infrastructure/audit"
	"skidbuild/infrastructure/operator"
	"skidbuild/infrastructure/sqlite"
	"skidbuild/workflow"
)

var ShutdownTimeout = 2 * time.Second

// Server bundles dependencies and route wiring.
type Server struct {
	Addr   string
	ln     net.Listener
	server *http.Server
	router *chi.Mux

	DB       *sqlite.DB
	Audit    *audit.Service
	Sessions *workflow.Manager
}

// NewServer creates a new http server.
func NewServer(addr string, db *sqlite.DB, auditSvc *audit.Service, sessions *workflow.Manager) *Server {
	s := &Server{
		Addr:     addr,
		router:   chi.NewRouter(),
		DB:       db,
		Audit:    auditSvc,
		Sessions: sessions,
		server: &http.Server{
			MaxHeaderBytes: 1 << 20,
		},
	}

	// Secure headers first.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	})

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Compress(5))

	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Group(func(r chi.Router) {
		r.Route("/api", func(r chi.Router) {
			r.Use(operator.Middleware)
			s.RegisterScanRoutes(r)
			s.RegisterOrderRoutes(r)
		})
	})

	s.server.Handler = s.router
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	var err error
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	go s.server.Serve(s.ln)
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.ln == nil {
		return fmt.Errorf("HTTP server has not been started or is already stopped")
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %v", err)
	}
	s.ln = nil
	return nil
}
