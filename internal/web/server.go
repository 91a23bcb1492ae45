// Package web exposes the attendance engine over HTTP.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ngxtan/rollcall/internal/attendance"
	"github.com/ngxtan/rollcall/internal/config"
	"github.com/ngxtan/rollcall/internal/database"
	"github.com/ngxtan/rollcall/internal/web/middleware"
)

// Stores bundles the storage interfaces the server needs.
type Stores struct {
	Persons  database.PersonStore
	Classes  database.ClassStore
	Sessions database.SessionStore
	Records  database.RecordStore
}

// Server represents the web server.
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	service    *attendance.Service
	stores     Stores
}

// NewServer creates a new web server.
func NewServer(cfg *config.Config, service *attendance.Service, stores Stores) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:  cfg,
		router:  r,
		service: service,
		stores:  stores,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(time.Minute))
	r.Use(middleware.CORS())

	tokens := middleware.NewTokenManager(cfg.Auth.JWTSecret, cfg.Policy.Auth.TokenTTL())
	s.setupRoutes(tokens)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
