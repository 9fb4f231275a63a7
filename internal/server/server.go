// Package server provides the HTTP backend for the plan store: the
// project resource (load/save of project documents) and the planning
// endpoint that streams step events over SSE.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/planstudio-ai/planstudio/internal/logging"
	"github.com/planstudio-ai/planstudio/internal/storage"
	"github.com/planstudio-ai/planstudio/pkg/types"
)

// PlanFunc produces the step stream for one planning request. It is
// called on the request goroutine; emit delivers one step to the client
// and reports a write error when the client is gone. Returning an error
// emits a normalized error step before the stream closes.
type PlanFunc func(ctx context.Context, req types.PlanRequest, emit func(types.StepEvent) error) error

// Config holds server configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// HeartbeatInterval is the SSE keep-alive period on /plan.
	// Zero means SSEHeartbeatInterval.
	HeartbeatInterval time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no write timeout, /plan streams
	}
}

// Server is the HTTP server.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server
	storage *storage.Storage
	plan    PlanFunc
	log     zerolog.Logger
}

// New creates a Server over a project document store and a planner.
func New(cfg *Config, store *storage.Storage, plan PlanFunc) *Server {
	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		storage: store,
		plan:    plan,
		log:     logging.ForComponent("server"),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
