package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Project resource
	r.Route("/project/{projectID}", func(r chi.Router) {
		r.Get("/", s.getProject)
		r.Post("/", s.putProject)
	})
	r.Get("/project", s.listProjects)

	// Planning (SSE response)
	r.Post("/plan", s.planSession)

	r.Get("/health", s.health)
}
