package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/events", s.handleListEvents)

		r.Route("/pins", func(r chi.Router) {
			r.Get("/", s.handleListPins)
			r.Get("/{name}", s.handleGetPin)
		})

		r.Get("/ws", s.handleWebSocket)
	})
	if p := s.wsCfg.Path; p != "" && p != "/api/v1/ws" {
		r.Get(p, s.handleWebSocket)
	}

	return r
}
