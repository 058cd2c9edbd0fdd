package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attend/internal/web/handlers"
	"github.com/kozaktomas/face-attend/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	probesHandler := handlers.NewProbesHandler(s.pipeline, s.encoder)
	sessionsHandler := handlers.NewSessionsHandler(s.pipeline)
	reviewHandler := handlers.NewReviewHandler(s.pipeline)
	enrollHandler := handlers.NewEnrollHandler(s.encodings, s.index, s.config.Match.EmbeddingDim)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIKey(s.config.Web.APIKey))

			// Probes
			r.Post("/sessions/{id}/probes", probesHandler.Submit)
			r.Post("/sessions/{id}/probes/image", probesHandler.SubmitImage)

			// Sessions
			r.Get("/sessions/{id}", sessionsHandler.Get)
			r.Post("/sessions/{id}/close", sessionsHandler.Close)
			r.Get("/sessions/{id}/records", sessionsHandler.Records)

			// Review queue
			r.Get("/sessions/{id}/review", reviewHandler.ListPending)
			r.Post("/sessions/{id}/review/bulk", reviewHandler.BulkResolve)
			r.Post("/review/{aggregateID}", reviewHandler.Resolve)

			// Enrollment
			r.Post("/people/{personID}/encodings", enrollHandler.Save)
			r.Get("/people/{personID}/encodings", enrollHandler.List)
			r.Delete("/people/{personID}/encodings/{encodingID}", enrollHandler.Revoke)
		})
	})
}
