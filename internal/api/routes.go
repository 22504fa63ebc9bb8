package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/datasets/{datasetID}/export", h.SubmitExport)
		r.Get("/datasets/{datasetID}/exceptions", h.ListExceptions)
		r.Get("/datasets/{datasetID}/exceptions/summary", h.ExceptionsSummary)
		r.Delete("/datasets/{datasetID}/exceptions", h.ClearExceptions)
		r.Get("/datasets/{datasetID}/mappings", h.ListMappings)
		r.Get("/tasks/{taskID}", h.TaskStatus)
		r.Post("/registry/reload", h.ReloadRegistry)
		r.Get("/registry", h.RegistryInfo)
	})

	return r
}
