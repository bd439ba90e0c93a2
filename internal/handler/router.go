package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter 注册所有路由
func NewRouter(h *VenueHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(AccessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/venues/match", h.Match)
		r.Post("/venues/annotate", h.Annotate)
		r.Post("/venues/annotate/sse", h.AnnotateSSE)

		r.Get("/dataset", h.Dataset)
		r.Post("/dataset/invalidate", h.InvalidateDataset)

		r.Get("/settings", h.Settings)
		r.Put("/settings", h.UpdateSettings)
	})

	return r
}
