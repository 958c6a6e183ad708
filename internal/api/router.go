package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the service routes onto a chi router.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", app.HealthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/videos", app.UploadVideoHandler)
		r.Get("/videos/{id}", app.StreamVideoHandler)

		r.Route("/analyses", func(r chi.Router) {
			r.Post("/", app.CreateAnalysisHandler)
			r.Get("/", app.ListAnalysesHandler)
			r.Get("/{id}", app.GetAnalysisHandler)
			r.Delete("/{id}", app.DeleteAnalysisHandler)
		})
	})

	r.Get("/frames/{id}/{file}", app.FrameHandler)
	r.Get("/professional-frames/{file}", app.ProfessionalFrameHandler)

	return r
}
