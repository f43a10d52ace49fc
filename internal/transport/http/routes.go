package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

func base() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// after RequestID
	r.Use(RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return r
}

// Routes is the session service. metrics may be nil.
func Routes(h *Handler, metrics http.Handler) http.Handler {
	r := base()

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.RegisterJob)
		r.Get("/", h.ListJobs)
		r.Route("/{jobId}", func(r chi.Router) {
			r.Get("/", h.GetJob)
			r.Delete("/", h.RemoveJob)

			r.Get("/annotations", h.ListAnnotations)
			r.Post("/annotations", h.CreateAnnotation)
			r.Post("/annotations/load", h.LoadAnnotations)

			r.Post("/edit-mode", h.EnterEditMode)
			r.Delete("/edit-mode", h.ExitEditMode)
			r.Post("/save", h.SaveJobChanges)
			r.Post("/revert", h.RevertJobChanges)

			r.Post("/drag/start", h.DragStart)
			r.Post("/drag/move", h.Drag)
			r.Post("/drag/end", h.DragEnd)
			r.Post("/reset-position", h.ResetPosition)
		})
	})

	r.Route("/annotations/{id}", func(r chi.Router) {
		r.Get("/", h.GetAnnotation)
		r.Patch("/", h.EditAnnotation)
		r.Delete("/", h.DeleteAnnotation)
		r.Post("/save", h.SaveAnnotation)
		r.Post("/finish", h.FinishEditing)
		r.Post("/revert", h.RevertAnnotation)
	})

	r.Get("/scene", h.Scene)
	r.Put("/scene/objects/{id}/path", h.SetPath)

	r.Get("/notifications", h.Notifications)
	r.Get("/session", h.Session)
	r.Put("/session/token", h.SetToken)

	return r
}

// APIRoutes is the reference annotations API under /api. Every annotation
// route requires the bearer token.
func APIRoutes(h *APIHandler, token string, metrics http.Handler) http.Handler {
	r := base()

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireBearer(token))
		r.Get("/jobs/{jobId}/annotations", h.ListJobAnnotations)
		r.Post("/jobs/{jobId}/annotations", h.CreateJobAnnotation)
		r.Put("/annotations/{id}", h.UpdateAnnotation)
		r.Delete("/annotations/{id}", h.DeleteAnnotation)
	})

	return r
}
