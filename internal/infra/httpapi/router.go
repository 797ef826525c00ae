// internal/infra/httpapi/router.go
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/schedules", h.ListSchedules)
		r.Put("/schedules/{kind}", h.UpdateSchedule)
		r.Get("/workflows/{kind}/{date}", h.GetInstance)
		r.Post("/workflows/{kind}/{date}/{action}", h.HandleAction)
		r.Post("/trigger", h.Trigger)
	})

	return r
}
