package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withLogging)

	router.Get("/healthz", h.health)

	router.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.listTasks)
		r.Get("/{name}", h.taskStatus)
		r.Post("/{name}", h.startTask)
		r.Delete("/{name}", h.stopTask)
	})

	router.Get("/history", h.listHistory)
	router.Get("/history/summary", h.historySummary)
	router.Get("/templates/check", h.checkTemplates)

	return router
}
