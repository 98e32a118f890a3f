package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(recoverer)

	router.Get("/SetLanguage", h.SetLanguage)
	router.Get("/AddLanguage", h.AddLanguage)
	router.Get("/RemoveLanguage", h.RemoveLanguage)
	router.Get("/GetMessages", h.GetMessages)

	router.NotFound(h.UnknownCommand)
	router.MethodNotAllowed(h.UnknownCommand)
	return router
}
