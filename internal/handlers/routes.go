package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes mounts every endpoint on router. limit wraps the mutating routes
// and may be nil.
func (h *Handlers) Routes(router *mux.Router, limit func(http.Handler) http.Handler) {
	wrap := func(fn http.HandlerFunc) http.Handler {
		if limit == nil {
			return fn
		}
		return limit(fn)
	}

	router.Handle("/register", wrap(h.HandleRegister)).Methods(http.MethodPost)
	router.Handle("/webhook/github", wrap(h.HandleGitHubWebhook)).Methods(http.MethodPost)
	router.HandleFunc("/preview", h.HandlePreview).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
}
