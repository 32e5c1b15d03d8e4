package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HomeHandler sends the bare root to the landing page of the console.
type HomeHandler struct{}

func (h HomeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.root)
}

func (h HomeHandler) root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
