package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/keepmd/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/toc", h.TOC)

	r.Get("/tags", h.ListTags)
	r.Get("/tags/{tag}", h.NotesByTag)

	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)

	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
