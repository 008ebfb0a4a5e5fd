package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/journal/internal/journalservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *journalservice.Service, authEnabled bool, token string, sseHandler http.Handler, defaults Defaults) chi.Router {
	h := NewHandler(svc, defaults)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/entries", h.ListEntries)
	r.Post("/entries", h.CreateEntry)
	r.Get("/entries/*", h.GetEntry)

	r.Get("/tags", h.ListTags)
	r.Post("/tags/rename", h.RenameTag)

	r.Get("/readme", h.Readme)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
