package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/geonote/internal/notestore"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *notestore.Service, geocoder GeocodeClient, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, geocoder)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// CSV export.
	r.Get("/export.csv", h.ExportCSV)

	// Full-text note search.
	r.Get("/search", h.SearchNotes)

	// Geocoding.
	r.Get("/geocode/search", h.GeocodeSearch)
	r.Get("/geocode/reverse", h.GeocodeReverse)

	// Geolocation fallback spots.
	r.Get("/locations/demo", h.DemoLocations)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
