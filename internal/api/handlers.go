package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/geonote/internal/apperr"
	"github.com/starford/geonote/internal/geo"
	"github.com/starford/geonote/internal/geocode"
	"github.com/starford/geonote/internal/notestore"
)

const maxBodyBytes = 1 << 20 // notes are short text; 1 MB is generous

// GeocodeClient is the forward/reverse geocoding collaborator.
type GeocodeClient interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
	Search(ctx context.Context, query string) ([]geocode.Result, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc      *notestore.Service
	geocoder GeocodeClient
}

// NewHandler creates a new Handler.
func NewHandler(svc *notestore.Service, geocoder GeocodeClient) *Handler {
	return &Handler{svc: svc, geocoder: geocoder}
}

// ListNotes handles GET /api/notes. With lat, lng, and radius query
// parameters the listing is restricted to notes within radius km of the
// center; radius=all (or no radius) returns everything.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	radius := q.Get("radius")

	var notes = h.svc.List(r.Context())
	if radius != "" && radius != "all" {
		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
		radiusKm, radErr := strconv.ParseFloat(radius, 64)
		if latErr != nil || lngErr != nil || radErr != nil || radiusKm < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("radius filtering requires numeric lat, lng, and radius"))
			return
		}
		notes = h.svc.FilterByRadius(r.Context(), geo.Point{Lat: lat, Lng: lng}, radiusKm)
	}

	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	note, err := h.svc.Create(r.Context(), req.Content, req.Lat, req.Lng)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	note, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.Int64("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}. Deletion is idempotent: a
// missing id still yields 204.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		slog.Error("delete note failed", slog.Int64("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportCSV handles GET /api/export.csv and streams the collection as a CSV
// download. An empty collection is a validation rejection, not an empty file.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.ExportCSV(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrEmptyExport) {
			writeJSON(w, http.StatusBadRequest, errorBody("no notes to export"))
		} else {
			slog.Error("export failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", notestore.ExportFilenameNow()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SearchNotes handles GET /api/search, full-text search over note content and
// enriched addresses.
func (h *Handler) SearchNotes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	hits, err := h.svc.Search(r.Context(), query, limit)
	if err != nil {
		slog.Error("note search failed", slog.String("q", query), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	out := make([]SearchHit, len(hits))
	for i, hit := range hits {
		out[i] = SearchHit{ID: hit.ID, Snippet: hit.Snippet, Address: hit.Address}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: out})
}

// GeocodeSearch handles GET /api/geocode/search (forward geocoding). An empty
// candidate list is a normal 200; a transport failure is a 502 so the UI can
// distinguish "no results" from "try again".
func (h *Handler) GeocodeSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	if h.geocoder == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("geocoding is disabled"))
		return
	}

	results, err := h.geocoder.Search(r.Context(), query)
	if err != nil {
		slog.Warn("location search failed", slog.String("q", query), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("geocoding service unavailable"))
		return
	}
	out := make([]PlaceCandidate, len(results))
	for i, res := range results {
		out[i] = PlaceCandidate{Lat: res.Lat, Lng: res.Lng, DisplayName: res.DisplayName}
	}
	writeJSON(w, http.StatusOK, GeocodeSearchResponse{Results: out})
}

// GeocodeReverse handles GET /api/geocode/reverse, resolving a coordinate to
// a display address for the "selected location" status line.
func (h *Handler) GeocodeReverse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("numeric lat and lng are required"))
		return
	}
	if h.geocoder == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("geocoding is disabled"))
		return
	}

	addr, err := h.geocoder.Reverse(r.Context(), lat, lng)
	if err != nil {
		slog.Warn("reverse geocode failed",
			slog.Float64("lat", lat), slog.Float64("lng", lng), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("geocoding service unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, ReverseResponse{Address: addr})
}

// DemoLocations handles GET /api/locations/demo, the fallback spots offered
// when geolocation is unsupported or denied.
func (h *Handler) DemoLocations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, demoLocations)
}

func noteID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
