package api

import (
	"github.com/starford/geonote/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Content string  `json:"content"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes"`
	Total int           `json:"total"`
}

// SearchResponse wraps note text-search results.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// SearchHit is a single note search hit.
type SearchHit struct {
	ID      int64  `json:"id"`
	Snippet string `json:"snippet"`
	Address string `json:"address"`
}

// GeocodeSearchResponse wraps forward-geocoding candidates.
type GeocodeSearchResponse struct {
	Results []PlaceCandidate `json:"results"`
}

// PlaceCandidate is one forward-geocoding candidate.
type PlaceCandidate struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DisplayName string  `json:"display_name"`
}

// ReverseResponse is the reverse-geocoding payload.
type ReverseResponse struct {
	Address string `json:"address"`
}

// DemoLocation is a named fallback location offered when the browser cannot
// provide a real position.
type DemoLocation struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}

// demoLocations are the well-known fallback spots shown by the UI.
var demoLocations = []DemoLocation{
	{Lat: 21.0285, Lng: 105.8542, Name: "Hồ Gươm, Hà Nội"},
	{Lat: 21.0077, Lng: 105.8431, Name: "Văn Miếu, Hà Nội"},
	{Lat: 21.0245, Lng: 105.8412, Name: "Nhà thờ lớn Hà Nội"},
	{Lat: 10.7769, Lng: 106.7009, Name: "Bến Thành, TP.HCM"},
	{Lat: 16.0544, Lng: 108.2022, Name: "Cầu Rồng, Đà Nẵng"},
}
