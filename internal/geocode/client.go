// Package geocode implements a Nominatim-compatible forward and reverse
// geocoding client.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL points at the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Result is one candidate from a forward search.
type Result struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DisplayName string  `json:"display_name"`
}

// nominatimPlace mirrors the wire shape: coordinates arrive string-encoded.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Client talks to a Nominatim-style geocoding service. All lookups are best
// effort: callers log failures and move on, and never retry automatically.
type Client struct {
	baseURL      string
	userAgent    string
	countryCodes string
	limit        int
	http         *http.Client
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	UserAgent    string
	CountryCodes string // comma-separated ISO codes for search filtering, empty for none
	Limit        int    // max forward-search results
	Timeout      time.Duration
}

// New creates a geocoding client. Zero-value options fall back to the public
// Nominatim endpoint with a 10s timeout and 5 search results.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "geonote/1.0 (github.com/starford/geonote)"
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:      opts.BaseURL,
		userAgent:    opts.UserAgent,
		countryCodes: opts.CountryCodes,
		limit:        opts.Limit,
		http:         &http.Client{Timeout: opts.Timeout},
	}
}

// Reverse resolves a coordinate to a human-readable address (display_name).
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	body, err := c.get(ctx, "/reverse", q)
	if err != nil {
		return "", err
	}

	var place nominatimPlace
	if err := json.Unmarshal(body, &place); err != nil {
		return "", fmt.Errorf("geocode: decode reverse response: %w", err)
	}
	if place.DisplayName == "" {
		return "", fmt.Errorf("geocode: no display_name for %f,%f", lat, lng)
	}
	return place.DisplayName, nil
}

// Search resolves a free-text query to ranked place candidates. An empty
// result set is a normal outcome, not an error. Candidates with unparseable
// coordinates are skipped.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(c.limit))
	q.Set("addressdetails", "1")
	if c.countryCodes != "" {
		q.Set("countrycodes", c.countryCodes)
	}

	body, err := c.get(ctx, "/search", q)
	if err != nil {
		return nil, err
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("geocode: decode search response: %w", err)
	}

	results := make([]Result, 0, len(places))
	for _, p := range places {
		lat, err := strconv.ParseFloat(p.Lat, 64)
		if err != nil {
			continue
		}
		lng, err := strconv.ParseFloat(p.Lon, 64)
		if err != nil {
			continue
		}
		results = append(results, Result{Lat: lat, Lng: lng, DisplayName: p.DisplayName})
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode: service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("geocode: read response: %w", err)
	}
	return body, nil
}
