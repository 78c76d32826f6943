package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, CountryCodes: "vn"})
}

func TestReverse(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("lat"); got != "21.0285" {
			t.Errorf("lat = %q", got)
		}
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("missing User-Agent")
		}
		w.Write([]byte(`{"display_name":"Hoan Kiem Lake, Hanoi, Vietnam","lat":"21.0285","lon":"105.8542"}`))
	})

	addr, err := c.Reverse(context.Background(), 21.0285, 105.8542)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if addr != "Hoan Kiem Lake, Hanoi, Vietnam" {
		t.Errorf("addr = %q", addr)
	}
}

func TestReverseNoDisplayNameIsError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	})
	if _, err := c.Reverse(context.Background(), 0, 0); err == nil {
		t.Fatal("expected error for missing display_name")
	}
}

func TestSearch(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "Van Mieu" {
			t.Errorf("q = %q", q.Get("q"))
		}
		if q.Get("countrycodes") != "vn" {
			t.Errorf("countrycodes = %q", q.Get("countrycodes"))
		}
		if q.Get("limit") != "5" {
			t.Errorf("limit = %q", q.Get("limit"))
		}
		w.Write([]byte(`[
			{"lat":"21.0277","lon":"105.8355","display_name":"Van Mieu, Hanoi"},
			{"lat":"not-a-number","lon":"105","display_name":"bogus"},
			{"lat":"10.7769","lon":"106.7009","display_name":"Somewhere else"}
		]`))
	})

	results, err := c.Search(context.Background(), "Van Mieu")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (malformed candidate skipped)", len(results))
	}
	if results[0].DisplayName != "Van Mieu, Hanoi" || results[0].Lat != 21.0277 {
		t.Errorf("first result = %+v", results[0])
	}
}

func TestSearchEmptyResultIsNotError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	results, err := c.Search(context.Background(), "nowhere at all")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := c.Search(context.Background(), "anything"); err == nil {
		t.Fatal("expected error on 502")
	}
}
