// Package assets serves the static front-end files over the local server.
// Browser geolocation requires a secure context, so the handler is normally
// mounted behind the self-signed TLS listener (see Certificate).
package assets

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// contentTypes maps file extensions to content types; anything else is served
// as plain text.
var contentTypes = map[string]string{
	".html": "text/html",
	".js":   "text/javascript",
	".css":  "text/css",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpg",
	".gif":  "image/gif",
	".ico":  "image/x-icon",
	".svg":  "image/svg+xml",
}

// Handler serves files from a single directory with permissive CORS headers.
type Handler struct {
	root string
}

// NewHandler creates a static handler rooted at dir.
func NewHandler(dir string) (*Handler, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Handler{root: abs}, nil
}

// ServeHTTP serves GET requests for static files. "/" maps to index.html,
// missing files get a plain-text 404, and directory traversal is rejected.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" {
		name = "index.html"
	}

	cleaned := filepath.Clean(name)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	abs := filepath.Join(h.root, cleaned)

	data, err := os.ReadFile(abs)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("File not found"))
		return
	}

	ct, ok := contentTypes[strings.ToLower(filepath.Ext(cleaned))]
	if !ok {
		ct = "text/plain"
	}
	w.Header().Set("Content-Type", ct)
	_, _ = w.Write(data)
}
