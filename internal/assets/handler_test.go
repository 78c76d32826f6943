package assets

import (
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testHandler(t *testing.T, files map[string]string) *Handler {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h, err := NewHandler(dir)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRootServesIndexHTML(t *testing.T) {
	h := testHandler(t, map[string]string{"index.html": "<html>hi</html>"})
	w := get(t, h, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("content type = %q", ct)
	}
	if w.Body.String() != "<html>hi</html>" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestContentTypesAndDefault(t *testing.T) {
	h := testHandler(t, map[string]string{
		"app.js":   "console.log(1)",
		"s.css":    "body{}",
		"logo.svg": "<svg/>",
		"noext":    "raw",
	})
	tests := []struct{ path, want string }{
		{"/app.js", "text/javascript"},
		{"/s.css", "text/css"},
		{"/logo.svg", "image/svg+xml"},
		{"/noext", "text/plain"},
	}
	for _, tt := range tests {
		if ct := get(t, h, tt.path).Header().Get("Content-Type"); ct != tt.want {
			t.Errorf("%s content type = %q, want %q", tt.path, ct, tt.want)
		}
	}
}

func TestMissingFileIs404PlainText(t *testing.T) {
	h := testHandler(t, nil)
	w := get(t, h, "/nope.html")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "File not found" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestTraversalRejected(t *testing.T) {
	h := testHandler(t, nil)
	w := get(t, h, "/../../etc/passwd")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	h := testHandler(t, map[string]string{"index.html": "x"})
	w := get(t, h, "/")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin = %q", got)
	}

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	pre := httptest.NewRecorder()
	h.ServeHTTP(pre, req)
	if pre.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", pre.Code)
	}
}

func TestCertificateIsValidForLocalhost(t *testing.T) {
	cert, err := Certificate()
	if err != nil {
		t.Fatalf("Certificate: %v", err)
	}
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	if err := parsed.VerifyHostname("localhost"); err != nil {
		t.Errorf("VerifyHostname: %v", err)
	}
	if parsed.Subject.CommonName != "localhost" {
		t.Errorf("CN = %q", parsed.Subject.CommonName)
	}
}
