package assets

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestContainsHash(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"css/portal.a1b2c3d4e5f60718.css", true},
		{"js/confirm.CU4W1PlC.js", true},
		{"css/portal.css", false},
		{"img/logo.svg", false},
		{".gitkeep", false},
	}
	for _, tt := range tests {
		if got := containsHash(tt.path); got != tt.want {
			t.Errorf("containsHash(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMimeFromExt(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".js", "application/javascript"},
		{".mjs", "application/javascript"},
		{".css", "text/css; charset=utf-8"},
		{".woff2", "font/woff2"},
		{".svg", "image/svg+xml"},
		{".map", "application/json"},
		{".qqqqqq", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := mimeFromExt(tt.ext); got != tt.want {
			t.Errorf("mimeFromExt(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := fingerprint("css/portal.css", []byte("body{}"))
	b := fingerprint("css/portal.css", []byte("body{color:red}"))
	if a == b {
		t.Errorf("fingerprint should change with content, both %q", a)
	}
	if !strings.HasPrefix(a, "css/portal.") || !strings.HasSuffix(a, ".css") {
		t.Errorf("fingerprint() = %q, want css/portal.<hash>.css", a)
	}
	if !containsHash(a) {
		t.Errorf("fingerprint() = %q, not recognised as hashed", a)
	}
}

func TestPath(t *testing.T) {
	p := Path("css/portal.css")
	if !strings.HasPrefix(p, Prefix+"css/portal.") || p == Prefix+"css/portal.css" {
		t.Errorf("Path() = %q, want fingerprinted URL", p)
	}
	if got := Path("/css/portal.css"); got != p {
		t.Errorf("Path() with leading slash = %q, want %q", got, p)
	}
	if got := Path("css/missing.css"); got != Prefix+"css/missing.css" {
		t.Errorf("Path() unknown = %q", got)
	}
}

func TestFileServer(t *testing.T) {
	h := http.StripPrefix(strings.TrimSuffix(Prefix, "/"), FileServer())

	t.Run("fingerprinted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Path("css/portal.css"), nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if got := rec.Header().Get("Cache-Control"); got != "public, max-age=31536000, immutable" {
			t.Errorf("Cache-Control = %q", got)
		}
		if got := rec.Header().Get("Content-Type"); got != "text/css; charset=utf-8" {
			t.Errorf("Content-Type = %q", got)
		}
		if !strings.Contains(rec.Body.String(), "--primary") {
			t.Error("body does not look like portal.css")
		}
	})

	t.Run("plain", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/js/confirm.js", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
			t.Errorf("Cache-Control = %q", got)
		}
	})

	t.Run("directory listing refused", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/css/", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/css/nope.css", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}
