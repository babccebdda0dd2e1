// Package assets serves the portal's static files embedded via go:embed.
// Every file is fingerprinted with a blake2b content hash at startup so pages
// can link to immutable, cache-forever URLs.
package assets

import (
	"embed"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"
)

//go:embed static
var staticFS embed.FS

// Prefix is the URL path static files are served under.
const Prefix = "/static/"

// hashPattern detects content hashes in filenames (e.g. ".3f2a1b9c.").
var hashPattern = regexp.MustCompile(`\.[a-zA-Z0-9_-]{8,}\.`)

var (
	// hashed maps a logical path ("css/portal.css") to its fingerprinted name.
	hashed = map[string]string{}
	// logical maps a fingerprinted name back to the file in staticFS.
	logical = map[string]string{}
)

func init() {
	// Register MIME types that may not be in the default database.
	_ = mime.AddExtensionType(".woff2", "font/woff2")
	_ = mime.AddExtensionType(".map", "application/json")

	err := fs.WalkDir(staticFS, "static", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(staticFS, p)
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(p, "static/")
		name := fingerprint(rel, data)
		hashed[rel] = name
		logical[name] = rel
		return nil
	})
	if err != nil {
		slog.Error("failed to fingerprint static assets", "error", err)
	}
}

// fingerprint inserts the first 8 bytes of the blake2b-256 content hash
// before the extension: css/portal.css -> css/portal.<hash>.css.
func fingerprint(rel string, data []byte) string {
	sum := blake2b.Sum256(data)
	ext := path.Ext(rel)
	return strings.TrimSuffix(rel, ext) + "." + hex.EncodeToString(sum[:8]) + ext
}

// Path returns the URL for a static file. Unknown files get their plain,
// unhashed URL.
func Path(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if name, ok := hashed[rel]; ok {
		return Prefix + name
	}
	return Prefix + rel
}

// containsHash reports whether the given path contains a content hash.
func containsHash(p string) bool {
	return hashPattern.MatchString(p)
}

// mimeFromExt returns the MIME type for a file extension.
// Falls back to the Go standard library's MIME type database,
// then to "application/octet-stream" if unknown.
func mimeFromExt(ext string) string {
	switch ext {
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".woff2":
		return "font/woff2"
	case ".svg":
		return "image/svg+xml"
	case ".map":
		return "application/json"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// FileServer returns an http.Handler that serves embedded static files.
// Fingerprinted URLs get immutable cache headers; plain URLs get no-cache.
// The handler expects paths relative to the static root (strip Prefix before calling).
func FileServer() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("assets: failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/")
		if strings.HasSuffix(p, "/") || p == "" {
			http.NotFound(w, r)
			return
		}

		ext := strings.ToLower(path.Ext(p))
		if ext != "" {
			w.Header().Set("Content-Type", mimeFromExt(ext))
		}

		if rel, ok := logical[p]; ok {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			r2 := r.Clone(r.Context())
			r2.URL.Path = "/" + rel
			fileServer.ServeHTTP(w, r2)
			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		fileServer.ServeHTTP(w, r)
	})
}
