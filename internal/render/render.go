// ABOUTME: Template rendering for portal and admin pages from an embedded filesystem
// ABOUTME: Each page is parsed once with its layout and the shared function map

package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
)

// Renderer executes page templates parsed together with a set of layout files.
type Renderer struct {
	fsys    fs.FS
	layouts []string
	funcs   template.FuncMap
	logger  *slog.Logger

	mu    sync.RWMutex
	pages map[string]*template.Template
}

// New creates a renderer. Layouts are parsed before every page, so pages can
// fill blocks the layouts define.
func New(fsys fs.FS, layouts ...string) *Renderer {
	return &Renderer{
		fsys:    fsys,
		layouts: layouts,
		funcs:   Funcs(),
		logger:  slog.Default().With("component", "render"),
		pages:   make(map[string]*template.Template),
	}
}

// lookup returns the parsed template for page, parsing it on first use.
func (r *Renderer) lookup(page string) (*template.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.pages[page]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tmpl, ok := r.pages[page]; ok {
		return tmpl, nil
	}

	files := append(append([]string{}, r.layouts...), page)
	tmpl, err := template.New("").Funcs(r.funcs).ParseFS(r.fsys, files...)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", page, err)
	}
	r.pages[page] = tmpl
	return tmpl, nil
}

// Must parses every page up front and panics on the first error.
func (r *Renderer) Must(pages ...string) *Renderer {
	for _, p := range pages {
		if _, err := r.lookup(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Execute renders the named entry template of page into memory.
func (r *Renderer) Execute(page, entry string, data any) ([]byte, error) {
	tmpl, err := r.lookup(page)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, entry, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", page, err)
	}
	return buf.Bytes(), nil
}

// Page renders page through the "base" layout with the given status.
// Rendering happens before any byte is written, so a template error still
// produces a clean 500.
func (r *Renderer) Page(w http.ResponseWriter, status int, page string, data any) {
	r.write(w, status, page, "base", data)
}

// Partial renders a template that has no layout, by its own name.
func (r *Renderer) Partial(w http.ResponseWriter, status int, page, name string, data any) {
	r.write(w, status, page, name, data)
}

func (r *Renderer) write(w http.ResponseWriter, status int, page, entry string, data any) {
	out, err := r.Execute(page, entry, data)
	if err != nil {
		r.logger.Error("failed to render page", "page", page, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(out)
}
