// ABOUTME: Template function map: markdown, humanized numbers and times, paging helpers
// ABOUTME: Markdown is rendered with goldmark GFM; raw HTML in the source is not passed through

package render

import (
	"bytes"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/guday-portal/internal/assets"
)

var (
	markdownOnce     sync.Once
	markdownInstance goldmark.Markdown
)

func markdownEngine() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownInstance
}

// Markdown converts markdown to HTML. goldmark is not configured with
// html.WithUnsafe, so raw HTML blocks and javascript: links are dropped.
func Markdown(src string) template.HTML {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdownEngine().Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// Funcs returns the function map shared by every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"markdown": Markdown,
		"asset":    assets.Path,
		"ago":      Ago,
		"date":     Date,
		"comma":    func(n int) string { return humanize.Comma(int64(n)) },
		"plural":   Plural,
		"truncate": Truncate,
		"join":     strings.Join,
		"indent":   func(depth int) string { return strings.Repeat("— ", depth) },
		"add":      func(a, b int) int { return a + b },
		"pageURL":  PageURL,
		"withQuery": func(path string, kv ...string) string {
			return WithQuery(path, nil, kv...)
		},
		"yesno": func(b bool) string {
			if b {
				return "Yes"
			}
			return "No"
		},
	}
}

// Ago renders t relative to now ("3 minutes ago"); zero times render as "never".
func Ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// Date renders t as a calendar date; zero times render as "".
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2 Jan 2006 15:04")
}

// Plural returns "1 service" or "3 services".
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return humanize.Comma(int64(n)) + " " + plural
}

// Truncate shortens s to at most n runes, adding an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

// WithQuery adds key/value pairs to path's query, dropping empty values.
func WithQuery(path string, base url.Values, kv ...string) string {
	q := url.Values{}
	for k, vs := range base {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			q.Del(kv[i])
			continue
		}
		q.Set(kv[i], kv[i+1])
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// PageURL links to another page of a listing, keeping the current filters.
func PageURL(path string, filters url.Values, page int) string {
	return WithQuery(path, filters, "page", strconv.Itoa(page))
}

// Pager describes one page of a paginated listing.
type Pager struct {
	Page     int
	PageSize int
	Total    int
}

// Pages returns the number of pages, at least 1.
func (p Pager) Pages() int {
	if p.PageSize <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// HasPrev reports whether there is a previous page.
func (p Pager) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether there is a following page.
func (p Pager) HasNext() bool { return p.Page < p.Pages() }

// Prev returns the previous page number.
func (p Pager) Prev() int { return p.Page - 1 }

// Next returns the following page number.
func (p Pager) Next() int { return p.Page + 1 }

// From is the 1-based index of the first item on the page.
func (p Pager) From() int {
	if p.Total == 0 {
		return 0
	}
	return (p.Page-1)*p.PageSize + 1
}

// To is the 1-based index of the last item on the page.
func (p Pager) To() int {
	to := p.Page * p.PageSize
	if to > p.Total {
		return p.Total
	}
	return to
}
