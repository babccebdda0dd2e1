// ABOUTME: Public site: service catalog, category pages, search and citizen sign-in
// ABOUTME: Pages are rendered server-side from cached services API reads

package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/2389/guday-portal/internal/auth"
	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/cache"
	"github.com/2389/guday-portal/internal/render"
)

// Catalog is the part of the services API the public site reads.
type Catalog interface {
	ListServices(ctx context.Context, q backend.ServiceQuery) (backend.ServicePage, error)
	GetService(ctx context.Context, slug string) (backend.ServiceDetail, error)
	ServiceSteps(ctx context.Context, slug string) ([]backend.Step, error)
	ServiceDocuments(ctx context.Context, slug string) ([]backend.DocumentRequirement, error)
	ServiceFAQs(ctx context.Context, slug string) ([]backend.FAQ, error)
	ListCategories(ctx context.Context) ([]backend.Category, error)
	GetCategory(ctx context.Context, slug string) (backend.Category, error)
	Search(ctx context.Context, q backend.SearchQuery) (backend.SearchResult, error)
	Login(ctx context.Context, creds backend.Credentials) (backend.LoginResult, error)
}

// Config holds public site settings.
type Config struct {
	SiteName       string
	FeaturedCount  int
	SearchPageSize int
	SecureCookies  bool
	TrustProxy     bool
}

// Portal serves the public pages.
type Portal struct {
	catalog  Catalog
	cache    *cache.Cache
	sessions *auth.Manager
	csrf     *auth.CSRF
	limiter  *auth.LoginLimiter
	pages    *render.Renderer
	config   Config
	logger   *slog.Logger
}

// New creates the public site handler.
func New(catalog Catalog, queries *cache.Cache, sessions *auth.Manager, limiter *auth.LoginLimiter, cfg Config) *Portal {
	if cfg.SiteName == "" {
		cfg.SiteName = "Guday"
	}
	if cfg.FeaturedCount <= 0 {
		cfg.FeaturedCount = 6
	}
	if cfg.SearchPageSize <= 0 {
		cfg.SearchPageSize = 50
	}
	return &Portal{
		catalog:  catalog,
		cache:    queries,
		sessions: sessions,
		csrf:     auth.NewCSRF(auth.CitizenCSRFCookie, "/", cfg.SecureCookies),
		limiter:  limiter,
		pages:    render.New(templateFS, "templates/base.html", "templates/cards.html"),
		config:   cfg,
		logger:   slog.Default().With("component", "portal"),
	}
}

// RegisterRoutes registers the public routes on mux.
func (p *Portal) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /{$}", p.wrap(p.handleHome))
	mux.Handle("GET /services/{slug}", p.wrap(p.handleService))
	mux.Handle("GET /categories/{slug}", p.wrap(p.handleCategory))
	mux.Handle("GET /search", p.wrap(p.handleSearch))
	mux.Handle("GET /search/suggest", p.wrap(p.handleSuggest))
	mux.Handle("GET /login", p.wrap(p.handleLoginPage))
	mux.Handle("POST /login", p.wrap(p.handleLogin))
	mux.Handle("POST /logout", p.wrap(p.handleLogout))
	mux.Handle("/", p.wrap(p.handleNotFound))

	p.logger.Info("portal routes registered")
}

// wrap attaches the citizen session, when there is one, and CSRF protection.
func (p *Portal) wrap(h http.HandlerFunc) http.Handler {
	return p.csrf.Protect(p.sessions.Optional(h))
}

// page is the data every public template receives.
type page struct {
	Title     string
	SiteName  string
	CSRFToken string
	User      string
	Flash     *render.Flash
	Query     string
}

func (p *Portal) base(w http.ResponseWriter, r *http.Request, title string) page {
	pg := page{
		Title:     title,
		SiteName:  p.config.SiteName,
		CSRFToken: auth.CSRFToken(r),
		Flash:     render.PopFlash(w, r),
		Query:     r.URL.Query().Get("q"),
	}
	if sess := auth.FromContext(r.Context()); sess != nil {
		pg.User = sess.Username
	}
	return pg
}

type errorData struct {
	page
	Status  int
	Heading string
	Message string
}

// renderError shows the error page. Not-found errors become 404s, everything
// else from the API is reported as a bad gateway with its message.
func (p *Portal) renderError(w http.ResponseWriter, r *http.Request, err error, what string) {
	data := errorData{page: p.base(w, r, "Something went wrong"), Status: http.StatusBadGateway}
	switch {
	case backend.IsNotFound(err):
		data.Status = http.StatusNotFound
		data.Title = "Page not found"
		data.Heading = what + " not found"
		data.Message = "It may have been moved or is no longer available."
	case errors.Is(err, context.Canceled):
		return
	default:
		p.logger.Error("services API request failed", "what", what, "path", r.URL.Path, "error", err)
		data.Heading = "We couldn't load this page"
		data.Message = err.Error()
	}
	p.pages.Page(w, data.Status, "templates/error.html", data)
}

func (p *Portal) handleNotFound(w http.ResponseWriter, r *http.Request) {
	data := errorData{
		page:    p.base(w, r, "Page not found"),
		Status:  http.StatusNotFound,
		Heading: "Page not found",
		Message: "Check the address, or search for the service you need.",
	}
	p.pages.Page(w, http.StatusNotFound, "templates/error.html", data)
}

// Cached reads. Public data is shared by every visitor, so loads never carry
// the citizen's Authorization header.

func (p *Portal) categories(ctx context.Context) ([]backend.Category, error) {
	return cache.Fetch(ctx, p.cache, cache.Key{cache.Categories}, p.catalog.ListCategories)
}

func (p *Portal) category(ctx context.Context, slug string) (backend.Category, error) {
	return cache.Fetch(ctx, p.cache, cache.Key{cache.Category, slug}, func(ctx context.Context) (backend.Category, error) {
		return p.catalog.GetCategory(ctx, slug)
	})
}

func (p *Portal) services(ctx context.Context, q backend.ServiceQuery) (backend.ServicePage, error) {
	key := cache.Key{cache.Services, serviceQueryKey(q)}
	return cache.Fetch(ctx, p.cache, key, func(ctx context.Context) (backend.ServicePage, error) {
		return p.catalog.ListServices(ctx, q)
	})
}

func serviceQueryKey(q backend.ServiceQuery) string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("page_size", strconv.Itoa(q.PageSize))
	v.Set("category_id", q.CategoryID)
	v.Set("target_audience", q.TargetAudience)
	v.Set("online", strconv.FormatBool(q.IsOnlineAvailable))
	v.Set("search", q.Search)
	return v.Encode()
}

func (p *Portal) service(ctx context.Context, slug string) (backend.ServiceDetail, error) {
	return cache.Fetch(ctx, p.cache, cache.Key{cache.Service, slug}, func(ctx context.Context) (backend.ServiceDetail, error) {
		return p.catalog.GetService(ctx, slug)
	})
}

func (p *Portal) steps(ctx context.Context, slug string) ([]backend.Step, error) {
	return cache.Fetch(ctx, p.cache, cache.Key{cache.ServiceSteps, slug}, func(ctx context.Context) ([]backend.Step, error) {
		return p.catalog.ServiceSteps(ctx, slug)
	})
}

func (p *Portal) documents(ctx context.Context, slug string) ([]backend.DocumentRequirement, error) {
	return cache.Fetch(ctx, p.cache, cache.Key{cache.ServiceDocuments, slug}, func(ctx context.Context) ([]backend.DocumentRequirement, error) {
		return p.catalog.ServiceDocuments(ctx, slug)
	})
}

func (p *Portal) faqs(ctx context.Context, slug string) ([]backend.FAQ, error) {
	return cache.Fetch(ctx, p.cache, cache.Key{cache.ServiceFAQs, slug}, func(ctx context.Context) ([]backend.FAQ, error) {
		return p.catalog.ServiceFAQs(ctx, slug)
	})
}

func (p *Portal) search(ctx context.Context, q backend.SearchQuery) (backend.SearchResult, error) {
	key := cache.Key{cache.Search, q.Q, q.CategoryID, strconv.Itoa(q.Limit)}
	return cache.Fetch(ctx, p.cache, key, func(ctx context.Context) (backend.SearchResult, error) {
		return p.catalog.Search(ctx, q)
	})
}

// pageNumber reads a 1-based page number from the query string.
func pageNumber(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
