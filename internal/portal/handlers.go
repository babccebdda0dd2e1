// ABOUTME: Catalog page handlers: home, service detail, category listing and search
// ABOUTME: Independent API reads for one page are fetched concurrently

package portal

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/render"
)

// suggestLimit caps the quick-search dropdown.
const suggestLimit = 8

type homeData struct {
	page
	Categories []backend.Category
	Featured   []backend.Service
	Total      int
	Notice     string
}

// handleHome renders the landing page with the category grid and featured services.
func (p *Portal) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := homeData{page: p.base(w, r, "Find government services")}

	var g errgroup.Group
	g.Go(func() error {
		cats, err := p.categories(ctx)
		data.Categories = cats
		return err
	})
	g.Go(func() error {
		featured, err := p.services(ctx, backend.ServiceQuery{
			Page:           1,
			PageSize:       p.config.FeaturedCount,
			TargetAudience: "individuals",
		})
		data.Featured = featured.Items
		data.Total = featured.Total
		return err
	})
	if err := g.Wait(); err != nil {
		p.logger.Warn("home page partially loaded", "error", err)
		data.Notice = "Some services could not be loaded right now. Please try again shortly."
	}

	p.pages.Page(w, http.StatusOK, "templates/home.html", data)
}

type serviceData struct {
	page
	Service   backend.ServiceDetail
	Steps     []backend.Step
	Documents []backend.DocumentRequirement
	FAQs      []backend.FAQ
}

// handleService renders one service. The base record is required; steps,
// documents and FAQs degrade to empty sections when their endpoints fail.
func (p *Portal) handleService(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	ctx := r.Context()

	var (
		detail  backend.ServiceDetail
		baseErr error
		data    serviceData
	)
	var g errgroup.Group
	g.Go(func() error {
		detail, baseErr = p.service(ctx, slug)
		return nil
	})
	g.Go(func() error {
		steps, err := p.steps(ctx, slug)
		if err != nil {
			p.logger.Warn("failed to load service steps", "slug", slug, "error", err)
		}
		data.Steps = steps
		return nil
	})
	g.Go(func() error {
		docs, err := p.documents(ctx, slug)
		if err != nil {
			p.logger.Warn("failed to load service documents", "slug", slug, "error", err)
		}
		data.Documents = docs
		return nil
	})
	g.Go(func() error {
		faqs, err := p.faqs(ctx, slug)
		if err != nil {
			p.logger.Warn("failed to load service faqs", "slug", slug, "error", err)
		}
		data.FAQs = faqs
		return nil
	})
	_ = g.Wait()

	if baseErr != nil {
		p.renderError(w, r, baseErr, "Service")
		return
	}

	data.page = p.base(w, r, detail.Title)
	data.Service = detail
	p.pages.Page(w, http.StatusOK, "templates/service.html", data)
}

type categoryData struct {
	page
	Category backend.Category
	Services []backend.Service
	Pager    render.Pager
	Filters  url.Values
	Notice   string
}

// handleCategory renders a category with its services.
func (p *Portal) handleCategory(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	ctx := r.Context()

	cat, err := p.category(ctx, slug)
	if err != nil {
		p.renderError(w, r, err, "Category")
		return
	}

	pageNo := pageNumber(r)
	data := categoryData{
		page:     p.base(w, r, cat.Name),
		Category: cat,
		Pager:    render.Pager{Page: pageNo, PageSize: p.config.SearchPageSize},
	}
	result, err := p.services(ctx, backend.ServiceQuery{
		Page:       pageNo,
		PageSize:   p.config.SearchPageSize,
		CategoryID: cat.ID.String(),
	})
	if err != nil {
		p.logger.Warn("failed to load category services", "slug", slug, "error", err)
		data.Notice = "Services in this category could not be loaded right now."
	}
	data.Services = result.Items
	data.Pager.Total = result.Total

	p.pages.Page(w, http.StatusOK, "templates/category.html", data)
}

type searchData struct {
	page
	CategoryID   string
	CategoryName string
	Categories   []backend.FlatCategory
	Services     []backend.Service
	Total        int
	HasFilter    bool
	Notice       string
}

// handleSearch lists services matching the query and category filter.
func (p *Portal) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	categoryID := strings.TrimSpace(r.URL.Query().Get("category_id"))

	data := searchData{
		page:       p.base(w, r, "Search services"),
		CategoryID: categoryID,
		HasFilter:  q != "" || categoryID != "",
	}
	data.Query = q

	var (
		tree   []backend.Category
		result backend.ServicePage
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		tree, err = p.categories(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		result, err = p.services(ctx, backend.ServiceQuery{
			Page:       1,
			PageSize:   p.config.SearchPageSize,
			Search:     q,
			CategoryID: categoryID,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		p.logger.Warn("search partially loaded", "q", q, "error", err)
		data.Notice = "Search is having trouble right now. Results may be incomplete."
	}

	data.Categories = backend.FlattenCategories(tree)
	if categoryID != "" {
		if c, ok := backend.FindCategory(tree, categoryID); ok {
			data.CategoryName = c.Name
		}
	}
	data.Services = result.Items
	data.Total = result.Total
	if data.Total == 0 {
		data.Total = len(result.Items)
	}

	p.pages.Page(w, http.StatusOK, "templates/search.html", data)
}

type suggestData struct {
	Query string
	Items []backend.Service
}

// handleSuggest renders the quick-search dropdown fragment.
func (p *Portal) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	data := suggestData{Query: q}
	if q != "" {
		result, err := p.search(r.Context(), backend.SearchQuery{
			Q:          q,
			CategoryID: r.URL.Query().Get("category_id"),
			Limit:      suggestLimit,
		})
		if err != nil {
			p.logger.Warn("quick search failed", "q", q, "error", err)
		}
		data.Items = result.Items
		if len(data.Items) > suggestLimit {
			data.Items = data.Items[:suggestLimit]
		}
	}
	p.pages.Partial(w, http.StatusOK, "templates/suggest.html", "suggest", data)
}
