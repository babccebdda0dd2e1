// ABOUTME: Admin back-office for managing services, categories, agents, users and tickets
// ABOUTME: Provides authentication, session handling, admin routes and shared handler helpers

package webadmin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/guday-portal/internal/auth"
	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/cache"
	"github.com/2389/guday-portal/internal/render"
	"github.com/2389/guday-portal/internal/store"
	"github.com/2389/guday-portal/internal/validate"
)

const (
	// LoginPath is where unauthenticated admins are sent.
	LoginPath = "/admin/login"

	// DefaultPageSize is the admin services page size.
	DefaultPageSize = 20

	// recentAuditCount is how many audit entries the dashboard shows.
	recentAuditCount = 10
)

// API is the part of the services API the back-office uses. Every call
// except AdminLogin takes the signed-in admin's Authorization header.
type API interface {
	AdminLogin(ctx context.Context, creds backend.Credentials) (backend.LoginResult, error)
	CurrentAdmin(ctx context.Context, auth string) (backend.AdminProfile, error)

	ListAdminServices(ctx context.Context, auth string, q backend.AdminServiceQuery) (backend.ServicePage, error)
	GetAdminService(ctx context.Context, auth, id, fallbackSlug string) (backend.ServiceDetail, error)
	AdminServiceSteps(ctx context.Context, auth, id, fallbackSlug string) ([]backend.Step, error)
	CreateAdminService(ctx context.Context, auth string, req backend.ServiceRequest) (backend.Service, error)
	UpdateAdminService(ctx context.Context, auth, id string, req backend.ServiceRequest) (backend.Service, error)
	PublishAdminService(ctx context.Context, auth, id string) (backend.Service, error)
	ArchiveAdminService(ctx context.Context, auth, id string) (backend.Service, error)
	DeleteAdminService(ctx context.Context, auth, id string) error
	CreateServiceStep(ctx context.Context, auth, serviceID string, req backend.StepRequest) (backend.Step, error)
	UpdateServiceStep(ctx context.Context, auth, serviceID, stepID string, req backend.StepRequest) (backend.Step, error)
	DeleteServiceStep(ctx context.Context, auth, serviceID, stepID string) error
	BulkImportServices(ctx context.Context, auth string, items []backend.ServiceRequest) (backend.BulkImportResult, error)

	ListAdminCategories(ctx context.Context, auth string) (backend.CategoryPage, error)
	GetAdminCategory(ctx context.Context, auth, id string) (backend.Category, error)
	CreateAdminCategory(ctx context.Context, auth string, req backend.CategoryRequest) (backend.Category, error)
	UpdateAdminCategory(ctx context.Context, auth, id string, req backend.CategoryRequest) (backend.Category, error)
	DeleteAdminCategory(ctx context.Context, auth, id string) error

	ListAgents(ctx context.Context, auth string, q backend.AgentQuery) ([]backend.Agent, error)
	CreateAgent(ctx context.Context, auth string, req backend.AgentRequest) (backend.Agent, error)
	UpdateAgent(ctx context.Context, auth, id string, req backend.AgentUpdate) (backend.Agent, error)
	DeactivateAgent(ctx context.Context, auth, id string) error
	GenerateAgentOTP(ctx context.Context, auth, id string) (backend.OTPResult, error)
	AssignAgentCategory(ctx context.Context, auth, id, categoryID string) error

	ListUsers(ctx context.Context, auth string) ([]backend.User, error)
	ListUsersByCategory(ctx context.Context, auth, categoryID string) ([]backend.User, error)
	CreateUser(ctx context.Context, auth string, req backend.UserRequest) (backend.User, error)
	AssignUserRoles(ctx context.Context, auth, id string, roleIDs []string) error
	AssignUserCategory(ctx context.Context, auth, id, categoryID string) error
	GenerateUserOTP(ctx context.Context, auth, id string) (backend.OTPResult, error)

	ListUnclaimedTickets(ctx context.Context, auth string) ([]backend.Ticket, error)
	ClaimTicket(ctx context.Context, auth, id string) error
	CloseTicket(ctx context.Context, auth, id string) error
	SendTicketMessage(ctx context.Context, auth, id string, msg backend.TicketMessage) error
	ActiveTicket(ctx context.Context, auth, telegramID string, isAgent bool) (*backend.Ticket, error)
}

var _ API = (*backend.Client)(nil)

// Config holds admin UI configuration.
type Config struct {
	SiteName      string
	PageSize      int
	SecureCookies bool
	TrustProxy    bool
}

// Admin handles admin UI routes and authentication.
type Admin struct {
	api      API
	cache    *cache.Cache
	sessions *auth.Manager
	csrf     *auth.CSRF
	limiter  *auth.LoginLimiter
	audit    store.AuditStore
	pages    *render.Renderer
	config   Config
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a new Admin handler.
func New(api API, queries *cache.Cache, sessions *auth.Manager, audit store.AuditStore, limiter *auth.LoginLimiter, cfg Config) *Admin {
	if cfg.SiteName == "" {
		cfg.SiteName = "Guday"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Admin{
		api:      api,
		cache:    queries,
		sessions: sessions,
		csrf:     auth.NewCSRF(auth.AdminCSRFCookie, "/admin", cfg.SecureCookies),
		limiter:  limiter,
		audit:    audit,
		pages:    render.New(templateFS, "templates/base.html", "templates/partials/form.html"),
		config:   cfg,
		logger:   slog.Default().With("component", "admin"),
		now:      time.Now,
	}
}

// RegisterRoutes registers all admin routes on the given mux.
func (a *Admin) RegisterRoutes(mux *http.ServeMux) {
	// Public routes (no auth required)
	mux.Handle("GET /admin/login", a.csrf.Protect(http.HandlerFunc(a.handleLoginPage)))
	mux.Handle("POST /admin/login", a.csrf.Protect(http.HandlerFunc(a.handleLogin)))

	// Protected routes (auth required)
	mux.Handle("GET /admin", http.RedirectHandler("/admin/", http.StatusMovedPermanently))
	mux.Handle("GET /admin/{$}", a.requireAuth(a.handleDashboard))
	mux.Handle("POST /admin/logout", a.requireAuth(a.handleLogout))
	mux.Handle("GET /admin/settings", a.requireAuth(a.handleSettings))
	mux.Handle("GET /admin/audit", a.requireAuth(a.handleAudit))

	// Services
	mux.Handle("GET /admin/services", a.requireAuth(a.handleServicesList))
	mux.Handle("GET /admin/services/new", a.requireAuth(a.handleServiceNew))
	mux.Handle("POST /admin/services", a.requireAuth(a.handleServiceCreate))
	mux.Handle("GET /admin/services/import", a.requireAuth(a.handleImportPage))
	mux.Handle("POST /admin/services/import", limitBody(maxImportBody, a.requireAuth(a.handleImport)))
	mux.Handle("GET /admin/services/{id}/edit", a.requireAuth(a.handleServiceEdit))
	mux.Handle("POST /admin/services/{id}", a.requireAuth(a.handleServiceUpdate))
	mux.Handle("POST /admin/services/{id}/publish", a.requireAuth(a.handleServicePublish))
	mux.Handle("POST /admin/services/{id}/archive", a.requireAuth(a.handleServiceArchive))
	mux.Handle("POST /admin/services/{id}/delete", a.requireAuth(a.handleServiceDelete))
	mux.Handle("POST /admin/services/{id}/steps", a.requireAuth(a.handleStepCreate))
	mux.Handle("POST /admin/services/{id}/steps/{stepId}", a.requireAuth(a.handleStepUpdate))
	mux.Handle("POST /admin/services/{id}/steps/{stepId}/delete", a.requireAuth(a.handleStepDelete))

	// Categories
	mux.Handle("GET /admin/categories", a.requireAuth(a.handleCategoriesList))
	mux.Handle("GET /admin/categories/new", a.requireAuth(a.handleCategoryNew))
	mux.Handle("GET /admin/categories/{id}/edit", a.requireAuth(a.handleCategoryEdit))
	mux.Handle("POST /admin/categories", a.requireAuth(a.handleCategoryCreate))
	mux.Handle("POST /admin/categories/{id}", a.requireAuth(a.handleCategoryUpdate))
	mux.Handle("POST /admin/categories/{id}/delete", a.requireAuth(a.handleCategoryDelete))

	// Agents
	mux.Handle("GET /admin/agents", a.requireAuth(a.handleAgentsList))
	mux.Handle("GET /admin/agents/new", a.requireAuth(a.handleAgentNew))
	mux.Handle("POST /admin/agents/new", a.requireAuth(a.handleAgentCreate))
	mux.Handle("POST /admin/agents/{id}", a.requireAuth(a.handleAgentUpdate))
	mux.Handle("POST /admin/agents/{id}/deactivate", a.requireAuth(a.handleAgentDeactivate))
	mux.Handle("POST /admin/agents/{id}/otp", a.requireAuth(a.handleAgentOTP))
	mux.Handle("POST /admin/agents/{id}/category", a.requireAuth(a.handleAgentCategory))

	// System users
	mux.Handle("GET /admin/users", a.requireAuth(a.handleUsersList))
	mux.Handle("GET /admin/users/new", a.requireAuth(a.handleUserNew))
	mux.Handle("POST /admin/users/new", a.requireAuth(a.handleUserCreate))
	mux.Handle("POST /admin/users/{id}/roles", a.requireAuth(a.handleUserRoles))
	mux.Handle("POST /admin/users/{id}/category", a.requireAuth(a.handleUserCategory))
	mux.Handle("POST /admin/users/{id}/otp", a.requireAuth(a.handleUserOTP))

	// Tickets
	mux.Handle("GET /admin/tickets", a.requireAuth(a.handleTickets))
	mux.Handle("POST /admin/tickets/{id}/claim", a.requireAuth(a.handleTicketClaim))
	mux.Handle("POST /admin/tickets/{id}/close", a.requireAuth(a.handleTicketClose))
	mux.Handle("POST /admin/tickets/{id}/messages", a.requireAuth(a.handleTicketMessage))

	a.logger.Info("admin routes registered")
}

// requireAuth wraps a handler to require an admin session and a valid CSRF
// token on every unsafe request.
func (a *Admin) requireAuth(next http.HandlerFunc) http.Handler {
	return a.csrf.Protect(a.sessions.Require(LoginPath, next))
}

// limitBody caps the request body before the CSRF check parses the form.
func limitBody(n int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, n)
		next.ServeHTTP(w, r)
	})
}

// session returns the signed-in admin's session. Only valid behind requireAuth.
func session(r *http.Request) *store.Session {
	return auth.MustFromContext(r.Context())
}

// authHeader returns the Authorization header for the admin's backend calls.
func authHeader(r *http.Request) string {
	return auth.HeaderFromContext(r.Context())
}

// scope keys cached admin reads to one session so admins never share views.
func scope(r *http.Request) string {
	return store.HashSessionID(session(r).ID)
}

// page is the data every admin template receives.
type page struct {
	Title     string
	SiteName  string
	Section   string
	CSRFToken string
	Admin     string
	ExpiresAt time.Time
	Flash     *render.Flash
}

func (a *Admin) base(w http.ResponseWriter, r *http.Request, title, section string) page {
	pg := page{
		Title:     title,
		SiteName:  a.config.SiteName,
		Section:   section,
		CSRFToken: auth.CSRFToken(r),
		Flash:     render.PopFlash(w, r),
	}
	if sess := auth.FromContext(r.Context()); sess != nil {
		pg.Admin = sess.Username
		pg.ExpiresAt = sess.ExpiresAt
	}
	return pg
}

// sessionRejected reports whether the backend no longer accepts the admin's token.
func sessionRejected(err error) bool {
	return errors.Is(err, backend.ErrNoSession) || backend.StatusOf(err) == http.StatusUnauthorized
}

// expireSession ends a session the backend rejected and sends the admin to log in.
func (a *Admin) expireSession(w http.ResponseWriter, r *http.Request) {
	if sess := auth.FromContext(r.Context()); sess != nil {
		a.logger.Info("backend rejected admin token, ending session", "username", sess.Username)
	}
	a.sessions.End(w, r)
	render.SetFlash(w, render.FlashError, "Your admin session has expired. Please log in again.")
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

type errorData struct {
	page
	Heading string
	Message string
	Back    string
}

// fail renders an error page for a failed read, or ends the session when the
// backend rejected the token.
func (a *Admin) fail(w http.ResponseWriter, r *http.Request, err error, what, back string) {
	if sessionRejected(err) {
		a.expireSession(w, r)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	status := http.StatusBadGateway
	data := errorData{page: a.base(w, r, "Error", ""), Heading: "Could not load " + what, Message: err.Error(), Back: back}
	if backend.IsNotFound(err) {
		status = http.StatusNotFound
		data.Heading = what + " not found"
	} else {
		a.logger.Error("admin read failed", "what", what, "path", r.URL.Path, "error", err)
	}
	a.pages.Page(w, status, "templates/error.html", data)
}

// change describes one admin write for auditing, cache invalidation and the
// flash shown afterwards.
type change struct {
	action     store.AuditAction
	mutation   cache.Mutation
	targetType string
	targetID   string
	detail     map[string]any
	success    string
	redirect   string
}

// record appends the audit entry for c. Audit failures are logged, never shown.
func (a *Admin) record(r *http.Request, c change, err error) {
	entry := &store.AuditEntry{
		Actor:      session(r).Username,
		Action:     c.action,
		TargetType: c.targetType,
		TargetID:   c.targetID,
		Detail:     c.detail,
		Outcome:    store.OutcomeOK,
	}
	if err != nil {
		entry.Outcome = store.OutcomeError
		if entry.Detail == nil {
			entry.Detail = map[string]any{}
		}
		entry.Detail["error"] = err.Error()
	}
	if auditErr := a.audit.AppendAuditLog(r.Context(), entry); auditErr != nil {
		a.logger.Error("failed to write audit log", "action", c.action, "error", auditErr)
	}
}

// finish completes a write: audit it, invalidate the queries it touched and
// redirect with a flash. A rejected token ends the session instead.
func (a *Admin) finish(w http.ResponseWriter, r *http.Request, c change, err error) {
	a.record(r, c, err)
	if err != nil {
		if sessionRejected(err) {
			a.expireSession(w, r)
			return
		}
		a.logger.Warn("admin change failed", "action", c.action, "target", c.targetID, "error", err)
		render.SetFlash(w, render.FlashError, err.Error())
		http.Redirect(w, r, c.redirect, http.StatusSeeOther)
		return
	}
	if n := a.cache.InvalidateFor(c.mutation); n > 0 {
		a.logger.Debug("invalidated cached queries", "mutation", c.mutation, "entries", n)
	}
	render.SetFlash(w, render.FlashSuccess, c.success)
	http.Redirect(w, r, c.redirect, http.StatusSeeOther)
}

// commit is finish for writes made from a form: a backend failure re-renders
// the form through retry so the admin keeps their input.
func (a *Admin) commit(w http.ResponseWriter, r *http.Request, c change, err error, retry func(status int, errs *validate.Errors)) {
	if err == nil || sessionRejected(err) {
		a.finish(w, r, c, err)
		return
	}
	a.record(r, c, err)
	a.logger.Warn("admin change failed", "action", c.action, "target", c.targetID, "error", err)
	errs := &validate.Errors{}
	errs.Add("form", err.Error())
	retry(http.StatusBadGateway, errs)
}

// invalid flashes the first validation error and redirects.
func invalid(w http.ResponseWriter, r *http.Request, err error, redirect string) {
	render.SetFlash(w, render.FlashError, err.Error())
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// fieldErrors extracts per-field validation errors for re-rendering a form.
func fieldErrors(err error) *validate.Errors {
	var errs *validate.Errors
	if errors.As(err, &errs) {
		return errs
	}
	errs = &validate.Errors{}
	errs.Add("form", err.Error())
	return errs
}

// categoryTree returns the admin category tree, cached per session.
func (a *Admin) categoryTree(r *http.Request) ([]backend.Category, error) {
	result, err := cache.Fetch(r.Context(), a.cache, cache.Key{cache.AdminCategories, scope(r)}, func(ctx context.Context) (backend.CategoryPage, error) {
		return a.api.ListAdminCategories(ctx, authHeader(r))
	})
	return result.Items, err
}

// categoryOptions returns the flattened category tree for select boxes. A
// failed load yields no options rather than failing the page.
func (a *Admin) categoryOptions(r *http.Request) []backend.FlatCategory {
	tree, err := a.categoryTree(r)
	if err != nil {
		a.logger.Warn("failed to load categories for form", "error", err)
		return nil
	}
	return backend.FlattenCategories(tree)
}

func queryInt(r *http.Request, name string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
