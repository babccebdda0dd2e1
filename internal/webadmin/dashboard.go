// ABOUTME: Dashboard, settings and audit log pages of the admin back-office
// ABOUTME: Dashboard counters are fetched concurrently and degrade independently

package webadmin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/cache"
	"github.com/2389/guday-portal/internal/store"
)

// stat is one dashboard counter. OK is false when its source failed.
type stat struct {
	Label string
	Value int
	OK    bool
	Href  string
}

type dashboardData struct {
	page
	Stats  []stat
	Recent []store.AuditEntry
}

// handleDashboard renders the main dashboard.
func (a *Admin) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats := []stat{
		{Label: "Services", Href: "/admin/services"},
		{Label: "Categories", Href: "/admin/categories"},
		{Label: "Agents", Href: "/admin/agents"},
		{Label: "Unclaimed tickets", Href: "/admin/tickets"},
	}
	counters := []func() (int, error){
		func() (int, error) {
			result, err := a.services(r, backend.AdminServiceQuery{Page: 1, PageSize: a.config.PageSize})
			if result.Total == 0 {
				return len(result.Items), err
			}
			return result.Total, err
		},
		func() (int, error) {
			tree, err := a.categoryTree(r)
			return len(backend.FlattenCategories(tree)), err
		},
		func() (int, error) {
			agents, err := a.agents(r, backend.AgentQuery{})
			return len(agents), err
		},
		func() (int, error) {
			tickets, err := a.unclaimedTickets(r)
			return len(tickets), err
		},
	}

	var (
		g        errgroup.Group
		rejected = make([]bool, len(counters))
	)
	for i, count := range counters {
		g.Go(func() error {
			n, err := count()
			if err != nil {
				rejected[i] = sessionRejected(err)
				a.logger.Warn("dashboard counter failed", "stat", stats[i].Label, "error", err)
				return nil
			}
			stats[i].Value, stats[i].OK = n, true
			return nil
		})
	}
	_ = g.Wait()
	for _, rej := range rejected {
		if rej {
			a.expireSession(w, r)
			return
		}
	}

	recent, err := a.audit.ListAuditLog(r.Context(), store.AuditFilter{Limit: recentAuditCount})
	if err != nil {
		a.logger.Error("failed to list recent audit entries", "error", err)
	}

	data := dashboardData{
		page:   a.base(w, r, "Dashboard", "dashboard"),
		Stats:  stats,
		Recent: recent,
	}
	a.pages.Page(w, http.StatusOK, "templates/dashboard.html", data)
}

type settingsData struct {
	page
	Profile    backend.AdminProfile
	ProfileErr string
	SignedInAt time.Time
	LastSeen   time.Time
}

// handleSettings shows the signed-in admin's profile and session.
func (a *Admin) handleSettings(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	profile, err := cache.Fetch(r.Context(), a.cache, cache.Key{cache.AdminProfile, scope(r)}, func(ctx context.Context) (backend.AdminProfile, error) {
		return a.api.CurrentAdmin(ctx, authHeader(r))
	})
	if err != nil && sessionRejected(err) {
		a.expireSession(w, r)
		return
	}

	data := settingsData{
		page:       a.base(w, r, "Settings", "settings"),
		Profile:    profile,
		SignedInAt: sess.CreatedAt,
		LastSeen:   sess.LastSeen,
	}
	if err != nil {
		a.logger.Warn("failed to load admin profile", "error", err)
		data.ProfileErr = err.Error()
	}
	a.pages.Page(w, http.StatusOK, "templates/settings.html", data)
}

type auditData struct {
	page
	Entries []store.AuditEntry
	Actions []store.AuditAction
	Action  string
	Actor   string
}

// handleAudit lists the local audit log, optionally filtered by action and actor.
func (a *Admin) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AuditFilter{Limit: queryInt(r, "limit", 200)}
	data := auditData{
		page:    a.base(w, r, "Audit log", "audit"),
		Actions: store.ValidAuditActions,
		Action:  strings.TrimSpace(q.Get("action")),
		Actor:   strings.TrimSpace(q.Get("actor")),
	}
	if data.Action != "" {
		action := store.AuditAction(data.Action)
		filter.Action = &action
	}
	if data.Actor != "" {
		filter.Actor = &data.Actor
	}

	entries, err := a.audit.ListAuditLog(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err, "audit log", "/admin/")
		return
	}
	data.Entries = entries
	a.pages.Page(w, http.StatusOK, "templates/audit.html", data)
}
