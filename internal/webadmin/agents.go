// ABOUTME: Admin support agent management: listing, creation, updates and deactivation
// ABOUTME: Also issues one-time passwords, shown once on a result page and never stored

package webadmin

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/cache"
	"github.com/2389/guday-portal/internal/render"
	"github.com/2389/guday-portal/internal/store"
	"github.com/2389/guday-portal/internal/validate"
)

func (a *Admin) agents(r *http.Request, q backend.AgentQuery) ([]backend.Agent, error) {
	active := ""
	if q.IsActive != nil {
		active = strconv.FormatBool(*q.IsActive)
	}
	key := cache.Key{cache.AdminAgents, scope(r), q.CategoryID, active}
	return cache.Fetch(r.Context(), a.cache, key, func(ctx context.Context) ([]backend.Agent, error) {
		return a.api.ListAgents(ctx, authHeader(r), q)
	})
}

// categoryNames maps category ids to display names for list pages.
func categoryNames(flat []backend.FlatCategory) map[string]string {
	names := make(map[string]string, len(flat))
	for _, c := range flat {
		names[c.ID.String()] = c.Name
	}
	return names
}

type agentsData struct {
	page
	Agents        []backend.Agent
	CategoryID    string
	IsActive      string
	Categories    []backend.FlatCategory
	CategoryNames map[string]string
}

// handleAgentsList renders the agents, filtered by category and active flag.
func (a *Admin) handleAgentsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := backend.AgentQuery{CategoryID: strings.TrimSpace(q.Get("category_id"))}
	active := strings.TrimSpace(q.Get("is_active"))
	if b, err := strconv.ParseBool(active); err == nil {
		query.IsActive = &b
	} else {
		active = ""
	}

	agents, err := a.agents(r, query)
	if err != nil {
		a.fail(w, r, err, "agents", "/admin/")
		return
	}

	cats := a.categoryOptions(r)
	data := agentsData{
		page:          a.base(w, r, "Agents", "agents"),
		Agents:        agents,
		CategoryID:    query.CategoryID,
		IsActive:      active,
		Categories:    cats,
		CategoryNames: categoryNames(cats),
	}
	a.pages.Page(w, http.StatusOK, "templates/agents.html", data)
}

type accountFormData struct {
	page
	Kind       string
	Action     string
	Form       url.Values
	Errors     *validate.Errors
	Categories []backend.FlatCategory
}

func (a *Admin) renderAgentForm(w http.ResponseWriter, r *http.Request, status int, form url.Values, errs *validate.Errors) {
	// Passwords are never echoed back into the form.
	form.Del("password")
	form.Del("confirm_password")
	data := accountFormData{
		page:       a.base(w, r, "New agent", "agents"),
		Kind:       "agent",
		Action:     "/admin/agents/new",
		Form:       form,
		Errors:     errs,
		Categories: a.categoryOptions(r),
	}
	a.pages.Page(w, status, "templates/agent_form.html", data)
}

// handleAgentNew renders an empty agent form.
func (a *Admin) handleAgentNew(w http.ResponseWriter, r *http.Request) {
	a.renderAgentForm(w, r, http.StatusOK, url.Values{}, nil)
}

// handleAgentCreate creates an agent account.
func (a *Admin) handleAgentCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	form := cloneValues(r.PostForm)
	req, err := validate.Agent(r.PostForm)
	if err != nil {
		a.renderAgentForm(w, r, http.StatusUnprocessableEntity, form, fieldErrors(err))
		return
	}

	agent, err := a.api.CreateAgent(r.Context(), authHeader(r), req)
	a.commit(w, r, change{
		action:     store.AuditCreateAgent,
		mutation:   cache.CreateAgent,
		targetType: "agent",
		targetID:   agent.ID.String(),
		detail:     map[string]any{"username": req.Username, "email": req.Email},
		success:    "Agent " + req.Username + " created.",
		redirect:   "/admin/agents",
	}, err, func(status int, errs *validate.Errors) {
		a.renderAgentForm(w, r, status, form, errs)
	})
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// handleAgentUpdate applies a partial update to an agent.
func (a *Admin) handleAgentUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	upd, err := validate.AgentUpdate(r.PostForm)
	if err != nil {
		invalid(w, r, err, "/admin/agents")
		return
	}

	detail := map[string]any{}
	if upd.Username != nil {
		detail["username"] = *upd.Username
	}
	if upd.Email != nil {
		detail["email"] = *upd.Email
	}
	if upd.IsActive != nil {
		detail["is_active"] = *upd.IsActive
	}
	_, err = a.api.UpdateAgent(r.Context(), authHeader(r), id, upd)
	a.finish(w, r, change{
		action:     store.AuditUpdateAgent,
		mutation:   cache.UpdateAgent,
		targetType: "agent",
		targetID:   id,
		detail:     detail,
		success:    "Agent updated.",
		redirect:   "/admin/agents",
	}, err)
}

// handleAgentDeactivate deactivates an agent.
func (a *Admin) handleAgentDeactivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := a.api.DeactivateAgent(r.Context(), authHeader(r), id)
	a.finish(w, r, change{
		action:     store.AuditDeactivateAgent,
		mutation:   cache.DeactivateAgent,
		targetType: "agent",
		targetID:   id,
		success:    "Agent deactivated.",
		redirect:   "/admin/agents",
	}, err)
}

// handleAgentCategory moves an agent to another category.
func (a *Admin) handleAgentCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	categoryID := strings.TrimSpace(r.FormValue("category_id"))
	if categoryID == "" {
		render.SetFlash(w, render.FlashError, "Choose a category.")
		http.Redirect(w, r, "/admin/agents", http.StatusSeeOther)
		return
	}

	err := a.api.AssignAgentCategory(r.Context(), authHeader(r), id, categoryID)
	a.finish(w, r, change{
		action:     store.AuditAssignAgent,
		mutation:   cache.AssignAgent,
		targetType: "agent",
		targetID:   id,
		detail:     map[string]any{"category_id": categoryID},
		success:    "Agent category updated.",
		redirect:   "/admin/agents",
	}, err)
}

type otpData struct {
	page
	Kind   string
	ID     string
	Name   string
	Result backend.OTPResult
	Back   string
}

// handleAgentOTP issues a one-time password for an agent.
func (a *Admin) handleAgentOTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := a.api.GenerateAgentOTP(r.Context(), authHeader(r), id)
	a.showOTP(w, r, "agent", id, store.AuditAgentOTP, cache.AgentOTP, "/admin/agents", result, err)
}

// showOTP renders a freshly issued code directly in the POST response so it
// is displayed exactly once.
func (a *Admin) showOTP(w http.ResponseWriter, r *http.Request, kind, id string, action store.AuditAction, mutation cache.Mutation, back string, result backend.OTPResult, err error) {
	c := change{
		action:     action,
		mutation:   mutation,
		targetType: kind,
		targetID:   id,
		redirect:   back,
	}
	if err != nil {
		a.finish(w, r, c, err)
		return
	}
	a.record(r, c, nil)
	a.logger.Info("issued one-time password", "kind", kind, "id", id)

	data := otpData{
		page:   a.base(w, r, "One-time password", kind+"s"),
		Kind:   kind,
		ID:     id,
		Name:   r.FormValue("name"),
		Result: result,
		Back:   back,
	}
	a.pages.Page(w, http.StatusOK, "templates/otp.html", data)
}
