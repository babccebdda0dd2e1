// ABOUTME: Admin service management pages: listing, editing, lifecycle, steps and bulk import
// ABOUTME: Every write is audited and clears the cached service queries it affects

package webadmin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/cache"
	"github.com/2389/guday-portal/internal/render"
	"github.com/2389/guday-portal/internal/store"
	"github.com/2389/guday-portal/internal/validate"
)

// maxImportSize bounds uploaded bulk import documents. maxImportBody leaves
// room for the other form fields and multipart framing.
const (
	maxImportSize = 5 << 20
	maxImportBody = maxImportSize + 1<<20
)

// serviceStatuses are the statuses the list can be filtered by.
var serviceStatuses = []string{"draft", "published", "archived"}

func (a *Admin) services(r *http.Request, q backend.AdminServiceQuery) (backend.ServicePage, error) {
	key := cache.Key{cache.AdminServices, scope(r), adminServiceQueryKey(q)}
	return cache.Fetch(r.Context(), a.cache, key, func(ctx context.Context) (backend.ServicePage, error) {
		return a.api.ListAdminServices(ctx, authHeader(r), q)
	})
}

func adminServiceQueryKey(q backend.AdminServiceQuery) string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("page_size", strconv.Itoa(q.PageSize))
	v.Set("status", q.Status)
	v.Set("category_id", q.CategoryID)
	v.Set("search", q.Search)
	return v.Encode()
}

func (a *Admin) serviceSteps(r *http.Request, id, slug string) ([]backend.Step, error) {
	return cache.Fetch(r.Context(), a.cache, cache.Key{cache.AdminServiceSteps, scope(r), id}, func(ctx context.Context) ([]backend.Step, error) {
		return a.api.AdminServiceSteps(ctx, authHeader(r), id, slug)
	})
}

// editPath links to a service's edit page, keeping the slug used for the
// public fallback.
func editPath(id, slug string) string {
	return render.WithQuery("/admin/services/"+url.PathEscape(id)+"/edit", nil, "slug", slug)
}

type servicesData struct {
	page
	Services   []backend.Service
	Pager      render.Pager
	Filters    url.Values
	Statuses   []string
	Status     string
	CategoryID string
	Search     string
	Categories []backend.FlatCategory
}

// handleServicesList renders the filterable services list.
func (a *Admin) handleServicesList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := backend.AdminServiceQuery{
		Page:       queryInt(r, "page", 1),
		PageSize:   a.config.PageSize,
		Status:     strings.TrimSpace(q.Get("status")),
		CategoryID: strings.TrimSpace(q.Get("category_id")),
		Search:     strings.TrimSpace(q.Get("search")),
	}

	result, err := a.services(r, query)
	if err != nil {
		a.fail(w, r, err, "services", "/admin/")
		return
	}

	total := result.Total
	if total == 0 {
		total = len(result.Items)
	}
	filters := url.Values{}
	filters.Set("status", query.Status)
	filters.Set("category_id", query.CategoryID)
	filters.Set("search", query.Search)

	data := servicesData{
		page:       a.base(w, r, "Services", "services"),
		Services:   result.Items,
		Pager:      render.Pager{Page: query.Page, PageSize: query.PageSize, Total: total},
		Filters:    filters,
		Statuses:   serviceStatuses,
		Status:     query.Status,
		CategoryID: query.CategoryID,
		Search:     query.Search,
		Categories: a.categoryOptions(r),
	}
	a.pages.Page(w, http.StatusOK, "templates/services.html", data)
}

type serviceFormData struct {
	page
	ID         string
	Slug       string
	Action     string
	Form       url.Values
	Errors     *validate.Errors
	Categories []backend.FlatCategory
}

func (a *Admin) renderServiceForm(w http.ResponseWriter, r *http.Request, status int, form url.Values, errs *validate.Errors) {
	data := serviceFormData{
		page:       a.base(w, r, "New service", "services"),
		Action:     "/admin/services",
		Form:       form,
		Errors:     errs,
		Categories: a.categoryOptions(r),
	}
	a.pages.Page(w, status, "templates/service_form.html", data)
}

// handleServiceNew renders an empty service form.
func (a *Admin) handleServiceNew(w http.ResponseWriter, r *http.Request) {
	form := url.Values{}
	form.Set("status", validate.StatusDraft)
	form.Set("target_audience", "individuals")
	form.Set("language", "en")
	a.renderServiceForm(w, r, http.StatusOK, form, nil)
}

// handleServiceCreate creates a service and opens it for editing.
func (a *Admin) handleServiceCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	req, err := validate.Service(r.PostForm, a.now())
	if err != nil {
		a.renderServiceForm(w, r, http.StatusUnprocessableEntity, r.PostForm, fieldErrors(err))
		return
	}

	svc, err := a.api.CreateAdminService(r.Context(), authHeader(r), req)
	slug := svc.Slug
	if slug == "" {
		slug = req.Slug
	}
	redirect := "/admin/services"
	if svc.ID != "" {
		redirect = editPath(svc.ID.String(), slug)
	}
	a.commit(w, r, change{
		action:     store.AuditCreateService,
		mutation:   cache.CreateService,
		targetType: "service",
		targetID:   svc.ID.String(),
		detail:     map[string]any{"title": req.Title, "slug": req.Slug},
		success:    fmt.Sprintf("Service %q created.", req.Title),
		redirect:   redirect,
	}, err, func(status int, errs *validate.Errors) {
		a.renderServiceForm(w, r, status, r.PostForm, errs)
	})
}

type serviceEditData struct {
	serviceFormData
	Service  backend.ServiceDetail
	Steps    []backend.Step
	StepsErr string
	NextStep int
}

// handleServiceEdit loads a service and its steps concurrently. Steps are
// optional: a failure shows a notice instead of failing the page.
func (a *Admin) handleServiceEdit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slug := strings.TrimSpace(r.URL.Query().Get("slug"))

	var (
		g        errgroup.Group
		detail   backend.ServiceDetail
		steps    []backend.Step
		stepsErr error
	)
	g.Go(func() error {
		var err error
		detail, err = a.api.GetAdminService(r.Context(), authHeader(r), id, slug)
		return err
	})
	g.Go(func() error {
		steps, stepsErr = a.serviceSteps(r, id, slug)
		return nil
	})
	if err := g.Wait(); err != nil {
		a.fail(w, r, err, "service", "/admin/services")
		return
	}
	if stepsErr != nil && sessionRejected(stepsErr) {
		a.expireSession(w, r)
		return
	}

	if slug == "" {
		slug = detail.Slug
	}
	data := serviceEditData{
		serviceFormData: serviceFormData{
			page:       a.base(w, r, "Edit "+detail.Title, "services"),
			ID:         id,
			Slug:       slug,
			Action:     "/admin/services/" + url.PathEscape(id),
			Form:       serviceValues(detail),
			Categories: a.categoryOptions(r),
		},
		Service:  detail,
		Steps:    steps,
		NextStep: len(steps) + 1,
	}
	if stepsErr != nil {
		a.logger.Warn("failed to load service steps", "service", id, "error", stepsErr)
		data.StepsErr = stepsErr.Error()
	}
	a.pages.Page(w, http.StatusOK, "templates/service_edit.html", data)
}

// serviceValues fills the edit form from a loaded service.
func serviceValues(d backend.ServiceDetail) url.Values {
	v := url.Values{}
	v.Set("procedure_id", d.ProcedureID)
	v.Set("slug", d.Slug)
	v.Set("title", d.Title)
	v.Set("overview", d.Overview)
	v.Set("short_description", d.ShortDescription)
	v.Set("language", d.Language)
	v.Set("category_id", d.CategoryID.String())
	v.Set("sub_category_id", d.SubCategoryID.String())
	v.Set("target_audience", d.TargetAudience)
	v.Set("estimated_duration", d.EstimatedDuration)
	v.Set("processing_time", d.ProcessingTime)
	v.Set("fees", d.Fees)
	v.Set("keywords", strings.Join(d.Keywords, ", "))
	v.Set("status", d.Status)
	if d.IsOnlineAvailable {
		v.Set("is_online_available", "on")
	}
	if d.RequiresAppointment {
		v.Set("requires_appointment", "on")
	}
	return v
}

// handleServiceUpdate replaces a service with the submitted form.
func (a *Admin) handleServiceUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	back := editPath(id, r.PostForm.Get("slug"))
	req, err := validate.Service(r.PostForm, a.now())
	if err != nil {
		invalid(w, r, err, back)
		return
	}

	_, err = a.api.UpdateAdminService(r.Context(), authHeader(r), id, req)
	a.finish(w, r, change{
		action:     store.AuditUpdateService,
		mutation:   cache.UpdateService,
		targetType: "service",
		targetID:   id,
		detail:     map[string]any{"title": req.Title, "status": req.Status},
		success:    "Service updated.",
		redirect:   editPath(id, req.Slug),
	}, err)
}

// handleServicePublish publishes a draft service.
func (a *Admin) handleServicePublish(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	_, err := a.api.PublishAdminService(r.Context(), authHeader(r), id)
	a.finish(w, r, change{
		action:     store.AuditPublishService,
		mutation:   cache.PublishService,
		targetType: "service",
		targetID:   id,
		success:    "Service published.",
		redirect:   editPath(id, r.FormValue("slug")),
	}, err)
}

// handleServiceArchive archives a service, hiding it from the portal.
func (a *Admin) handleServiceArchive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	_, err := a.api.ArchiveAdminService(r.Context(), authHeader(r), id)
	a.finish(w, r, change{
		action:     store.AuditArchiveService,
		mutation:   cache.ArchiveService,
		targetType: "service",
		targetID:   id,
		success:    "Service archived.",
		redirect:   editPath(id, r.FormValue("slug")),
	}, err)
}

// handleServiceDelete deletes a service.
func (a *Admin) handleServiceDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := a.api.DeleteAdminService(r.Context(), authHeader(r), id)
	c := change{
		action:     store.AuditDeleteService,
		mutation:   cache.DeleteService,
		targetType: "service",
		targetID:   id,
		success:    "Service deleted.",
		redirect:   "/admin/services",
	}
	if err != nil {
		c.redirect = editPath(id, r.FormValue("slug"))
	}
	a.finish(w, r, c, err)
}

// handleStepCreate adds a step to a service.
func (a *Admin) handleStepCreate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	back := editPath(id, r.PostForm.Get("slug"))
	req, err := validate.Step(r.PostForm)
	if err != nil {
		invalid(w, r, err, back)
		return
	}

	step, err := a.api.CreateServiceStep(r.Context(), authHeader(r), id, req)
	a.finish(w, r, change{
		action:     store.AuditCreateStep,
		mutation:   cache.CreateStep,
		targetType: "step",
		targetID:   step.ID.String(),
		detail:     map[string]any{"service_id": id, "step_number": req.StepNumber},
		success:    fmt.Sprintf("Step %d added.", req.StepNumber),
		redirect:   back,
	}, err)
}

// handleStepUpdate replaces one step of a service.
func (a *Admin) handleStepUpdate(w http.ResponseWriter, r *http.Request) {
	id, stepID := r.PathValue("id"), r.PathValue("stepId")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	back := editPath(id, r.PostForm.Get("slug"))
	req, err := validate.Step(r.PostForm)
	if err != nil {
		invalid(w, r, err, back)
		return
	}

	_, err = a.api.UpdateServiceStep(r.Context(), authHeader(r), id, stepID, req)
	a.finish(w, r, change{
		action:     store.AuditUpdateStep,
		mutation:   cache.UpdateStep,
		targetType: "step",
		targetID:   stepID,
		detail:     map[string]any{"service_id": id, "step_number": req.StepNumber},
		success:    fmt.Sprintf("Step %d updated.", req.StepNumber),
		redirect:   back,
	}, err)
}

// handleStepDelete removes one step of a service.
func (a *Admin) handleStepDelete(w http.ResponseWriter, r *http.Request) {
	id, stepID := r.PathValue("id"), r.PathValue("stepId")
	err := a.api.DeleteServiceStep(r.Context(), authHeader(r), id, stepID)
	a.finish(w, r, change{
		action:     store.AuditDeleteStep,
		mutation:   cache.DeleteStep,
		targetType: "step",
		targetID:   stepID,
		detail:     map[string]any{"service_id": id},
		success:    "Step deleted.",
		redirect:   editPath(id, r.FormValue("slug")),
	}, err)
}

const importExample = `items:
  - title: Renew a passport
    overview: Apply to renew an expiring passport.
    category_id: "3"
    status: draft
`

type importData struct {
	page
	Document string
	Example  string
	Errors   *validate.Errors
	Result   *backend.BulkImportResult
	Count    int
}

func (a *Admin) renderImport(w http.ResponseWriter, r *http.Request, status int, data importData) {
	data.page = a.base(w, r, "Import services", "services")
	data.Example = importExample
	a.pages.Page(w, status, "templates/import.html", data)
}

// handleImportPage renders the bulk import form.
func (a *Admin) handleImportPage(w http.ResponseWriter, r *http.Request) {
	a.renderImport(w, r, http.StatusOK, importData{})
}

// handleImport validates an uploaded or pasted JSON/YAML document and sends
// its services to the bulk import endpoint.
func (a *Admin) handleImport(w http.ResponseWriter, r *http.Request) {
	doc, err := readImportDocument(r)
	if err != nil {
		errs := &validate.Errors{}
		errs.Add("document", err.Error())
		a.renderImport(w, r, http.StatusBadRequest, importData{Errors: errs})
		return
	}

	items, err := validate.BulkImport(doc, a.now())
	if err != nil {
		a.renderImport(w, r, http.StatusUnprocessableEntity, importData{Document: string(doc), Errors: fieldErrors(err)})
		return
	}

	result, err := a.api.BulkImportServices(r.Context(), authHeader(r), items)
	a.record(r, change{
		action:     store.AuditImportServices,
		targetType: "service",
		detail:     map[string]any{"items": len(items), "imported": result.Imported, "failed": result.Failed},
	}, err)
	if err != nil {
		if sessionRejected(err) {
			a.expireSession(w, r)
			return
		}
		a.logger.Warn("bulk import failed", "items", len(items), "error", err)
		errs := &validate.Errors{}
		errs.Add("form", err.Error())
		a.renderImport(w, r, http.StatusBadGateway, importData{Document: string(doc), Errors: errs})
		return
	}

	a.cache.InvalidateFor(cache.ImportServices)
	a.logger.Info("bulk import completed", "items", len(items), "imported", result.Imported, "failed", result.Failed)
	a.renderImport(w, r, http.StatusOK, importData{Result: &result, Count: len(items)})
}

// readImportDocument returns the uploaded file, or the pasted document when
// no file was chosen.
func readImportDocument(r *http.Request) ([]byte, error) {
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		if header.Size > maxImportSize {
			return nil, fmt.Errorf("import file is larger than %d MB", maxImportSize>>20)
		}
		data, err := io.ReadAll(io.LimitReader(file, maxImportSize))
		if err != nil {
			return nil, fmt.Errorf("reading upload: %w", err)
		}
		if len(bytes.TrimSpace(data)) > 0 {
			return data, nil
		}
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	doc := strings.TrimSpace(r.FormValue("document"))
	if doc == "" {
		return nil, errors.New("choose a file or paste a JSON or YAML document")
	}
	return []byte(doc), nil
}
