// ABOUTME: Admin category management: the flattened category tree, create, edit and delete
// ABOUTME: The list filters the flattened tree locally by the q parameter

package webadmin

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/cache"
	"github.com/2389/guday-portal/internal/store"
	"github.com/2389/guday-portal/internal/validate"
)

type categoriesData struct {
	page
	Categories []backend.FlatCategory
	Query      string
	Total      int
}

// handleCategoriesList renders the category tree, parents before children.
func (a *Admin) handleCategoriesList(w http.ResponseWriter, r *http.Request) {
	tree, err := a.categoryTree(r)
	if err != nil {
		a.fail(w, r, err, "categories", "/admin/")
		return
	}

	flat := backend.FlattenCategories(tree)
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	matched := make([]backend.FlatCategory, 0, len(flat))
	for _, c := range flat {
		if c.Matches(q) {
			matched = append(matched, c)
		}
	}

	data := categoriesData{
		page:       a.base(w, r, "Categories", "categories"),
		Categories: matched,
		Query:      q,
		Total:      len(flat),
	}
	a.pages.Page(w, http.StatusOK, "templates/categories.html", data)
}

type categoryFormData struct {
	page
	ID      string
	Action  string
	Form    url.Values
	Errors  *validate.Errors
	Parents []backend.FlatCategory
}

func (a *Admin) renderCategoryForm(w http.ResponseWriter, r *http.Request, status int, id string, form url.Values, errs *validate.Errors) {
	title, action := "New category", "/admin/categories"
	if id != "" {
		title, action = "Edit "+form.Get("name"), "/admin/categories/"+url.PathEscape(id)
	}

	// A category cannot be its own parent.
	var parents []backend.FlatCategory
	for _, c := range a.categoryOptions(r) {
		if id == "" || c.ID.String() != id {
			parents = append(parents, c)
		}
	}

	data := categoryFormData{
		page:    a.base(w, r, title, "categories"),
		ID:      id,
		Action:  action,
		Form:    form,
		Errors:  errs,
		Parents: parents,
	}
	a.pages.Page(w, status, "templates/category_form.html", data)
}

// handleCategoryNew renders an empty category form.
func (a *Admin) handleCategoryNew(w http.ResponseWriter, r *http.Request) {
	form := url.Values{}
	form.Set("display_order", "0")
	form.Set("parent_id", r.URL.Query().Get("parent_id"))
	a.renderCategoryForm(w, r, http.StatusOK, "", form, nil)
}

// handleCategoryEdit renders the edit form for one category.
func (a *Admin) handleCategoryEdit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cat, err := cache.Fetch(r.Context(), a.cache, cache.Key{cache.AdminCategory, scope(r), id}, func(ctx context.Context) (backend.Category, error) {
		return a.api.GetAdminCategory(ctx, authHeader(r), id)
	})
	if err != nil {
		a.fail(w, r, err, "category", "/admin/categories")
		return
	}
	a.renderCategoryForm(w, r, http.StatusOK, id, categoryValues(cat), nil)
}

func categoryValues(c backend.Category) url.Values {
	v := url.Values{}
	v.Set("name", c.Name)
	v.Set("slug", c.Slug)
	v.Set("description", c.Description)
	v.Set("parent_id", c.ParentID.String())
	v.Set("icon_url", c.IconURL)
	v.Set("display_order", strconv.Itoa(int(c.DisplayOrder)))
	return v
}

// handleCategoryCreate creates a category.
func (a *Admin) handleCategoryCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	req, err := validate.Category(r.PostForm)
	if err != nil {
		a.renderCategoryForm(w, r, http.StatusUnprocessableEntity, "", r.PostForm, fieldErrors(err))
		return
	}

	cat, err := a.api.CreateAdminCategory(r.Context(), authHeader(r), req)
	a.commit(w, r, change{
		action:     store.AuditCreateCategory,
		mutation:   cache.CreateCategory,
		targetType: "category",
		targetID:   cat.ID.String(),
		detail:     map[string]any{"name": req.Name, "slug": req.Slug},
		success:    "Category " + req.Name + " created.",
		redirect:   "/admin/categories",
	}, err, func(status int, errs *validate.Errors) {
		a.renderCategoryForm(w, r, status, "", r.PostForm, errs)
	})
}

// handleCategoryUpdate saves the edit form of one category.
func (a *Admin) handleCategoryUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	req, err := validate.Category(r.PostForm)
	if err != nil {
		a.renderCategoryForm(w, r, http.StatusUnprocessableEntity, id, r.PostForm, fieldErrors(err))
		return
	}
	if req.ParentID != nil && *req.ParentID == id {
		errs := &validate.Errors{}
		errs.Add("parent_id", "A category cannot be its own parent.")
		a.renderCategoryForm(w, r, http.StatusUnprocessableEntity, id, r.PostForm, errs)
		return
	}

	_, err = a.api.UpdateAdminCategory(r.Context(), authHeader(r), id, req)
	a.commit(w, r, change{
		action:     store.AuditUpdateCategory,
		mutation:   cache.UpdateCategory,
		targetType: "category",
		targetID:   id,
		detail:     map[string]any{"name": req.Name, "slug": req.Slug},
		success:    "Category " + req.Name + " updated.",
		redirect:   "/admin/categories",
	}, err, func(status int, errs *validate.Errors) {
		a.renderCategoryForm(w, r, status, id, r.PostForm, errs)
	})
}

// handleCategoryDelete deletes a category.
func (a *Admin) handleCategoryDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := a.api.DeleteAdminCategory(r.Context(), authHeader(r), id)
	a.finish(w, r, change{
		action:     store.AuditDeleteCategory,
		mutation:   cache.DeleteCategory,
		targetType: "category",
		targetID:   id,
		success:    "Category deleted.",
		redirect:   "/admin/categories",
	}, err)
}
