// ABOUTME: Admin service management: listing, CRUD, publishing, steps and bulk import.
// ABOUTME: Reads fall back to the public endpoints when the admin API refuses them.

package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
)

// AdminServiceQuery filters the admin services list. Zero values are omitted.
type AdminServiceQuery struct {
	Page       int
	PageSize   int
	Status     string
	CategoryID string
	Search     string
}

func (q AdminServiceQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.CategoryID != "" {
		v.Set("category_id", q.CategoryID)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// fallbackStatuses are the admin responses that send reads to the public API.
var fallbackStatuses = []int{
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusMethodNotAllowed,
}

func shouldFallback(err error) bool {
	return slices.Contains(fallbackStatuses, StatusOf(err))
}

// ErrNoFallbackSlug is returned when an admin read was refused and there is
// no slug to retry against the public API.
var ErrNoFallbackSlug = errors.New("failed to get service: missing slug for fallback endpoint")

// ListAdminServices returns one page of services including drafts.
func (c *Client) ListAdminServices(ctx context.Context, auth string, q AdminServiceQuery) (ServicePage, error) {
	if err := requireAuth(auth); err != nil {
		return ServicePage{}, err
	}
	payload, err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/admin/services",
		query:   q.values(),
		auth:    auth,
		failure: "failed to get services",
	})
	if err != nil {
		return ServicePage{}, err
	}
	items, err := decodeList[Service](payload, "services")
	if err != nil {
		return ServicePage{}, err
	}
	return ServicePage{Items: items, Pagination: Page(payload, len(items))}, nil
}

// GetAdminService returns a service by id, retrying the public slug endpoint
// when the admin endpoint answers 401, 403, 404 or 405.
func (c *Client) GetAdminService(ctx context.Context, auth, id, fallbackSlug string) (ServiceDetail, error) {
	if auth != "" {
		payload, err := c.do(ctx, call{
			method:  http.MethodGet,
			path:    "/admin/services/" + escape(id),
			auth:    auth,
			failure: "failed to get service",
		})
		if err == nil {
			return decodeObject[ServiceDetail](payload)
		}
		if !shouldFallback(err) {
			return ServiceDetail{}, err
		}
		c.logger.Debug("admin service read refused, using public endpoint", "service_id", id, "status", StatusOf(err))
	}
	if fallbackSlug == "" {
		return ServiceDetail{}, ErrNoFallbackSlug
	}
	return c.GetService(ctx, fallbackSlug)
}

// AdminServiceSteps returns the steps of a service with the same fallback as
// GetAdminService. A failed public fallback yields no steps.
func (c *Client) AdminServiceSteps(ctx context.Context, auth, id, fallbackSlug string) ([]Step, error) {
	if auth != "" {
		payload, err := c.do(ctx, call{
			method:  http.MethodGet,
			path:    "/admin/services/" + escape(id) + "/steps",
			auth:    auth,
			failure: "failed to get service steps",
		})
		if err == nil {
			return decodeList[Step](payload, "steps")
		}
		if !shouldFallback(err) {
			return nil, err
		}
	}
	if fallbackSlug == "" {
		return []Step{}, nil
	}
	steps, err := c.ServiceSteps(ctx, fallbackSlug)
	if err != nil {
		c.logger.Debug("public steps fallback failed", "slug", fallbackSlug, "error", err)
		return []Step{}, nil
	}
	return steps, nil
}

// CreateAdminService creates a service.
func (c *Client) CreateAdminService(ctx context.Context, auth string, req ServiceRequest) (Service, error) {
	return adminObject[Service](ctx, c, call{
		method: http.MethodPost, path: "/admin/services", body: req, auth: auth,
		failure: "failed to create service",
	})
}

// UpdateAdminService replaces a service's editable fields.
func (c *Client) UpdateAdminService(ctx context.Context, auth, id string, req ServiceRequest) (Service, error) {
	return adminObject[Service](ctx, c, call{
		method: http.MethodPut, path: "/admin/services/" + escape(id), body: req, auth: auth,
		failure: "failed to update service",
	})
}

// PublishAdminService publishes a draft service.
func (c *Client) PublishAdminService(ctx context.Context, auth, id string) (Service, error) {
	return adminObject[Service](ctx, c, call{
		method: http.MethodPost, path: "/admin/services/" + escape(id) + "/publish", auth: auth,
		failure: "failed to publish service",
	})
}

// ArchiveAdminService archives a service.
func (c *Client) ArchiveAdminService(ctx context.Context, auth, id string) (Service, error) {
	return adminObject[Service](ctx, c, call{
		method: http.MethodPost, path: "/admin/services/" + escape(id) + "/archive", auth: auth,
		failure: "failed to archive service",
	})
}

// DeleteAdminService deletes a service.
func (c *Client) DeleteAdminService(ctx context.Context, auth, id string) error {
	return c.adminExec(ctx, call{
		method: http.MethodDelete, path: "/admin/services/" + escape(id), auth: auth,
		failure: "failed to delete service",
	})
}

// CreateServiceStep adds a step to a service.
func (c *Client) CreateServiceStep(ctx context.Context, auth, serviceID string, req StepRequest) (Step, error) {
	return adminObject[Step](ctx, c, call{
		method: http.MethodPost, path: "/admin/services/" + escape(serviceID) + "/steps", body: req, auth: auth,
		failure: "failed to create step",
	})
}

// UpdateServiceStep replaces a step.
func (c *Client) UpdateServiceStep(ctx context.Context, auth, serviceID, stepID string, req StepRequest) (Step, error) {
	return adminObject[Step](ctx, c, call{
		method: http.MethodPut, path: stepPath(serviceID, stepID), body: req, auth: auth,
		failure: "failed to update step",
	})
}

// DeleteServiceStep removes a step.
func (c *Client) DeleteServiceStep(ctx context.Context, auth, serviceID, stepID string) error {
	return c.adminExec(ctx, call{
		method: http.MethodDelete, path: stepPath(serviceID, stepID), auth: auth,
		failure: "failed to delete step",
	})
}

func stepPath(serviceID, stepID string) string {
	return "/admin/services/" + escape(serviceID) + "/steps/" + escape(stepID)
}

// BulkImportServices creates many services in one request.
func (c *Client) BulkImportServices(ctx context.Context, auth string, items []ServiceRequest) (BulkImportResult, error) {
	return adminObject[BulkImportResult](ctx, c, call{
		method:  http.MethodPost,
		path:    "/admin/services/import/bulk",
		body:    map[string]any{"items": items},
		auth:    auth,
		failure: "failed to import services",
	})
}
