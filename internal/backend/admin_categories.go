// ABOUTME: Admin category management: paged listing, lookup and CRUD.

package backend

import (
	"context"
	"net/http"
)

// ListAdminCategories returns all categories with paging metadata.
func (c *Client) ListAdminCategories(ctx context.Context, auth string) (CategoryPage, error) {
	if err := requireAuth(auth); err != nil {
		return CategoryPage{}, err
	}
	payload, err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/admin/categories",
		auth:    auth,
		failure: "failed to get categories",
	})
	if err != nil {
		return CategoryPage{}, err
	}
	items, err := decodeList[Category](payload, "categories")
	if err != nil {
		return CategoryPage{}, err
	}
	return CategoryPage{Items: items, Pagination: Page(payload, len(items))}, nil
}

// GetAdminCategory returns a category by id.
func (c *Client) GetAdminCategory(ctx context.Context, auth, id string) (Category, error) {
	cat, err := adminObject[Category](ctx, c, call{
		method: http.MethodGet, path: "/admin/categories/" + escape(id), auth: auth,
		failure: "failed to get category",
	})
	if err == nil && cat.ID == "" {
		return Category{}, ErrEmptyResponse
	}
	return cat, err
}

// CreateAdminCategory creates a category.
func (c *Client) CreateAdminCategory(ctx context.Context, auth string, req CategoryRequest) (Category, error) {
	return adminObject[Category](ctx, c, call{
		method: http.MethodPost, path: "/admin/categories", body: req, auth: auth,
		failure: "failed to create category",
	})
}

// UpdateAdminCategory updates a category.
func (c *Client) UpdateAdminCategory(ctx context.Context, auth, id string, req CategoryRequest) (Category, error) {
	return adminObject[Category](ctx, c, call{
		method: http.MethodPut, path: "/admin/categories/" + escape(id), body: req, auth: auth,
		failure: "failed to update category",
	})
}

// DeleteAdminCategory deletes a category.
func (c *Client) DeleteAdminCategory(ctx context.Context, auth, id string) error {
	return c.adminExec(ctx, call{
		method: http.MethodDelete, path: "/admin/categories/" + escape(id), auth: auth,
		failure: "failed to delete category",
	})
}
