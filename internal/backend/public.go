// ABOUTME: Public catalog operations: services, categories, search and citizen login.
// ABOUTME: These calls need no admin session and are shared by every visitor.

package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ServiceQuery filters the public services list. Zero values are omitted.
type ServiceQuery struct {
	Page              int
	PageSize          int
	CategoryID        string
	TargetAudience    string
	IsOnlineAvailable bool
	Search            string
}

func (q ServiceQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.CategoryID != "" {
		v.Set("category_id", q.CategoryID)
	}
	if q.TargetAudience != "" {
		v.Set("target_audience", q.TargetAudience)
	}
	if q.IsOnlineAvailable {
		v.Set("is_online_available", "true")
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// ListServices returns one page of published services.
func (c *Client) ListServices(ctx context.Context, q ServiceQuery) (ServicePage, error) {
	payload, err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/services",
		query:   q.values(),
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

// GetService returns the base record of the service with the given slug.
func (c *Client) GetService(ctx context.Context, slug string) (ServiceDetail, error) {
	payload, err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/services/" + escape(slug),
		failure: "failed to get service",
	})
	if err != nil {
		return ServiceDetail{}, err
	}
	return decodeObject[ServiceDetail](payload)
}

// ServiceSteps returns the procedure steps of a service.
func (c *Client) ServiceSteps(ctx context.Context, slug string) ([]Step, error) {
	payload, err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/services/" + escape(slug) + "/steps",
		failure: "failed to get service steps",
	})
	if err != nil {
		return nil, err
	}
	return decodeList[Step](payload, "steps")
}

// ServiceDocuments returns the documents required by a service.
func (c *Client) ServiceDocuments(ctx context.Context, slug string) ([]DocumentRequirement, error) {
	payload, err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/services/" + escape(slug) + "/documents",
		failure: "failed to get service documents",
	})
	if err != nil {
		return nil, err
	}
	return decodeList[DocumentRequirement](payload, "documents")
}

// ServiceFAQs returns the FAQs of a service.
func (c *Client) ServiceFAQs(ctx context.Context, slug string) ([]FAQ, error) {
	payload, err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/services/" + escape(slug) + "/faqs",
		failure: "failed to get service faqs",
	})
	if err != nil {
		return nil, err
	}
	return decodeList[FAQ](payload, "faqs")
}

// ListCategories returns the public category tree.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	payload, err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/categories",
		failure: "failed to get categories",
	})
	if err != nil {
		return nil, err
	}
	return decodeList[Category](payload, "categories")
}

// GetCategory returns the category with the given slug.
func (c *Client) GetCategory(ctx context.Context, slug string) (Category, error) {
	payload, err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/categories/" + escape(slug),
		failure: "failed to get category",
	})
	if err != nil {
		return Category{}, err
	}
	return decodeObject[Category](payload)
}

// SearchQuery is a full-text search over services.
type SearchQuery struct {
	Q          string
	CategoryID string
	Limit      int
}

// Search runs a full-text search.
func (c *Client) Search(ctx context.Context, q SearchQuery) (SearchResult, error) {
	v := url.Values{}
	v.Set("q", q.Q)
	if q.CategoryID != "" {
		v.Set("category_id", q.CategoryID)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	payload, err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/search",
		query:   v,
		failure: "search failed",
	})
	if err != nil {
		return SearchResult{}, err
	}
	items, err := decodeList[Service](payload, "services")
	if err != nil {
		return SearchResult{}, err
	}
	result := SearchResult{
		Items: items,
		Total: Page(payload, len(items)).Total,
		Query: q.Q,
	}
	if echoed := gjson.GetBytes(payload, "query"); echoed.Type == gjson.String {
		result.Query = echoed.String()
	}
	return result, nil
}

// ErrInvalidLogin is returned when a login succeeded but carried no token.
var ErrInvalidLogin = errors.New("login failed: invalid response")

// Login signs a citizen in.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	payload, err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    "/login",
		body:    creds,
		failure: "login failed",
	})
	if err != nil {
		return LoginResult{}, err
	}
	token := gjson.GetBytes(payload, "access_token").String()
	if strings.TrimSpace(token) == "" {
		return LoginResult{}, ErrInvalidLogin
	}
	return LoginResult{
		Token:     token,
		TokenType: gjson.GetBytes(payload, "token_type").String(),
		Username:  creds.Username,
	}, nil
}
