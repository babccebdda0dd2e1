// ABOUTME: Admin agent management: listing, CRUD, OTP issuance and category assignment.

package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
)

// AgentQuery filters the agents list. A nil IsActive means any.
type AgentQuery struct {
	CategoryID string
	IsActive   *bool
}

// ListAgents returns the support agents.
func (c *Client) ListAgents(ctx context.Context, auth string, q AgentQuery) ([]Agent, error) {
	v := url.Values{}
	if q.CategoryID != "" {
		v.Set("category_id", q.CategoryID)
	}
	if q.IsActive != nil {
		v.Set("is_active", strconv.FormatBool(*q.IsActive))
	}
	return adminList[Agent](ctx, c, call{
		method: http.MethodGet, path: "/admin/agents", query: v, auth: auth,
		failure: "failed to get agents",
	}, "agents")
}

// CreateAgent creates an agent account.
func (c *Client) CreateAgent(ctx context.Context, auth string, req AgentRequest) (Agent, error) {
	return adminObject[Agent](ctx, c, call{
		method: http.MethodPost, path: "/admin/agents", body: req, auth: auth,
		failure: "failed to create agent",
	})
}

// UpdateAgent partially updates an agent.
func (c *Client) UpdateAgent(ctx context.Context, auth, id string, req AgentUpdate) (Agent, error) {
	return adminObject[Agent](ctx, c, call{
		method: http.MethodPut, path: "/admin/agents/" + escape(id), body: req, auth: auth,
		failure: "failed to update agent",
	})
}

// DeactivateAgent deactivates an agent.
func (c *Client) DeactivateAgent(ctx context.Context, auth, id string) error {
	return c.adminExec(ctx, call{
		method: http.MethodDelete, path: "/admin/agents/" + escape(id), auth: auth,
		failure: "failed to deactivate agent",
	})
}

// GenerateAgentOTP issues a one-time password for an agent.
func (c *Client) GenerateAgentOTP(ctx context.Context, auth, id string) (OTPResult, error) {
	return c.otp(ctx, call{
		method: http.MethodPost, path: "/admin/agents/" + escape(id) + "/otp", auth: auth,
		failure: "failed to generate otp",
	})
}

// AssignAgentCategory moves an agent to a category.
func (c *Client) AssignAgentCategory(ctx context.Context, auth, id, categoryID string) error {
	return c.adminExec(ctx, call{
		method: http.MethodPut, path: "/admin/agents/" + escape(id) + "/category",
		body: map[string]string{"category_id": categoryID}, auth: auth,
		failure: "failed to assign category",
	})
}

// otp performs an OTP request and reads the code leniently.
func (c *Client) otp(ctx context.Context, req call) (OTPResult, error) {
	if err := requireAuth(req.auth); err != nil {
		return OTPResult{}, err
	}
	payload, err := c.do(ctx, req)
	if err != nil {
		return OTPResult{}, err
	}
	return parseOTP(payload), nil
}

func parseOTP(payload []byte) OTPResult {
	obj := Object(payload)
	result := OTPResult{Raw: payload}
	for _, key := range []string{"otp", "code", "otp_code"} {
		if v := obj.Get(key); v.Exists() && v.Type != gjson.Null {
			result.Code = v.String()
			break
		}
	}
	result.ExpiresAt = obj.Get("expires_at").String()
	return result
}
