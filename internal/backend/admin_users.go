// ABOUTME: System user management: listing, creation, role and category assignment, OTP.
// ABOUTME: These endpoints live under /users/ rather than /admin/ on the API.

package backend

import (
	"context"
	"net/http"
)

// ListUsers returns every system user.
func (c *Client) ListUsers(ctx context.Context, auth string) ([]User, error) {
	return adminList[User](ctx, c, call{
		method: http.MethodGet, path: "/users/", auth: auth,
		failure: "failed to get users",
	}, "users")
}

// ListUsersByCategory returns the users assigned to a category.
func (c *Client) ListUsersByCategory(ctx context.Context, auth, categoryID string) ([]User, error) {
	return adminList[User](ctx, c, call{
		method: http.MethodGet, path: "/users/category/" + escape(categoryID), auth: auth,
		failure: "failed to get users",
	}, "users")
}

// CreateUser creates a system user.
func (c *Client) CreateUser(ctx context.Context, auth string, req UserRequest) (User, error) {
	return adminObject[User](ctx, c, call{
		method: http.MethodPost, path: "/users/", body: req, auth: auth,
		failure: "failed to create user",
	})
}

// AssignUserRoles grants roles to a user.
func (c *Client) AssignUserRoles(ctx context.Context, auth, id string, roleIDs []string) error {
	return c.adminExec(ctx, call{
		method: http.MethodPost, path: "/users/" + escape(id) + "/roles",
		body: map[string][]string{"role_ids": roleIDs}, auth: auth,
		failure: "failed to assign roles",
	})
}

// AssignUserCategory assigns a user to a category.
func (c *Client) AssignUserCategory(ctx context.Context, auth, id, categoryID string) error {
	return c.adminExec(ctx, call{
		method: http.MethodPost, path: "/users/" + escape(id) + "/category",
		body: map[string]string{"category_id": categoryID}, auth: auth,
		failure: "failed to assign category",
	})
}

// GenerateUserOTP issues a one-time password for a user.
func (c *Client) GenerateUserOTP(ctx context.Context, auth, id string) (OTPResult, error) {
	return c.otp(ctx, call{
		method: http.MethodPost, path: "/users/" + escape(id) + "/otp", auth: auth,
		failure: "failed to generate otp",
	})
}
