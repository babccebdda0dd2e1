// ABOUTME: Admin authentication: login and current-admin lookup.
// ABOUTME: Login tolerates wrapped responses and the token/access_token naming split.

package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrNoAccessToken is returned when the admin login response carried no token.
var ErrNoAccessToken = errors.New("admin login response did not include access_token")

// AdminLogin exchanges admin credentials for an access token.
func (c *Client) AdminLogin(ctx context.Context, creds Credentials) (LoginResult, error) {
	payload, err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    "/admin/auth/login",
		body:    creds,
		failure: "admin login failed",
	})
	if err != nil {
		return LoginResult{}, err
	}

	obj := Object(payload)
	token := obj.Get("access_token").String()
	if token == "" {
		token = obj.Get("token").String()
	}
	if strings.TrimSpace(token) == "" {
		return LoginResult{}, ErrNoAccessToken
	}
	tokenType := obj.Get("token_type").String()
	if tokenType == "" {
		tokenType = "bearer"
	}
	return LoginResult{Token: token, TokenType: tokenType, Username: creds.Username}, nil
}

// CurrentAdmin returns the profile of the admin owning auth.
func (c *Client) CurrentAdmin(ctx context.Context, auth string) (AdminProfile, error) {
	if err := requireAuth(auth); err != nil {
		return AdminProfile{}, err
	}
	payload, err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/admin/auth/me",
		auth:    auth,
		failure: "failed to get admin",
	})
	if err != nil {
		return AdminProfile{}, err
	}
	return decodeObject[AdminProfile](payload)
}
