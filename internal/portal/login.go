// ABOUTME: Citizen sign-in and sign-out against the services API login endpoint
// ABOUTME: The returned access token stays server-side in a citizen session

package portal

import (
	"net/http"
	"strings"

	"github.com/2389/guday-portal/internal/auth"
	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/middleware"
	"github.com/2389/guday-portal/internal/render"
	"github.com/2389/guday-portal/internal/validate"
)

type loginData struct {
	page
	Username string
	Error    string
	Next     string
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func (p *Portal) renderLogin(w http.ResponseWriter, r *http.Request, status int, username, errMsg string) {
	data := loginData{
		page:     p.base(w, r, "Sign in"),
		Username: username,
		Error:    errMsg,
		Next:     safeNext(r.FormValue("next")),
	}
	p.pages.Page(w, status, "templates/login.html", data)
}

// handleLoginPage renders the citizen sign-in form.
func (p *Portal) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if auth.FromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	p.renderLogin(w, r, http.StatusOK, "", "")
}

// handleLogin signs a citizen in.
func (p *Portal) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		p.renderLogin(w, r, http.StatusBadRequest, "", "Invalid form data")
		return
	}

	creds, err := validate.Login(r.PostForm)
	if err != nil {
		p.renderLogin(w, r, http.StatusOK, r.PostForm.Get("username"), err.Error())
		return
	}

	ip := middleware.GetClientIP(r, p.config.TrustProxy)
	if !p.limiter.Allow(ip) {
		p.logger.Warn("citizen login throttled", "ip", ip)
		p.renderLogin(w, r, http.StatusTooManyRequests, creds.Username, "Too many sign-in attempts. Please wait a minute and try again.")
		return
	}

	result, err := p.catalog.Login(r.Context(), creds)
	if err != nil {
		msg := err.Error()
		if backend.IsUnauthorized(err) {
			msg = "Invalid username or password"
		}
		p.logger.Info("citizen login failed", "username", creds.Username, "error", err)
		p.renderLogin(w, r, http.StatusOK, creds.Username, msg)
		return
	}

	username := result.Username
	if username == "" {
		username = creds.Username
	}
	if _, err := p.sessions.Start(w, r, username, result.Token, result.TokenType); err != nil {
		p.logger.Error("failed to start citizen session", "error", err)
		p.renderLogin(w, r, http.StatusOK, creds.Username, "Sign-in failed, please try again.")
		return
	}

	p.logger.Info("citizen login successful", "username", username)
	render.SetFlash(w, render.FlashSuccess, "Welcome back, "+username+".")
	http.Redirect(w, r, safeNext(r.PostForm.Get("next")), http.StatusSeeOther)
}

// handleLogout ends the citizen session.
func (p *Portal) handleLogout(w http.ResponseWriter, r *http.Request) {
	p.sessions.End(w, r)
	render.SetFlash(w, render.FlashInfo, "You have been signed out.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
