// ABOUTME: Admin sign-in and sign-out against the services API admin login
// ABOUTME: Logins are throttled per client IP and recorded in the audit log

package webadmin

import (
	"errors"
	"net/http"

	"github.com/2389/guday-portal/internal/auth"
	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/middleware"
	"github.com/2389/guday-portal/internal/store"
	"github.com/2389/guday-portal/internal/validate"
)

type loginData struct {
	page
	Username string
	Error    string
}

func (a *Admin) renderLoginPage(w http.ResponseWriter, r *http.Request, status int, username, errMsg string) {
	data := loginData{
		page:     a.base(w, r, "Admin login", ""),
		Username: username,
		Error:    errMsg,
	}
	a.pages.Page(w, status, "templates/login.html", data)
}

// handleLoginPage renders the login page.
func (a *Admin) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	// If already logged in, redirect to dashboard
	if _, err := a.sessions.Load(r); err == nil {
		http.Redirect(w, r, "/admin/", http.StatusSeeOther)
		return
	}
	a.renderLoginPage(w, r, http.StatusOK, "", "")
}

// handleLogin processes login form submission.
func (a *Admin) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.renderLoginPage(w, r, http.StatusBadRequest, "", "Invalid form data")
		return
	}

	creds, err := validate.Login(r.PostForm)
	if err != nil {
		a.renderLoginPage(w, r, http.StatusOK, r.PostForm.Get("username"), err.Error())
		return
	}

	ip := middleware.GetClientIP(r, a.config.TrustProxy)
	if !a.limiter.Allow(ip) {
		a.logger.Warn("admin login throttled", "ip", ip, "username", creds.Username)
		a.renderLoginPage(w, r, http.StatusTooManyRequests, creds.Username, "Too many login attempts. Please wait a minute and try again.")
		return
	}

	result, err := a.api.AdminLogin(r.Context(), creds)
	if err == nil {
		_, err = a.sessions.Start(w, r, creds.Username, result.Token, result.TokenType)
	}
	if err != nil {
		a.auditLogin(r, store.AuditLoginFailed, creds.Username, ip, err)
		msg := err.Error()
		switch {
		case backend.IsUnauthorized(err):
			msg = "Invalid username or password"
		case errors.Is(err, auth.ErrNoToken):
			msg = "Login failed: the server did not return a usable token"
		}
		a.logger.Info("admin login failed", "username", creds.Username, "error", err)
		a.renderLoginPage(w, r, http.StatusOK, creds.Username, msg)
		return
	}

	a.auditLogin(r, store.AuditLogin, creds.Username, ip, nil)
	a.logger.Info("admin login successful", "username", creds.Username)
	http.Redirect(w, r, "/admin/", http.StatusSeeOther)
}

func (a *Admin) auditLogin(r *http.Request, action store.AuditAction, username, ip string, err error) {
	entry := &store.AuditEntry{
		Actor:      username,
		Action:     action,
		TargetType: "session",
		Detail:     map[string]any{"ip": ip},
		Outcome:    store.OutcomeOK,
	}
	if err != nil {
		entry.Outcome = store.OutcomeError
		entry.Detail["error"] = err.Error()
	}
	if auditErr := a.audit.AppendAuditLog(r.Context(), entry); auditErr != nil {
		a.logger.Error("failed to write audit log", "action", action, "error", auditErr)
	}
}

// handleLogout logs out the current admin.
func (a *Admin) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	a.record(r, change{action: store.AuditLogout, targetType: "session"}, nil)
	a.sessions.End(w, r)
	a.csrf.Clear(w)
	a.logger.Info("admin logged out", "username", sess.Username)
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}
