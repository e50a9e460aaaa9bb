package httpx

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	apperrors "github.com/target/coffee-ui/internal/errors"
	"github.com/target/coffee-ui/internal/http/validation"
	"github.com/target/coffee-ui/internal/service"
)

const (
	msgTooManyAttempts = "Too many sign-in attempts. Wait a moment and try again."
	msgBadCredentials  = "Invalid email or password."
)

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	UI       *UIHandlers // Renders the login and signup pages
	Sessions SessionRegistry
	Cookie   CookieConfig
	Redirect service.RedirectPolicy // Optional: defaults to role-based landing
	Limiter  *LoginLimiter          // Optional: nil disables throttling
	Proxies  TrustedProxies         // Optional: peers allowed to set X-Forwarded-For
	Logger   *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) redirectPolicy() service.RedirectPolicy {
	if h.Redirect != nil {
		return h.Redirect
	}
	return service.NewRoleRedirect(LandingPath, DashboardPath)
}

// postLoginTarget prefers a safe next path over the policy target.
func (h *AuthHandlers) postLoginTarget(next string, p domainauth.Profile) string {
	if next != "" {
		if safe := safeRedirectPath(next); safe != "/" && !isAuthPath(safe) {
			return safe
		}
	}
	return h.redirectPolicy().Target(p)
}

// LoginPage renders the sign-in form. GET /login.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if p, ok := ProfileFromContext(r.Context()); ok {
		redirectBrowser(w, r, h.postLoginTarget(next, p))
		return
	}
	data := NewTemplateData(r, loginMeta()).
		With("Next", safeNext(next)).
		With("Email", "").
		Build()
	h.UI.renderPage(w, r, http.StatusOK, data)
}

// Login handles POST /login. A successful sign-in always moves the browser to a freshly
// issued session id; the previous session is discarded.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	next := r.PostFormValue("next")

	form := map[string]any{"Email": email, "Next": safeNext(next)}

	if ip := h.Proxies.ClientIP(r); !h.Limiter.Allow(ip) {
		h.logger().WarnContext(r.Context(), "login throttled", "ip", ip)
		h.renderAuthError(w, r, authFormError{
			Meta: loginMeta(), Status: http.StatusTooManyRequests, Message: msgTooManyAttempts, Data: form,
		})
		return
	}

	fv := validation.New().
		Validate("email", email, validation.Required("Email", 254)).
		Validate("password", password, validation.Required("Password", 128))
	if !fv.Valid() {
		h.renderAuthError(w, r, authFormError{
			Meta: loginMeta(), Status: http.StatusBadRequest, Fields: fv.Errors(), Data: form,
		})
		return
	}

	fresh := h.Sessions.New()
	p, err := fresh.Login(r.Context(), domainauth.Credentials{Username: email, Password: password})
	if err != nil {
		h.Sessions.Forget(fresh.ID())
		h.logger().InfoContext(r.Context(), "login failed", "code", string(apperrors.GetCode(err)))
		msg := userMessage(err)
		if apperrors.IsAuthentication(err) {
			msg = msgBadCredentials
		}
		h.renderAuthError(w, r, authFormError{
			Meta: loginMeta(), Status: authStatus(err), Err: err, Message: msg, Data: form,
		})
		return
	}

	h.adopt(w, r, fresh)
	redirectAfterPost(w, r, h.postLoginTarget(next, p))
}

// SignupPage renders the employee signup form. GET /signup.
func (h *AuthHandlers) SignupPage(w http.ResponseWriter, r *http.Request) {
	if p, ok := ProfileFromContext(r.Context()); ok {
		redirectBrowser(w, r, h.redirectPolicy().Target(p))
		return
	}
	data := NewTemplateData(r, signupMeta()).
		With("Form", map[string]string{}).
		Build()
	h.UI.renderPage(w, r, http.StatusOK, data)
}

// Signup handles POST /signup. On success the new employee is signed in on a fresh session.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	raw := map[string]string{
		"ssn":    strings.TrimSpace(r.PostFormValue("ssn")),
		"name":   strings.TrimSpace(r.PostFormValue("name")),
		"email":  strings.TrimSpace(r.PostFormValue("email")),
		"salary": strings.TrimSpace(r.PostFormValue("salary")),
	}
	password := r.PostFormValue("password")
	form := map[string]any{"Form": raw}

	fv := validation.New().
		Validate("ssn", raw["ssn"], validation.Required("SSN", 11)).
		Validate("name", raw["name"], validation.Required("Name", 120)).
		Validate("email", raw["email"], validation.Required("Email", 254), validation.Email()).
		Validate("salary", raw["salary"], validation.Optional(validation.NonNegative("Salary"))).
		Validate("password", password, validation.Required("Password", 128))
	if !fv.Valid() {
		h.renderAuthError(w, r, authFormError{
			Meta: signupMeta(), Status: http.StatusBadRequest, Fields: fv.Errors(), Data: form,
		})
		return
	}
	salary, _ := strconv.ParseFloat(raw["salary"], 64)

	fresh := h.Sessions.New()
	p, err := fresh.Signup(r.Context(), domainauth.SignupRequest{
		SSN:      raw["ssn"],
		Name:     raw["name"],
		Email:    raw["email"],
		Salary:   salary,
		Password: password,
	})
	if err != nil {
		h.Sessions.Forget(fresh.ID())
		h.logger().InfoContext(r.Context(), "signup failed", "code", string(apperrors.GetCode(err)))
		h.renderAuthError(w, r, authFormError{
			Meta: signupMeta(), Status: authStatus(err), Err: err, Data: form,
		})
		return
	}

	h.adopt(w, r, fresh)
	redirectAfterPost(w, r, h.redirectPolicy().Target(p))
}

// adopt points the cookie at fresh and discards the request's previous session.
func (h *AuthHandlers) adopt(w http.ResponseWriter, r *http.Request, fresh *service.Session) {
	if old, ok := SessionFromContext(r.Context()); ok && old.ID() != fresh.ID() {
		if err := old.Logout(r.Context()); err != nil {
			h.logger().WarnContext(r.Context(), "discard previous session failed",
				"session", shortID(old.ID()), "error", err)
		}
		h.Sessions.Forget(old.ID())
	}
	h.Cookie.set(w, r, fresh.ID())
}

// Logout handles GET and POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if s, ok := SessionFromContext(r.Context()); ok {
		if err := s.Logout(r.Context()); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
		h.Sessions.Forget(s.ID())
	}

	h.Cookie.clear(w, r)

	if IsAJAX(r) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"ok":       true,
			"redirect": LoginPath,
		})
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

// Status returns the current authentication status. GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"authenticated": false,
		"state":         domainauth.StateAnonymous.String(),
	}
	if s, ok := SessionFromContext(r.Context()); ok {
		body["state"] = s.State().String()
		if p, ok := s.Profile(); ok {
			body["authenticated"] = true
			body["role"] = p.Role.String()
			body["name"] = p.Name
			body["email"] = p.Email
		}
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, body)
}

// authFormError describes a failed login or signup submission.
type authFormError struct {
	Meta    PageMeta
	Status  int
	Err     error
	Message string // Overrides the message derived from Err
	Fields  map[string]string
	Data    map[string]any
}

func (h *AuthHandlers) renderAuthError(w http.ResponseWriter, r *http.Request, e authFormError) {
	status := e.Status
	if IsHTMX(r) {
		status = http.StatusOK
	}
	RenderError(ErrorOpts{
		W:           w,
		R:           r,
		Err:         e.Err,
		Message:     e.Message,
		FieldErrors: e.Fields,
		Renderer:    h.UI.renderPage,
		PageMeta:    e.Meta,
		Data:        e.Data,
		StatusCode:  status,
	})
}

// authStatus maps an auth failure to the page status: 401 bad credentials, 400 rejected
// input, 5xx upstream trouble.
func authStatus(err error) int {
	switch {
	case apperrors.IsAuthentication(err):
		return http.StatusUnauthorized
	case apperrors.IsValidation(err), apperrors.IsConflict(err):
		return http.StatusBadRequest
	default:
		return StatusFor(err)
	}
}

func safeNext(next string) string {
	if next == "" {
		return ""
	}
	if safe := safeRedirectPath(next); safe != "/" && !isAuthPath(safe) {
		return safe
	}
	return ""
}

func loginMeta() PageMeta {
	return PageMeta{Title: "Sign in - Coffee Shop", PageTitle: "Sign in", CurrentPage: PageLogin}
}

func signupMeta() PageMeta {
	return PageMeta{Title: "Sign up - Coffee Shop", PageTitle: "Create your account", CurrentPage: PageSignup}
}
