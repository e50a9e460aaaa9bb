package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
)

// Decision is the outcome of a route guard check.
type Decision int

const (
	// Allow renders the protected route.
	Allow Decision = iota
	// RedirectLogin sends the visitor to the login page.
	RedirectLogin
	// RedirectLanding sends an authenticated visitor without the role to the landing page.
	RedirectLanding
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	default:
		return "redirect_landing"
	}
}

// Decide is the guard policy. An empty required role admits any authenticated profile.
// Anything short of Authenticated with a profile goes to login.
func Decide(state domainauth.State, profile *domainauth.Profile, required domainauth.Role) Decision {
	if state != domainauth.StateAuthenticated || profile == nil {
		return RedirectLogin
	}
	if required != "" && profile.Role != required {
		return RedirectLanding
	}
	return Allow
}

// GuardOptions configures the guard middlewares.
type GuardOptions struct {
	// LandingPath receives authenticated users who lack the required role (default "/").
	LandingPath string
}

func (o GuardOptions) landing() string {
	if o.LandingPath == "" {
		return LandingPath
	}
	return o.LandingPath
}

// RequireAuthenticated admits only Authenticated sessions. Browsers are redirected to the
// login page; API callers receive 401 JSON. The wrapped handler never runs otherwise.
func RequireAuthenticated(opts GuardOptions) func(http.Handler) http.Handler {
	return guard("", opts)
}

// RequireRole admits only Authenticated sessions holding role. Authenticated users without
// it are redirected to the landing page (browser) or receive 403 JSON (API).
func RequireRole(role domainauth.Role, opts GuardOptions) func(http.Handler) http.Handler {
	return guard(role, opts)
}

func guard(role domainauth.Role, opts GuardOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := domainauth.StateUnknown
			var profile *domainauth.Profile
			if s, ok := SessionFromContext(r.Context()); ok {
				state = s.State()
				if p, ok := s.Profile(); ok {
					profile = &p
				}
			}

			switch Decide(state, profile, role) {
			case Allow:
				next.ServeHTTP(w, r)
			case RedirectLogin:
				denyUnauthenticated(w, r)
			case RedirectLanding:
				if IsBrowserRequest(r) {
					redirectBrowser(w, r, opts.landing())
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
			}
		})
	}
}

func denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if IsBrowserRequest(r) {
		redirectToLogin(w, r)
		return
	}
	WriteError(w, ErrorParams{
		Code:    http.StatusUnauthorized,
		ErrCode: "authentication_required",
		Err:     errors.New("authentication required"),
	})
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	// Backslashes are treated as slashes by some browsers.
	if strings.ContainsAny(candidate, "\\\r\n") {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}
