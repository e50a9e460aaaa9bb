package httpx

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
)

const (
	// DefaultCSRFCookieName names the token cookie and the hidden form field.
	DefaultCSRFCookieName = "csrf_token"
	// DefaultCSRFHeaderName is the header htmx echoes the token in (canonical form).
	DefaultCSRFHeaderName = "X-Csrf-Token"
	// DefaultCSRFTokenLength is the token entropy in bytes.
	DefaultCSRFTokenLength = 32

	csrfCookieMaxAge = 12 * 60 * 60
)

// CSRFConfig configures CSRFProtection. Zero values take the defaults above.
type CSRFConfig struct {
	CookieName    string
	HeaderName    string
	FormFieldName string
	CookieDomain  string
	TokenLength   int
	Logger        *slog.Logger
}

// csrfGuard implements the double-submit cookie check: a random token lives in a cookie
// readable by page script, and unsafe requests must echo it in a header or form field.
type csrfGuard struct {
	CSRFConfig
}

func newCSRFGuard(cfg CSRFConfig) *csrfGuard {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCSRFCookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultCSRFHeaderName
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultCSRFCookieName
	}
	if cfg.TokenLength <= 0 {
		cfg.TokenLength = DefaultCSRFTokenLength
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &csrfGuard{cfg}
}

// CSRFProtection issues a token to every visitor that lacks one and rejects unsafe
// requests whose echoed token does not match the cookie. Safe methods pass unchecked.
func CSRFProtection(cfg CSRFConfig) func(http.Handler) http.Handler {
	g := newCSRFGuard(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := g.ensure(w, r)
			if err != nil {
				g.Logger.ErrorContext(r.Context(), "csrf token generation failed", "error", err)
				http.Error(w, "unable to generate CSRF token", http.StatusInternalServerError)
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), csrfTokenKey{}, token))

			if !safeMethod(r.Method) && !g.matches(r, token) {
				g.reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ensure returns the visitor's token, minting and setting a new cookie when there is none.
func (g *csrfGuard) ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(g.CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	raw := make([]byte, g.TokenLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(raw)
	http.SetCookie(w, &http.Cookie{
		Name:     g.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   g.CookieDomain,
		HttpOnly: false, // htmx reads it to fill the header
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   csrfCookieMaxAge,
	})
	return token, nil
}

// matches reports whether the request echoes token. The header wins over the form field;
// the form is only parsed for form content types.
func (g *csrfGuard) matches(r *http.Request, token string) bool {
	if _, err := r.Cookie(g.CookieName); err != nil {
		return false
	}
	echoed := r.Header.Get(g.HeaderName)
	if echoed == "" && isFormBody(r) {
		if err := r.ParseForm(); err != nil {
			return false
		}
		echoed = r.PostFormValue(g.FormFieldName)
	}
	return echoed != "" && subtle.ConstantTimeCompare([]byte(echoed), []byte(token)) == 1
}

func (g *csrfGuard) reject(w http.ResponseWriter, r *http.Request) {
	g.Logger.WarnContext(r.Context(), "csrf validation failed", "method", r.Method, "path", r.URL.Path)
	if IsBrowserRequest(r) && !IsHTMX(r) {
		http.Error(w, "Your form expired. Reload the page and try again.", http.StatusForbidden)
		return
	}
	WriteError(w, ErrorParams{
		Code:    http.StatusForbidden,
		ErrCode: "csrf_failed",
		Err:     errors.New("CSRF token validation failed"),
	})
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func isFormBody(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

type csrfTokenKey struct{}

// GetCSRFToken returns the token CSRFProtection attached to the request, for templates.
func GetCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfTokenKey{}).(string)
	return token
}
