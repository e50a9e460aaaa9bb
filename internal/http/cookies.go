package httpx

import (
	"net/http"
	"strings"
	"time"
)

// DefaultSessionCookieName names the opaque session id cookie.
const DefaultSessionCookieName = "session_id"

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	Name   string
	Domain string
	// MaxAge in seconds. Zero makes a browser-session cookie.
	MaxAge int
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return DefaultSessionCookieName
	}
	return c.Name
}

// sessionID returns the session id carried by the request, if any.
func (c CookieConfig) sessionID(r *http.Request) string {
	ck, err := r.Cookie(c.name())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(ck.Value)
}

func (c CookieConfig) set(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    id,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   c.MaxAge,
	})
}

// clear expires the cookie. It mirrors the attributes used when setting it.
func (c CookieConfig) clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// isSecureRequest reports TLS directly or through a proxy's X-Forwarded-Proto.
func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}
