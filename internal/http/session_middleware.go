package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/target/coffee-ui/internal/service"
)

// SessionRegistry opens and drops live sessions by cookie id.
type SessionRegistry interface {
	Open(ctx context.Context, id string) (*service.Session, error)
	New() *service.Session
	Forget(id string)
}

// SessionsOptions groups dependencies for the Sessions middleware.
type SessionsOptions struct {
	Registry SessionRegistry // Required
	Cookie   CookieConfig
	Logger   *slog.Logger
}

// Sessions resolves the request's session before any handler runs and stores it in the
// context. A request without a well-formed cookie gets a fresh Anonymous session and a
// new cookie. A failed restore is logged and the request continues as Anonymous.
func Sessions(opts SessionsOptions) func(http.Handler) http.Handler {
	if opts.Registry == nil {
		panic("httpx: Sessions requires a registry") //nolint:forbidigo // wiring bug
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := opts.Cookie.sessionID(r)
			if _, err := uuid.Parse(id); err != nil {
				id = ""
			}
			s, err := opts.Registry.Open(r.Context(), id)
			if err != nil {
				logger.DebugContext(r.Context(), "session restore failed",
					"session", shortID(id), "error", err)
			}
			if s == nil {
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			if s.ID() != id {
				opts.Cookie.set(w, r, s.ID())
			}
			tagSession(r, s.ID())
			next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), s)))
		})
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
