package config

import (
	"fmt"
	"strings"
	"time"
)

// SessionStore selects where bearer tokens are persisted.
type SessionStore string

const (
	// SessionStoreRedis keeps tokens in Redis so they survive restarts.
	SessionStoreRedis SessionStore = "redis"
	// SessionStoreMemory keeps tokens in process memory.
	SessionStoreMemory SessionStore = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionStore.
func (s *SessionStore) UnmarshalText(text []byte) error {
	v := SessionStore(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case "", SessionStoreRedis, SessionStoreMemory:
		*s = v
		return nil
	default:
		return fmt.Errorf("invalid session store %q (valid options: redis, memory)", string(text))
	}
}

// SessionConfig controls session persistence and the session cookie.
type SessionConfig struct {
	// Store is empty by default: memory in dev mode, redis otherwise.
	Store SessionStore `env:"STORE"`
	// StoreTTL bounds how long an abandoned token stays in Redis.
	StoreTTL time.Duration `env:"STORE_TTL" envDefault:"168h"`
	// MaxLive bounds the in-process session registry.
	MaxLive    int    `env:"MAX_LIVE"    envDefault:"10000"`
	CookieName string `env:"COOKIE_NAME" envDefault:"session_id"`
	// CookieMaxAge in seconds. Zero makes a browser-session cookie.
	CookieMaxAge int `env:"COOKIE_MAX_AGE" envDefault:"0"`
}

// Sanitize resolves the store default and clamps the limits.
func (s *SessionConfig) Sanitize(isDev bool) {
	if s.Store == "" {
		s.Store = SessionStoreRedis
		if isDev {
			s.Store = SessionStoreMemory
		}
	}
	if s.StoreTTL <= 0 {
		s.StoreTTL = 168 * time.Hour
	}
	if s.MaxLive <= 0 {
		s.MaxLive = 10000
	}
	if s.CookieName = strings.TrimSpace(s.CookieName); s.CookieName == "" {
		s.CookieName = "session_id"
	}
	if s.CookieMaxAge < 0 {
		s.CookieMaxAge = 0
	}
}
