package config

import (
	"fmt"
	"strings"
)

// PostLoginPolicy decides where a user lands after signing in.
type PostLoginPolicy string

const (
	// PostLoginRole sends managers to ManagerPath and everyone else to LandingPath.
	PostLoginRole PostLoginPolicy = "role"
	// PostLoginFixed sends everyone to LandingPath.
	PostLoginFixed PostLoginPolicy = "fixed"
)

// UnmarshalText implements encoding.TextUnmarshaler for PostLoginPolicy.
func (p *PostLoginPolicy) UnmarshalText(text []byte) error {
	v := PostLoginPolicy(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case PostLoginRole, PostLoginFixed:
		*p = v
		return nil
	default:
		return fmt.Errorf("invalid post-login policy %q (valid options: role, fixed)", string(text))
	}
}

// AuthConfig controls sign-in behavior.
type AuthConfig struct {
	PostLoginPolicy PostLoginPolicy `env:"POST_LOGIN_POLICY" envDefault:"role"`
	LandingPath     string          `env:"LANDING_PATH"      envDefault:"/"`
	ManagerPath     string          `env:"MANAGER_PATH"      envDefault:"/dashboard"`

	// LoginRate is the sustained credential submissions per second allowed per client IP.
	LoginRate  float64 `env:"LOGIN_RATE"  envDefault:"1"`
	LoginBurst int     `env:"LOGIN_BURST" envDefault:"5"`
}

// Sanitize forces the paths to be local and the limiter to be usable.
func (a *AuthConfig) Sanitize() {
	a.LandingPath = localPath(a.LandingPath, "/")
	a.ManagerPath = localPath(a.ManagerPath, "/dashboard")
	if a.PostLoginPolicy == "" {
		a.PostLoginPolicy = PostLoginRole
	}
	if a.LoginRate <= 0 {
		a.LoginRate = 1
	}
	if a.LoginBurst <= 0 {
		a.LoginBurst = 5
	}
}

func localPath(p, fallback string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return fallback
	}
	return p
}
