package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// HTTPConfig controls the listening server.
type HTTPConfig struct {
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CookieDomain scopes the session and CSRF cookies. Empty uses the request host.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`
	// CompressionLevel is a gzip level, clamped to 1..9.
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`
	// CompressionMinSize skips gzip for bodies smaller than this many bytes.
	CompressionMinSize int `env:"HTTP_COMPRESSION_MIN_SIZE" envDefault:"512"`

	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT"     envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// TrustedProxies are IPs or CIDR ranges allowed to supply X-Forwarded-For.
	// Empty keys the login throttle on the connecting peer.
	TrustedProxies []string `env:"HTTP_TRUSTED_PROXIES" envSeparator:","`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	h.CompressionLevel = min(max(h.CompressionLevel, 1), 9)
	if h.CompressionMinSize < 0 {
		h.CompressionMinSize = 0
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}

// Validate checks that every trusted proxy entry is an IP or CIDR range.
func (h *HTTPConfig) Validate() error {
	for _, e := range h.TrustedProxies {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, err := netip.ParsePrefix(e); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(e); err != nil {
			return fmt.Errorf("HTTP_TRUSTED_PROXIES: %q is not an IP or CIDR range", e)
		}
	}
	return nil
}
