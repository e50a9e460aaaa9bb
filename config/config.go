// Package config defines the server configuration. Every field is read from the environment
// with caarlos0/env; bootstrap.LoadConfig parses it and applies Sanitize.
package config

import (
	"errors"
	"os"
	"strings"
)

// AppConfig is the full server configuration.
type AppConfig struct {
	// IsDev enables template hot reloading and the in-memory session store default.
	// NODE_ENV=development also turns it on.
	IsDev bool `env:"DEV" envDefault:"false"`

	HTTP          HTTPConfig
	Backend       BackendConfig `envPrefix:"BACKEND_"`
	Auth          AuthConfig    `envPrefix:"AUTH_"`
	Session       SessionConfig `envPrefix:"SESSION_"`
	Redis         RedisConfig   `envPrefix:"REDIS_"`
	Observability ObservabilityConfig
}

// Sanitize clamps out-of-range values and fills derived defaults.
func (c *AppConfig) Sanitize() {
	c.detectDevMode()
	c.HTTP.Sanitize()
	c.Backend.Sanitize()
	c.Auth.Sanitize()
	c.Session.Sanitize(c.IsDev)
	c.Observability.Sanitize()
}

// Validate reports configuration that cannot run. Call it after Sanitize.
func (c *AppConfig) Validate() error {
	var errs []error
	if err := c.HTTP.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Backend.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Session.Store == SessionStoreRedis {
		if err := c.Redis.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *AppConfig) detectDevMode() {
	if c.IsDev {
		return
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("NODE_ENV"))) {
	case "development", "dev":
		c.IsDev = true
	}
}
