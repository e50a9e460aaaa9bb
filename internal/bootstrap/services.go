package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/coffee-ui/config"
	"github.com/target/coffee-ui/internal/adapters/backend"
	"github.com/target/coffee-ui/internal/adapters/memstore"
	redisstore "github.com/target/coffee-ui/internal/adapters/redis"
	apperrors "github.com/target/coffee-ui/internal/errors"
	httpx "github.com/target/coffee-ui/internal/http"
	"github.com/target/coffee-ui/internal/observability/metrics"
	"github.com/target/coffee-ui/internal/ports"
	"github.com/target/coffee-ui/internal/service"
)

// ServiceDeps are the inputs to NewServices.
type ServiceDeps struct {
	Config *config.AppConfig     // Required
	Redis  redis.UniversalClient // Required for the redis session store
	Logger *slog.Logger          // Optional: defaults to slog.Default()

	// TemplateFS overrides the template source (tests).
	TemplateFS fs.FS
}

// ServiceContainer holds the wired application.
type ServiceContainer struct {
	Store    ports.TokenStore
	Sessions *service.SessionManager
	Metrics  *metrics.Registry // nil when metrics are disabled
	Router   httpx.RouterServices
}

// NewServices wires the token store, session registry and page services from configuration.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps require a config")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var reg *metrics.Registry
	if cfg.Observability.MetricsEnabled {
		reg = metrics.New()
	}

	store, err := NewTokenStore(cfg.Session, deps.Redis)
	if err != nil {
		return ServiceContainer{}, err
	}

	clientOpts := backend.ClientOptions{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger,
	}
	sessionDeps := service.SessionDeps{
		Store: store,
		Auth:  service.NewAuthService(service.AuthServiceOptions{Logger: logger}),
	}
	// Interface fields stay nil when metrics are off; a typed nil would not.
	if reg != nil {
		clientOpts.Observer = reg
		sessionDeps.Metrics = reg
	}
	factory, err := backend.NewFactory(clientOpts)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("backend client: %w", err)
	}

	sessions := service.NewSessionManager(service.SessionManagerOptions{
		Deps:    sessionDeps,
		Clients: factory,
		Config: service.SessionManagerConfig{
			MaxLive: cfg.Session.MaxLive,
			Logger:  logger,
		},
	})

	proxies, err := httpx.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil {
		return ServiceContainer{}, err
	}

	router := httpx.RouterServices{
		Sessions:  sessions,
		Resources: service.NewResourceService(service.ResourceServiceOptions{Logger: logger}),
		Analytics: service.NewAnalyticsService(logger),
		Redirect:  RedirectPolicy(cfg.Auth),
		Limiter:   httpx.NewLoginLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst),
		Proxies:   proxies,
		Cookie: httpx.CookieConfig{
			Name:   cfg.Session.CookieName,
			Domain: cfg.HTTP.CookieDomain,
			MaxAge: cfg.Session.CookieMaxAge,
		},
		MetricsPath:  cfg.Observability.MetricsPath,
		HealthChecks: healthChecks(factory, deps.Redis),
		LandingPath:  cfg.Auth.LandingPath,
		TemplateFS:   deps.TemplateFS,
		IsDev:        cfg.IsDev,
		Logger:       logger,
	}
	if reg != nil {
		router.Metrics = reg
	}
	if cfg.HTTP.CompressionEnabled {
		router.Compression = &httpx.CompressionConfig{
			Level:   cfg.HTTP.CompressionLevel,
			MinSize: cfg.HTTP.CompressionMinSize,
			Logger:  logger,
		}
	}

	return ServiceContainer{
		Store:    store,
		Sessions: sessions,
		Metrics:  reg,
		Router:   router,
	}, nil
}

// NewTokenStore picks the session token store named by cfg.Store.
//
//nolint:ireturn // the store kind is a runtime choice.
func NewTokenStore(cfg config.SessionConfig, client redis.UniversalClient) (ports.TokenStore, error) {
	switch cfg.Store {
	case config.SessionStoreMemory:
		return memstore.NewTokenStore(), nil
	case config.SessionStoreRedis, "":
		if client == nil {
			return nil, errors.New("redis session store needs a redis client")
		}
		return redisstore.NewTokenStoreWithOptions(client, redisstore.TokenStoreOptions{TTL: cfg.StoreTTL}), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// RedirectPolicy builds the post-login redirect policy from auth configuration.
//
//nolint:ireturn // policy kind is configured.
func RedirectPolicy(cfg config.AuthConfig) service.RedirectPolicy {
	if cfg.PostLoginPolicy == config.PostLoginFixed {
		return service.FixedRedirect{Path: cfg.LandingPath}
	}
	return service.NewRoleRedirect(cfg.LandingPath, cfg.ManagerPath)
}

// healthChecks probes the backend and, when present, Redis. Any HTTP answer from the
// backend counts as reachable; only transport failures fail the check.
func healthChecks(clients ports.ClientFactory, client redis.UniversalClient) map[string]httpx.HealthCheck {
	checks := map[string]httpx.HealthCheck{
		"backend": func(ctx context.Context) error {
			err := clients.NewClient().Get(ctx, "/", nil, nil)
			if apperrors.IsNetwork(err) || apperrors.IsTimeout(err) {
				return err
			}
			return nil
		},
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}
