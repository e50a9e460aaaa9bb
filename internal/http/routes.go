package httpx

import (
	"bytes"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"

	coffeeui "github.com/target/coffee-ui"
	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	"github.com/target/coffee-ui/internal/service"
)

// MetricsHandler exposes collected metrics and records served requests.
type MetricsHandler interface {
	HTTPObserver
	Handler() http.Handler
}

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Sessions  SessionRegistry   // Required
	Resources ResourcesService  // Required
	Analytics AnalyticsReporter // Required
	Redirect  service.RedirectPolicy
	Limiter   *LoginLimiter
	Proxies   TrustedProxies
	Cookie    CookieConfig

	// Optional: nil disables /metrics and request counting.
	Metrics     MetricsHandler
	MetricsPath string
	// Optional: nil disables gzip.
	Compression  *CompressionConfig
	HealthChecks map[string]HealthCheck
	LandingPath  string

	// TemplateFS overrides the template source (tests). Defaults to disk in dev, embedded otherwise.
	TemplateFS fs.FS
	IsDev      bool         // Development mode flag for hot reloading, etc.
	Logger     *slog.Logger // Logger for template and HTTP errors (optional)
}

// NewRouter creates and configures the HTTP router with its middleware chain:
// Recover, Logging, Compression, BrowserDetection, then the mux with 404 handling.
// Page routes additionally run Sessions and CSRF protection ahead of their guards.
func NewRouter(services RouterServices) (http.Handler, error) {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: templateFS(services),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	ui := &UIHandlers{
		T:         tr,
		Resources: services.Resources,
		Analytics: services.Analytics,
		IsDev:     services.IsDev,
		Logger:    logger,
	}
	auth := &AuthHandlers{
		UI:       ui,
		Sessions: services.Sessions,
		Cookie:   services.Cookie,
		Redirect: services.Redirect,
		Limiter:  services.Limiter,
		Proxies:  services.Proxies,
		Logger:   logger,
	}

	cfg := pageRouteConfig{
		sessions: Sessions(SessionsOptions{
			Registry: services.Sessions,
			Cookie:   services.Cookie,
			Logger:   logger,
		}),
		csrf:  CSRFProtection(CSRFConfig{CookieDomain: services.Cookie.Domain, Logger: logger}),
		guard: GuardOptions{LandingPath: services.LandingPath},
	}

	mux := http.NewServeMux()
	health := healthHandler(services.HealthChecks)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	if services.Metrics != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, services.Metrics.Handler())
	}

	// Static assets at /static
	// Dev mode: serve from disk for hot reloading
	// Prod mode: serve from embedded FS
	mux.Handle("GET /static/", staticWithFallback(services.IsDev))

	registerAuthRoutes(mux, auth, cfg)
	registerPageRoutes(mux, ui, cfg)
	registerResourceRoutes(mux, ui, cfg)

	var handler http.Handler = &notFoundHandler{
		mux:      mux,
		notFound: cfg.public(http.HandlerFunc(ui.NotFound)),
	}
	handler = BrowserDetection()(handler)
	if services.Compression != nil {
		cc := *services.Compression
		if cc.Logger == nil {
			cc.Logger = logger
		}
		handler = Compression(cc)(handler)
	}
	var obs HTTPObserver
	if services.Metrics != nil {
		obs = services.Metrics
	}
	handler = Logging(logger, obs)(handler)
	return Recover(logger)(handler), nil
}

// templateFS picks the template source: an explicit override, disk in dev mode, otherwise
// the embedded copy.
func templateFS(services RouterServices) fs.FS {
	if services.TemplateFS != nil {
		return services.TemplateFS
	}
	if services.IsDev {
		return os.DirFS(TemplatePathFromRoot)
	}
	sub, err := fs.Sub(coffeeui.TemplateFS, TemplatePathFromRoot)
	if err != nil {
		if services.Logger != nil {
			services.Logger.Error("embedded templates unavailable; falling back to disk", slog.Any("error", err))
		}
		return os.DirFS(TemplatePathFromRoot)
	}
	return sub
}

// pageRouteConfig holds the middleware shared by page routes.
type pageRouteConfig struct {
	sessions func(http.Handler) http.Handler
	csrf     func(http.Handler) http.Handler
	guard    GuardOptions
}

// public wraps a route that any visitor may reach. It still gets a session and a CSRF token.
func (cfg pageRouteConfig) public(h http.Handler) http.Handler {
	return cfg.sessions(cfg.csrf(h))
}

// authWrap admits any authenticated session.
func (cfg pageRouteConfig) authWrap(h http.HandlerFunc) http.Handler {
	return cfg.public(RequireAuthenticated(cfg.guard)(h))
}

// managerWrap admits only managers.
func (cfg pageRouteConfig) managerWrap(h http.HandlerFunc) http.Handler {
	return cfg.public(RequireRole(domainauth.RoleManager, cfg.guard)(h))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, cfg pageRouteConfig) {
	mux.Handle("GET "+LoginPath, cfg.public(http.HandlerFunc(h.LoginPage)))
	mux.Handle("POST "+LoginPath, cfg.public(http.HandlerFunc(h.Login)))
	mux.Handle("GET "+SignupPath, cfg.public(http.HandlerFunc(h.SignupPage)))
	mux.Handle("POST "+SignupPath, cfg.public(http.HandlerFunc(h.Signup)))
	mux.Handle("GET "+LogoutPath, cfg.public(http.HandlerFunc(h.Logout)))
	mux.Handle("POST "+LogoutPath, cfg.public(http.HandlerFunc(h.Logout)))
	mux.Handle("GET "+AuthStatusPath, cfg.public(http.HandlerFunc(h.Status)))
}

// registerPageRoutes wires the home, dashboard and analytics pages.
func registerPageRoutes(mux *http.ServeMux, h *UIHandlers, cfg pageRouteConfig) {
	mux.Handle("GET /{$}", cfg.authWrap(h.Home))
	mux.Handle("GET "+DashboardPath, cfg.managerWrap(h.Dashboard))
	mux.Handle("GET "+AnalyticsPath, cfg.managerWrap(h.AnalyticsPage))
}

// registerResourceRoutes wires the schema-driven CRUD pages. Per-resource roles are
// enforced by the resource service; the guard only requires a signed-in user.
func registerResourceRoutes(mux *http.ServeMux, h *UIHandlers, cfg pageRouteConfig) {
	base := strings.TrimSuffix(ResourcePrefix, "/")
	mux.Handle("GET "+base+"/{resource}", cfg.authWrap(h.ResourceList))
	mux.Handle("GET "+base+"/{resource}/new", cfg.authWrap(h.ResourceNew))
	mux.Handle("POST "+base+"/{resource}", cfg.authWrap(h.ResourceCreate))
	mux.Handle("GET "+base+"/{resource}/{key}/edit", cfg.authWrap(h.ResourceEdit))
	mux.Handle("POST "+base+"/{resource}/{key}", cfg.authWrap(h.ResourceUpdate))
	mux.Handle("POST "+base+"/{resource}/{key}/delete", cfg.authWrap(h.ResourceDelete))
	mux.Handle("POST "+base+"/{resource}/{key}/refill", cfg.authWrap(h.ResourceRefill))
}

// staticWithFallback serves /static/* assets.
// In dev mode (isDev=true), serves from disk for hot reloading.
// In production mode (isDev=false), serves from embedded FS.
func staticWithFallback(isDev bool) http.Handler {
	if isDev {
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))))
	}

	staticSub, err := fs.Sub(coffeeui.StaticFS, "frontend/static")
	if err != nil {
		slog.Default().Error("failed to create sub-filesystem for static assets", slog.Any("error", err))
		// Fallback to disk serving if embed fails
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))))
	}
	return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
}

// hashedFilePattern matches content-hashed filenames including optional .map
// (e.g., app.abc123de.js, styles.def456ab.css, app.abc123de.js.map).
var hashedFilePattern = regexp.MustCompile(`\.[a-f0-9]{8}\.(?:js|css)(?:\.map)?$`) //nolint:gochecknoglobals // compiled once

// staticWithCacheHeaders wraps a static file handler to add appropriate cache headers.
func staticWithCacheHeaders(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hashedFilePattern.MatchString(r.URL.Path) {
			// Hashed assets can be cached for a long time (1 year)
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		handler.ServeHTTP(w, r)
	})
}

// notFoundHandler wraps a ServeMux and provides custom 404 handling.
type notFoundHandler struct {
	mux      *http.ServeMux
	notFound http.Handler
}

// ServeHTTP implements http.Handler and provides custom 404 handling.
func (h *notFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, pattern := h.mux.Handler(r); pattern != "" {
		tagPattern(r, pattern)
		h.mux.ServeHTTP(w, r)
		return
	}

	cw := newCaptureWriter()
	h.mux.ServeHTTP(cw, r)

	// For missing static assets and wrong methods, preserve the mux response
	if cw.status != http.StatusNotFound || strings.HasPrefix(r.URL.Path, "/static/") {
		cw.flushTo(w)
		return
	}
	h.notFound.ServeHTTP(w, r)
}

// captureWriter buffers headers, status and body so we can decide post-dispatch.
type captureWriter struct {
	header http.Header
	status int
	buf    bytes.Buffer
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: make(http.Header), status: http.StatusOK}
}

func (c *captureWriter) Header() http.Header         { return c.header }
func (c *captureWriter) WriteHeader(code int)        { c.status = code }
func (c *captureWriter) Write(b []byte) (int, error) { return c.buf.Write(b) }

func (c *captureWriter) flushTo(w http.ResponseWriter) {
	for k, vs := range c.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(c.status)
	if _, err := w.Write(c.buf.Bytes()); err != nil {
		slog.Default().Debug("failed to write captured response", slog.Any("error", err))
	}
}
