package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/coffee-ui/config"
	httpx "github.com/target/coffee-ui/internal/http"
)

const defaultShutdownTimeout = 10 * time.Second

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	HTTP     config.HTTPConfig
	Services httpx.RouterServices
	Logger   *slog.Logger
}

// Server is a running HTTP server. Errors from the serve loop arrive on Errors.
type Server struct {
	*http.Server
	Errors <-chan error
	addr   string
}

// ListenAddr returns the bound listen address, which differs from the configured one for ":0".
func (s *Server) ListenAddr() string { return s.addr }

// StartHTTPServer builds the router and serves it in the background.
func StartHTTPServer(cfg *HTTPServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler, err := httpx.NewRouter(cfg.Services)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
		close(errCh)
	}()

	return &Server{Server: server, Errors: errCh, addr: ln.Addr().String()}, nil
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Server *Server
	Config config.HTTPConfig
	Logger *slog.Logger
}

// ShutdownHTTPServer drains in-flight requests within the configured shutdown timeout.
func ShutdownHTTPServer(ctx context.Context, cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "shutting down HTTP server")

	timeout := cfg.Config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.InfoContext(ctx, "HTTP server stopped")
	return nil
}

// RunUntilSignal serves until SIGINT, SIGTERM, ctx cancellation or a serve failure,
// then shuts the server down gracefully.
func RunUntilSignal(ctx context.Context, cfg *HTTPServerConfig) error {
	server, err := StartHTTPServer(cfg)
	if err != nil {
		return err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := ShutdownConfig{Server: server, Config: cfg.HTTP, Logger: logger}
	select {
	case <-sigCtx.Done():
		logger.InfoContext(ctx, "shutdown requested")
		return ShutdownHTTPServer(ctx, shutdown)
	case serveErr := <-server.Errors:
		if serveErr == nil {
			return nil
		}
		logger.ErrorContext(ctx, "HTTP server failed", "error", serveErr)
		if stopErr := ShutdownHTTPServer(ctx, shutdown); stopErr != nil {
			logger.ErrorContext(ctx, "graceful stop failed", "error", stopErr)
		}
		return serveErr
	}
}
