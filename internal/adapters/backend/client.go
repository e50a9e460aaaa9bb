// Package backend implements the per-session REST client for the coffee-shop backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	apperrors "github.com/target/coffee-ui/internal/errors"
	"github.com/target/coffee-ui/internal/ports"
)

const (
	// TokenPath is the credential exchange endpoint.
	TokenPath = "/token"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

// Observer receives one call per backend round trip. status is 0 for transport failures.
type Observer interface {
	ObserveBackend(method, path string, status int, d time.Duration)
}

// ClientOptions configures backend clients.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client  // optional; shared across sessions
	Timeout    time.Duration // used when HTTPClient is nil
	Observer   Observer      // optional
	Logger     *slog.Logger  // optional
}

// Client is a backend API client owned by exactly one session.
// The bearer token is guarded by a mutex since one session may serve concurrent requests.
type Client struct {
	base     *url.URL
	http     *http.Client
	observer Observer
	logger   *slog.Logger

	mu    sync.RWMutex
	token string
}

var _ ports.APIClient = (*Client)(nil)

// NewClient validates opts and returns an unauthenticated client.
func NewClient(opts ClientOptions) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	return newClient(base, opts), nil
}

// NewFactory validates opts once and returns a factory producing fresh clients that share
// one http.Client (and its connection pool).
func NewFactory(opts ClientOptions) (ports.ClientFactoryFunc, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: timeoutOrDefault(opts.Timeout)}
	}
	return func() ports.APIClient { return newClient(base, opts) }, nil
}

func newClient(base *url.URL, opts ClientOptions) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeoutOrDefault(opts.Timeout)}
	}
	return &Client{
		base:     base,
		http:     hc,
		observer: opts.Observer,
		logger:   opts.Logger,
	}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("backend base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend base URL must be http or https, got %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
		if u.RawPath != "" {
			u.RawPath += "/"
		}
	}
	return u, nil
}

func (c *Client) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// SetToken attaches a bearer token to all subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the bearer token.
func (c *Client) ClearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Authorized reports whether a bearer token is attached.
func (c *Client) Authorized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Get issues a GET and decodes the JSON response into out (when non-nil).
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query, out: out})
}

// Post issues a JSON POST.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, body: body, out: out})
}

// Patch issues a JSON PATCH.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPatch, path: path, body: body, out: out})
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: path})
}

// ExchangePassword performs the OAuth2 resource-owner password grant against /token.
// The request is form-encoded and never carries the session's bearer token.
func (c *Client) ExchangePassword(ctx context.Context, username, password string) (domainauth.TokenResponse, error) {
	tokenURL, err := c.endpoint(TokenPath, nil)
	if err != nil {
		return domainauth.TokenResponse{}, err
	}

	cfg := oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	start := time.Now()
	tok, err := cfg.PasswordCredentialsToken(context.WithValue(ctx, oauth2.HTTPClient, c.http), username, password)
	if err != nil {
		status, mapped := exchangeError(ctx, err)
		c.observe(http.MethodPost, TokenPath, status, time.Since(start))
		return domainauth.TokenResponse{}, mapped
	}
	c.observe(http.MethodPost, TokenPath, http.StatusOK, time.Since(start))

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return domainauth.TokenResponse{AccessToken: tok.AccessToken, TokenType: strings.ToLower(tokenType)}, nil
}

func exchangeError(ctx context.Context, err error) (int, error) {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		status := rerr.Response.StatusCode
		detail, _ := parseDetail(rerr.Body)
		if status == http.StatusUnauthorized || status == http.StatusBadRequest {
			return status, apperrors.InvalidCredentials(detail)
		}
		return status, apperrors.FromStatus(status, detail)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, apperrors.FromTransport(ctxErr)
	}
	return 0, apperrors.Network(err)
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	out    any
}

func (c *Client) do(ctx context.Context, r request) error {
	target, err := c.endpoint(r.path, r.query)
	if err != nil {
		return err
	}

	var body io.Reader
	if r.body != nil {
		buf, marshalErr := json.Marshal(r.body)
		if marshalErr != nil {
			return fmt.Errorf("encode %s %s body: %w", r.method, r.path, marshalErr)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	label := routeLabel(r.path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(r.method, label, 0, time.Since(start))
		c.log().DebugContext(ctx, "backend request failed", "method", r.method, "path", label, "error", err)
		return apperrors.FromTransport(err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log().DebugContext(ctx, "close backend response body", "error", cerr)
		}
	}()
	c.observe(r.method, label, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail, field := parseDetail(raw)
		appErr := apperrors.FromStatus(resp.StatusCode, detail)
		appErr.Field = field
		return appErr
	}

	if r.out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.Wrapf(err, apperrors.ErrCodeInternal, "decode %s %s response", r.method, label)
	}
	return nil
}

// endpoint resolves an escaped path relative to the base URL.
func (c *Client) endpoint(p string, query url.Values) (string, error) {
	rel, err := url.Parse(strings.TrimPrefix(p, "/"))
	if err != nil {
		return "", fmt.Errorf("parse backend path %q: %w", p, err)
	}
	if rel.IsAbs() || rel.Host != "" {
		return "", fmt.Errorf("backend path %q must be relative", p)
	}
	u := c.base.ResolveReference(rel)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func (c *Client) observe(method, path string, status int, d time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveBackend(method, path, status, d)
}

// routeLabel collapses resource keys so metric labels stay low-cardinality.
func routeLabel(p string) string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "/"
	}
	head, rest, found := strings.Cut(trimmed, "/")
	if !found || rest == "" {
		return "/" + head
	}
	if head == "analytics" {
		sub, _, _ := strings.Cut(rest, "/")
		return "/analytics/" + sub
	}
	return "/" + head + "/:key"
}
