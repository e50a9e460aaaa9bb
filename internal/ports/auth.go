package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"net/url"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
)

// TokenStore persists the raw bearer token for a session so it survives reloads.
// It holds nothing else.
type TokenStore interface {
	// Get returns the stored token. ok is false when no token is stored.
	Get(ctx context.Context, sessionID string) (token string, ok bool, err error)
	Set(ctx context.Context, sessionID, token string) error
	Clear(ctx context.Context, sessionID string) error
}

// APIClient is a per-session HTTP client for the backend REST API.
// A token set with SetToken is sent as a bearer Authorization header on every request
// except the credential exchange.
type APIClient interface {
	SetToken(token string)
	ClearToken()
	Authorized() bool

	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error

	// ExchangePassword posts URL-encoded credentials to the token endpoint.
	ExchangePassword(ctx context.Context, username, password string) (domainauth.TokenResponse, error)
}

// ClientFactory builds a fresh, unauthenticated APIClient for a new session.
type ClientFactory interface {
	NewClient() APIClient
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func() APIClient

// NewClient implements ClientFactory.
func (f ClientFactoryFunc) NewClient() APIClient { return f() }

// Authenticator performs the backend auth requests on behalf of a session's client.
type Authenticator interface {
	Login(ctx context.Context, client APIClient, creds domainauth.Credentials) (domainauth.TokenResponse, error)
	Signup(ctx context.Context, client APIClient, req domainauth.SignupRequest) (domainauth.SignupResponse, error)
	Me(ctx context.Context, client APIClient) (domainauth.Profile, error)
}
