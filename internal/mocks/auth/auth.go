// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	"github.com/target/coffee-ui/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.APIClient  = (*FakeClient)(nil)
	_ ports.TokenStore = (*TokenStore)(nil)
)

// FakeClient records requests and tracks the attached bearer token.
// Unset Func fields succeed with an empty response.
type FakeClient struct {
	GetFunc      func(ctx context.Context, path string, query url.Values, out any) error
	PostFunc     func(ctx context.Context, path string, body, out any) error
	PatchFunc    func(ctx context.Context, path string, body, out any) error
	DeleteFunc   func(ctx context.Context, path string) error
	ExchangeFunc func(ctx context.Context, username, password string) (domainauth.TokenResponse, error)

	mu    sync.Mutex
	token string
	calls []string
}

func (c *FakeClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *FakeClient) ClearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *FakeClient) Authorized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// Token returns the currently attached token.
func (c *FakeClient) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Calls returns the recorded "METHOD path" entries in order.
func (c *FakeClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *FakeClient) record(method, path string) {
	c.mu.Lock()
	c.calls = append(c.calls, method+" "+path)
	c.mu.Unlock()
}

func (c *FakeClient) Get(ctx context.Context, path string, query url.Values, out any) error {
	c.record("GET", path)
	if c.GetFunc != nil {
		return c.GetFunc(ctx, path, query, out)
	}
	return nil
}

func (c *FakeClient) Post(ctx context.Context, path string, body, out any) error {
	c.record("POST", path)
	if c.PostFunc != nil {
		return c.PostFunc(ctx, path, body, out)
	}
	return nil
}

func (c *FakeClient) Patch(ctx context.Context, path string, body, out any) error {
	c.record("PATCH", path)
	if c.PatchFunc != nil {
		return c.PatchFunc(ctx, path, body, out)
	}
	return nil
}

func (c *FakeClient) Delete(ctx context.Context, path string) error {
	c.record("DELETE", path)
	if c.DeleteFunc != nil {
		return c.DeleteFunc(ctx, path)
	}
	return nil
}

func (c *FakeClient) ExchangePassword(ctx context.Context, username, password string) (domainauth.TokenResponse, error) {
	c.record("POST", "/token")
	if c.ExchangeFunc != nil {
		return c.ExchangeFunc(ctx, username, password)
	}
	return domainauth.TokenResponse{AccessToken: "fake-token", TokenType: "bearer"}, nil
}

// Respond copies v into out through JSON, mimicking a decoded backend response.
func Respond(out, v any) error {
	if out == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// TokenStore is an in-memory TokenStore whose operations can be overridden to inject failures.
type TokenStore struct {
	GetFunc   func(ctx context.Context, sessionID string) (string, bool, error)
	SetFunc   func(ctx context.Context, sessionID, token string) error
	ClearFunc func(ctx context.Context, sessionID string) error

	mu     sync.Mutex
	tokens map[string]string
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]string)}
}

func (s *TokenStore) Get(ctx context.Context, sessionID string) (string, bool, error) {
	if s.GetFunc != nil {
		return s.GetFunc(ctx, sessionID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[sessionID]
	return tok, ok, nil
}

func (s *TokenStore) Set(ctx context.Context, sessionID, token string) error {
	if s.SetFunc != nil {
		return s.SetFunc(ctx, sessionID, token)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		s.tokens = make(map[string]string)
	}
	s.tokens[sessionID] = token
	return nil
}

func (s *TokenStore) Clear(ctx context.Context, sessionID string) error {
	if s.ClearFunc != nil {
		return s.ClearFunc(ctx, sessionID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, sessionID)
	return nil
}

// Has reports whether a token is stored for sessionID, bypassing overrides.
func (s *TokenStore) Has(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[sessionID]
	return ok
}

// Put seeds a token directly, bypassing overrides.
func (s *TokenStore) Put(sessionID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		s.tokens = make(map[string]string)
	}
	s.tokens[sessionID] = token
}
