// Package memstore provides an in-process TokenStore for development mode and tests.
// Tokens do not survive a process restart.
package memstore

import (
	"context"
	"errors"
	"sync"
)

// TokenStore is a mutex-guarded map from session id to bearer token.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]string)}
}

// Get returns the stored token for a session.
func (s *TokenStore) Get(_ context.Context, sessionID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[sessionID]
	return token, ok, nil
}

// Set stores token for a session.
func (s *TokenStore) Set(_ context.Context, sessionID, token string) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if token == "" {
		return errors.New("token cannot be empty")
	}
	s.mu.Lock()
	s.tokens[sessionID] = token
	s.mu.Unlock()
	return nil
}

// Clear removes the stored token.
func (s *TokenStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.tokens, sessionID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored tokens.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
