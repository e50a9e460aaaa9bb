package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	apperrors "github.com/target/coffee-ui/internal/errors"
	"github.com/target/coffee-ui/internal/observability/metrics"
	"github.com/target/coffee-ui/internal/ports"
)

// AuthObserver records auth lifecycle outcomes.
type AuthObserver interface {
	ObserveAuth(event string, err error)
}

// SessionDeps are the collaborators shared by every session.
type SessionDeps struct {
	Store   ports.TokenStore    // Required: durable token persistence
	Auth    ports.Authenticator // Required: backend auth requests
	Metrics AuthObserver        // Optional: auth event counters
}

// SessionOptions groups dependencies for a Session.
type SessionOptions struct {
	ID     string
	Client ports.APIClient // Required: this session's own backend client
	Deps   SessionDeps
}

// Session is the auth state of one browser session. It owns its API client and is the
// only writer of the client's token. Operations are serialised; accessors never block on them.
//
// After every operation a held profile implies the token is attached to the client and
// persisted in the store.
type Session struct {
	id      string
	client  ports.APIClient
	store   ports.TokenStore
	auth    ports.Authenticator
	metrics AuthObserver
	logger  *slog.Logger

	op sync.Mutex // serialises Restore, Login, Signup and Logout

	mu      sync.RWMutex
	state   domainauth.State
	profile *domainauth.Profile
	token   string
}

// NewSession constructs a Session in the Unknown state.
func NewSession(opts SessionOptions, logger *slog.Logger) *Session {
	if opts.Client == nil || opts.Deps.Store == nil || opts.Deps.Auth == nil {
		panic("service: session requires a client, a token store and an authenticator") //nolint:forbidigo // wiring bug
	}
	return &Session{
		id:      opts.ID,
		client:  opts.Client,
		store:   opts.Deps.Store,
		auth:    opts.Deps.Auth,
		metrics: opts.Deps.Metrics,
		logger:  logger,
	}
}

func (s *Session) log() *slog.Logger {
	l := s.logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("session", shortID(s.id))
}

func (s *Session) observe(event string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveAuth(event, err)
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Client returns the session's API client.
func (s *Session) Client() ports.APIClient { return s.client }

// State returns the current lifecycle state.
func (s *Session) State() domainauth.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Profile returns the current profile, if authenticated.
func (s *Session) Profile() (domainauth.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return domainauth.Profile{}, false
	}
	return *s.profile, true
}

func (s *Session) setAuthenticated(p domainauth.Profile, token string) {
	s.mu.Lock()
	s.state = domainauth.StateAuthenticated
	s.profile = &p
	s.token = token
	s.mu.Unlock()
}

func (s *Session) setAnonymous() {
	s.setState(domainauth.StateAnonymous)
}

func (s *Session) setState(st domainauth.State) {
	s.mu.Lock()
	s.state = st
	s.profile = nil
	s.token = ""
	s.mu.Unlock()
}

func (s *Session) attachedToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Restore resolves an Unknown session from the token store. A stored token is attached and
// checked with /me; if that fails for any reason the token is discarded and the session
// becomes Anonymous. An Authenticated session is re-checked against the store so a token
// cleared or replaced elsewhere signs it out. The returned error is informational.
func (s *Session) Restore(ctx context.Context) (domainauth.State, error) {
	s.op.Lock()
	defer s.op.Unlock()

	switch st := s.State(); st {
	case domainauth.StateUnknown:
	case domainauth.StateAuthenticated:
		return s.recheckLocked(ctx)
	default:
		return st, nil
	}

	token, ok, err := s.store.Get(ctx, s.id)
	if err != nil {
		s.setAnonymous()
		s.observe(metrics.EventRestore, err)
		return domainauth.StateAnonymous, apperrors.Wrap(err, apperrors.ErrCodeInternal, "read session token")
	}
	if !ok || token == "" {
		s.setAnonymous()
		return domainauth.StateAnonymous, nil
	}

	s.client.SetToken(token)
	p, err := s.auth.Me(ctx, s.client)
	if err != nil {
		s.discardLocked(ctx)
		s.observe(metrics.EventRestore, err)
		s.log().Info("stored token rejected; session reset", "error", err)
		return domainauth.StateAnonymous, err
	}

	s.setAuthenticated(p, token)
	s.observe(metrics.EventRestore, nil)
	return domainauth.StateAuthenticated, nil
}

// recheckLocked confirms the attached token is still the stored one. An unreadable store
// detaches the token and leaves the session Unknown so the next request restores it again.
// Caller holds s.op.
func (s *Session) recheckLocked(ctx context.Context) (domainauth.State, error) {
	token, ok, err := s.store.Get(ctx, s.id)
	if err != nil {
		s.client.ClearToken()
		s.setState(domainauth.StateUnknown)
		return domainauth.StateUnknown, apperrors.Wrap(err, apperrors.ErrCodeInternal, "read session token")
	}
	if ok && token != "" && token == s.attachedToken() {
		return domainauth.StateAuthenticated, nil
	}
	s.discardLocked(ctx)
	s.observe(metrics.EventRevoked, nil)
	s.log().Info("stored token gone; session reset")
	return domainauth.StateAnonymous, nil
}

// Login exchanges credentials and adopts the issued token. A rejected exchange leaves the
// session untouched; any later failure rolls the session back to Anonymous.
func (s *Session) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.Profile, error) {
	s.op.Lock()
	defer s.op.Unlock()

	tok, err := s.auth.Login(ctx, s.client, creds)
	if err != nil {
		s.observe(metrics.EventLogin, err)
		return domainauth.Profile{}, err
	}

	p, err := s.adoptLocked(ctx, tok.AccessToken)
	s.observe(metrics.EventLogin, err)
	if err != nil {
		return domainauth.Profile{}, err
	}
	s.log().Info("login", "role", p.Role.String())
	return p, nil
}

// Signup registers an employee and adopts the issued token the same way Login does.
func (s *Session) Signup(ctx context.Context, req domainauth.SignupRequest) (domainauth.Profile, error) {
	s.op.Lock()
	defer s.op.Unlock()

	resp, err := s.auth.Signup(ctx, s.client, req)
	if err != nil {
		s.observe(metrics.EventSignup, err)
		return domainauth.Profile{}, err
	}

	p, err := s.adoptLocked(ctx, resp.AccessToken)
	s.observe(metrics.EventSignup, err)
	if err != nil {
		return domainauth.Profile{}, err
	}
	s.log().Info("signup", "role", p.Role.String())
	return p, nil
}

// adoptLocked persists, attaches and verifies token, in that order. Caller holds s.op.
func (s *Session) adoptLocked(ctx context.Context, token string) (domainauth.Profile, error) {
	if err := s.store.Set(ctx, s.id, token); err != nil {
		s.discardLocked(ctx)
		return domainauth.Profile{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "could not save session")
	}

	s.client.SetToken(token)

	p, err := s.auth.Me(ctx, s.client)
	if err != nil {
		s.discardLocked(ctx)
		return domainauth.Profile{}, err
	}

	s.setAuthenticated(p, token)
	return p, nil
}

// discardLocked clears every trace of the token. Caller holds s.op.
func (s *Session) discardLocked(ctx context.Context) {
	if err := s.store.Clear(context.WithoutCancel(ctx), s.id); err != nil {
		s.log().Warn("clear session token failed", "error", err)
	}
	s.client.ClearToken()
	s.setAnonymous()
}

// Logout clears the token everywhere and returns the session to Anonymous. In-memory state
// is always cleared, even when the store cannot be reached.
func (s *Session) Logout(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	err := s.store.Clear(context.WithoutCancel(ctx), s.id)
	s.client.ClearToken()
	s.setAnonymous()
	s.observe(metrics.EventLogout, err)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "clear session token")
	}
	return nil
}

// HandleAuthFailure logs the session out when err shows the backend no longer accepts its
// token. It reports whether a logout happened.
func (s *Session) HandleAuthFailure(ctx context.Context, err error) bool {
	if !apperrors.IsAuthentication(err) {
		return false
	}
	if lerr := s.Logout(ctx); lerr != nil && !errors.Is(lerr, context.Canceled) {
		s.log().Warn("logout after expired token failed", "error", lerr)
	}
	return true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
