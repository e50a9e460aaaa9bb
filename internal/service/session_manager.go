package service

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/target/coffee-ui/internal/ports"
)

// DefaultMaxLiveSessions bounds the registry when no limit is configured.
const DefaultMaxLiveSessions = 10000

// SessionMetrics extends AuthObserver with the live session gauge.
type SessionMetrics interface {
	AuthObserver
	SetLiveSessions(n int)
}

// SessionManagerConfig holds registry tuning.
type SessionManagerConfig struct {
	MaxLive int
	Logger  *slog.Logger
	NewID   func() string // Optional: defaults to uuid.NewString
}

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Deps    SessionDeps         // Required: Store and Auth
	Clients ports.ClientFactory // Required: one API client per session
	Config  SessionManagerConfig
}

// SessionManager is the in-process registry of live sessions keyed by cookie id.
// It is bounded; an evicted session is rebuilt from the token store on its next request.
// Concurrency: methods are safe for concurrent use.
type SessionManager struct {
	deps    SessionDeps
	clients ports.ClientFactory
	gauge   SessionMetrics
	maxLive int
	newID   func() string
	logger  *slog.Logger

	mu     sync.Mutex
	ll     *list.List               // front = most-recently used
	items  map[string]*list.Element // id -> element holding *Session
	group  singleflight.Group
	evicts atomic.Uint64
}

// NewSessionManager constructs a SessionManager. It panics when required dependencies are missing.
func NewSessionManager(opts SessionManagerOptions) *SessionManager {
	if opts.Deps.Store == nil || opts.Deps.Auth == nil || opts.Clients == nil {
		panic("service: session manager requires a token store, an authenticator and a client factory") //nolint:forbidigo // wiring bug
	}
	maxLive := opts.Config.MaxLive
	if maxLive <= 0 {
		maxLive = DefaultMaxLiveSessions
	}
	newID := opts.Config.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	m := &SessionManager{
		deps:    opts.Deps,
		clients: opts.Clients,
		maxLive: maxLive,
		newID:   newID,
		logger:  opts.Config.Logger,
		ll:      list.New(),
		items:   make(map[string]*list.Element),
	}
	if g, ok := opts.Deps.Metrics.(SessionMetrics); ok {
		m.gauge = g
	}
	return m
}

func (m *SessionManager) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

func (m *SessionManager) build(id string) *Session {
	return NewSession(SessionOptions{
		ID:     id,
		Client: m.clients.NewClient(),
		Deps:   m.deps,
	}, m.logger)
}

// New creates and registers a fresh Anonymous session with a new id.
func (m *SessionManager) New() *Session {
	s := m.build(m.newID())
	s.setAnonymous()
	m.put(s)
	return s
}

// Open returns the live session for id, creating it when absent, and always returns it
// resolved. Concurrent first requests for the same id share one restore.
func (m *SessionManager) Open(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return m.New(), nil
	}
	if s, ok := m.lookup(id); ok {
		if _, err := s.Restore(ctx); err != nil {
			return s, err
		}
		return s, nil
	}

	var restoreErr error
	v, _, _ := m.group.Do(id, func() (any, error) {
		if s, ok := m.lookup(id); ok {
			return s, nil
		}
		s := m.build(id)
		if _, err := s.Restore(ctx); err != nil {
			restoreErr = err
			m.log().Debug("session restore failed", "session", shortID(id), "error", err)
		}
		m.put(s)
		return s, nil
	})
	s, _ := v.(*Session)
	return s, restoreErr
}

// Get returns a live session without creating or restoring it.
func (m *SessionManager) Get(id string) (*Session, bool) {
	return m.lookup(id)
}

// Forget drops a session from the registry. The token store is untouched.
func (m *SessionManager) Forget(id string) {
	m.mu.Lock()
	if el, ok := m.items[id]; ok {
		m.ll.Remove(el)
		delete(m.items, id)
	}
	n := m.ll.Len()
	m.mu.Unlock()
	m.setGauge(n)
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}

// Evictions returns how many sessions were dropped to honour the bound.
func (m *SessionManager) Evictions() uint64 { return m.evicts.Load() }

func (m *SessionManager) lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.items[id]
	if !ok {
		return nil, false
	}
	m.ll.MoveToFront(el)
	s, _ := el.Value.(*Session)
	return s, s != nil
}

func (m *SessionManager) put(s *Session) {
	m.mu.Lock()
	if el, ok := m.items[s.ID()]; ok {
		el.Value = s
		m.ll.MoveToFront(el)
	} else {
		m.items[s.ID()] = m.ll.PushFront(s)
	}
	for m.ll.Len() > m.maxLive {
		el := m.ll.Back()
		if el == nil {
			break
		}
		m.ll.Remove(el)
		if old, ok := el.Value.(*Session); ok {
			delete(m.items, old.ID())
		}
		m.evicts.Add(1)
	}
	n := m.ll.Len()
	m.mu.Unlock()
	m.setGauge(n)
}

func (m *SessionManager) setGauge(n int) {
	if m.gauge != nil {
		m.gauge.SetLiveSessions(n)
	}
}
