package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	"github.com/target/coffee-ui/internal/mocks"
	mockauth "github.com/target/coffee-ui/internal/mocks/auth"
	"github.com/target/coffee-ui/internal/ports"
	"github.com/target/coffee-ui/internal/testutil"
)

type gaugeObserver struct {
	recordingObserver
	live atomic.Int64
}

func (g *gaugeObserver) SetLiveSessions(n int) { g.live.Store(int64(n)) }

func fakeClients() ports.ClientFactory {
	return ports.ClientFactoryFunc(func() ports.APIClient { return &mockauth.FakeClient{} })
}

func newTestManager(t *testing.T, auth ports.Authenticator, store ports.TokenStore, cfg SessionManagerConfig) *SessionManager {
	t.Helper()
	return NewSessionManager(SessionManagerOptions{
		Deps:    SessionDeps{Store: store, Auth: auth},
		Clients: fakeClients(),
		Config:  cfg,
	})
}

func TestNewSessionManager_PanicsWithoutDeps(t *testing.T) {
	assert.Panics(t, func() { NewSessionManager(SessionManagerOptions{}) })
}

func TestSessionManager_New(t *testing.T) {
	ctrl := gomock.NewController(t)
	var n int
	m := newTestManager(t, mocks.NewMockAuthenticator(ctrl), mockauth.NewTokenStore(), SessionManagerConfig{
		NewID: func() string { n++; return fmt.Sprintf("id-%d", n) },
	})

	s := m.New()
	assert.Equal(t, "id-1", s.ID())
	assert.Equal(t, domainauth.StateAnonymous, s.State())

	got, ok := m.Get("id-1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())
}

func TestSessionManager_Open_EmptyIDCreates(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newTestManager(t, mocks.NewMockAuthenticator(ctrl), mockauth.NewTokenStore(), SessionManagerConfig{})

	s, err := m.Open(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, domainauth.StateAnonymous, s.State())
}

func TestSessionManager_Open_ReusesLiveSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth := mocks.NewMockAuthenticator(ctrl)
	store := mockauth.NewTokenStore()
	store.Put("sid", "tok")
	auth.EXPECT().Me(gomock.Any(), gomock.Any()).Return(testutil.NewProfile().Build(), nil).Times(1)

	m := newTestManager(t, auth, store, SessionManagerConfig{})
	first, err := m.Open(context.Background(), "sid")
	require.NoError(t, err)
	second, err := m.Open(context.Background(), "sid")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, domainauth.StateAuthenticated, second.State())
}

func TestSessionManager_Open_ConcurrentFirstRequestsShareRestore(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth := mocks.NewMockAuthenticator(ctrl)
	store := mockauth.NewTokenStore()
	store.Put("sid", "tok")

	release := make(chan struct{})
	auth.EXPECT().Me(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, ports.APIClient) (domainauth.Profile, error) {
			<-release
			return testutil.NewProfile().Build(), nil
		}).Times(1)

	m := newTestManager(t, auth, store, SessionManagerConfig{})

	const callers = 10
	var wg sync.WaitGroup
	got := make([]*Session, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.Open(context.Background(), "sid")
			assert.NoError(t, err)
			got[i] = s
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
		assert.Equal(t, domainauth.StateAuthenticated, s.State())
	}
	assert.Equal(t, 1, m.Len())
}

func TestSessionManager_Open_ReturnsRestoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth := mocks.NewMockAuthenticator(ctrl)
	store := mockauth.NewTokenStore()
	store.Put("sid", "stale")
	auth.EXPECT().Me(gomock.Any(), gomock.Any()).Return(domainauth.Profile{}, assert.AnError)

	m := newTestManager(t, auth, store, SessionManagerConfig{})
	s, err := m.Open(context.Background(), "sid")
	require.ErrorIs(t, err, assert.AnError)
	require.NotNil(t, s, "a session is returned even when restore fails")
	assert.Equal(t, domainauth.StateAnonymous, s.State())
	assert.False(t, store.Has("sid"))
}

func TestSessionManager_EvictsLeastRecentlyUsed(t *testing.T) {
	ctrl := gomock.NewController(t)
	gauge := &gaugeObserver{}
	m := NewSessionManager(SessionManagerOptions{
		Deps:    SessionDeps{Store: mockauth.NewTokenStore(), Auth: mocks.NewMockAuthenticator(ctrl), Metrics: gauge},
		Clients: fakeClients(),
		Config:  SessionManagerConfig{MaxLive: 2},
	})

	a, err := m.Open(context.Background(), "a")
	require.NoError(t, err)
	_, err = m.Open(context.Background(), "b")
	require.NoError(t, err)
	// Touch a so b becomes the eviction candidate.
	_, _ = m.Open(context.Background(), "a")
	_, err = m.Open(context.Background(), "c")
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, uint64(1), m.Evictions())
	_, ok := m.Get("b")
	assert.False(t, ok)
	got, ok := m.Get("a")
	assert.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, int64(2), gauge.live.Load())
}

func TestSessionManager_EvictedSessionRestoresFromStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth := mocks.NewMockAuthenticator(ctrl)
	store := mockauth.NewTokenStore()
	auth.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).Return(domainauth.TokenResponse{AccessToken: "tok"}, nil)
	auth.EXPECT().Me(gomock.Any(), gomock.Any()).Return(testutil.NewProfile().Build(), nil).Times(2)

	m := newTestManager(t, auth, store, SessionManagerConfig{MaxLive: 1})
	s := m.New()
	_, err := s.Login(context.Background(), domainauth.Credentials{Username: "a@example.com", Password: "pw"})
	require.NoError(t, err)

	m.New() // pushes s out
	_, ok := m.Get(s.ID())
	require.False(t, ok)

	back, err := m.Open(context.Background(), s.ID())
	require.NoError(t, err)
	assert.NotSame(t, s, back)
	assert.Equal(t, domainauth.StateAuthenticated, back.State())
}

func TestSessionManager_Forget(t *testing.T) {
	ctrl := gomock.NewController(t)
	gauge := &gaugeObserver{}
	store := mockauth.NewTokenStore()
	m := NewSessionManager(SessionManagerOptions{
		Deps:    SessionDeps{Store: store, Auth: mocks.NewMockAuthenticator(ctrl), Metrics: gauge},
		Clients: fakeClients(),
	})
	s := m.New()
	store.Put(s.ID(), "tok")

	m.Forget(s.ID())
	assert.Zero(t, m.Len())
	assert.Zero(t, gauge.live.Load())
	assert.True(t, store.Has(s.ID()), "forget leaves the token store alone")
	m.Forget("missing")
}
