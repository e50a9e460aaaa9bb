package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/coffee-ui/internal/adapters/backend"
	"github.com/target/coffee-ui/internal/adapters/memstore"
	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	apperrors "github.com/target/coffee-ui/internal/errors"
	"github.com/target/coffee-ui/internal/testutil"
	"github.com/target/coffee-ui/internal/testutil/fakebackend"
)

type liveFixture struct {
	backend *fakebackend.Server
	store   *memstore.TokenStore
	manager *SessionManager
}

func newLiveFixture(t *testing.T) *liveFixture {
	t.Helper()
	fb := fakebackend.New(t)
	factory, err := backend.NewFactory(backend.ClientOptions{BaseURL: fb.URL})
	require.NoError(t, err)

	store := memstore.NewTokenStore()
	return &liveFixture{
		backend: fb,
		store:   store,
		manager: NewSessionManager(SessionManagerOptions{
			Deps:    SessionDeps{Store: store, Auth: NewAuthService(AuthServiceOptions{})},
			Clients: factory,
		}),
	}
}

// reload simulates a process restart: a fresh registry over the same store.
func (f *liveFixture) reload(t *testing.T) *SessionManager {
	t.Helper()
	factory, err := backend.NewFactory(backend.ClientOptions{BaseURL: f.backend.URL})
	require.NoError(t, err)
	return NewSessionManager(SessionManagerOptions{
		Deps:    SessionDeps{Store: f.store, Auth: NewAuthService(AuthServiceOptions{})},
		Clients: factory,
	})
}

func (f *liveFixture) stored(t *testing.T, id string) bool {
	t.Helper()
	_, ok, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return ok
}

func TestSessionLive_FreshStartIsAnonymousWithoutProfileFetch(t *testing.T) {
	f := newLiveFixture(t)

	s, err := f.manager.Open(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, domainauth.StateAnonymous, s.State())
	assert.Zero(t, f.backend.Count(http.MethodGet, PathMe))
}

func TestSessionLive_RestoreWithAcceptedToken(t *testing.T) {
	f := newLiveFixture(t)
	manager := testutil.NewProfile().Manager().WithEmail("boss@example.com").Build()
	f.backend.AddEmployee(manager, "pw")
	token := f.backend.Token("boss@example.com")
	require.NoError(t, f.store.Set(context.Background(), "sid", token))

	s, err := f.manager.Open(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, domainauth.StateAuthenticated, s.State())
	p, ok := s.Profile()
	require.True(t, ok)
	assert.Equal(t, "boss@example.com", p.Email)
	assert.True(t, p.IsManager())
	assert.True(t, s.Client().Authorized())

	reqs := f.backend.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+token, reqs[0].Authorization)
}

func TestSessionLive_RestoreWithRejectedToken(t *testing.T) {
	f := newLiveFixture(t)
	f.backend.AddEmployee(testutil.NewProfile().Build(), "pw")
	require.NoError(t, f.store.Set(context.Background(), "sid", f.backend.Token("barista@example.com")))
	f.backend.RotateSecret()

	s, err := f.manager.Open(context.Background(), "sid")
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))
	assert.Equal(t, domainauth.StateAnonymous, s.State())
	assert.False(t, s.Client().Authorized())
	assert.False(t, f.stored(t, "sid"))
}

func TestSessionLive_LoginThenProfileDrop(t *testing.T) {
	tests := []struct {
		name  string
		knob  func(*fakebackend.Server)
		check func(t *testing.T, err error)
	}{
		{
			name:  "connection dropped",
			knob:  func(fb *fakebackend.Server) { fb.DropMe.Store(true) },
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsNetwork(err), "got %v", err) },
		},
		{
			name:  "server error",
			knob:  func(fb *fakebackend.Server) { fb.FailMe.Store(true) },
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsInternal(err), "got %v", err) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLiveFixture(t)
			f.backend.AddEmployee(testutil.NewProfile().Build(), "pw")
			tt.knob(f.backend)

			s := f.manager.New()
			_, err := s.Login(context.Background(), domainauth.Credentials{Username: "barista@example.com", Password: "pw"})
			require.Error(t, err)
			tt.check(t, err)

			assert.Equal(t, 1, f.backend.Count(http.MethodPost, "/token"))
			assert.Equal(t, domainauth.StateAnonymous, s.State())
			assert.False(t, s.Client().Authorized())
			assert.False(t, f.stored(t, s.ID()))
		})
	}
}

func TestSessionLive_LoginWrongPassword(t *testing.T) {
	f := newLiveFixture(t)
	f.backend.AddEmployee(testutil.NewProfile().Build(), "pw")

	s := f.manager.New()
	_, err := s.Login(context.Background(), domainauth.Credentials{Username: "barista@example.com", Password: "nope"})
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))
	assert.Equal(t, "Invalid credentials", apperrors.Message(err, ""))
	assert.Equal(t, domainauth.StateAnonymous, s.State())
	assert.Zero(t, f.backend.Count(http.MethodGet, PathMe))
}

func TestSessionLive_LoginLogoutReload(t *testing.T) {
	f := newLiveFixture(t)
	f.backend.AddEmployee(testutil.NewProfile().Manager().WithEmail("m@example.com").Build(), "pw")

	s := f.manager.New()
	p, err := s.Login(context.Background(), domainauth.Credentials{Username: "m@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, p.IsManager())
	assert.True(t, f.stored(t, s.ID()))

	// A reload while logged in restores the same profile.
	again, err := f.reload(t).Open(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, domainauth.StateAuthenticated, again.State())

	require.NoError(t, s.Logout(context.Background()))
	assert.False(t, s.Client().Authorized())
	assert.False(t, f.stored(t, s.ID()))

	f.backend.ResetRequests()
	fresh, err := f.reload(t).Open(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, domainauth.StateAnonymous, fresh.State())
	assert.False(t, fresh.Client().Authorized())
	assert.Empty(t, f.backend.Requests(), "a logged-out reload makes no backend requests")
}

func TestSessionLive_Signup(t *testing.T) {
	f := newLiveFixture(t)

	s := f.manager.New()
	p, err := s.Signup(context.Background(), domainauth.SignupRequest{
		SSN: "999-00-1111", Name: "New Hire", Email: "new@example.com", Salary: 15, Password: "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", p.Email)
	assert.Equal(t, domainauth.StateAuthenticated, s.State())

	dup := f.manager.New()
	_, err = dup.Signup(context.Background(), domainauth.SignupRequest{
		SSN: "999-00-2222", Name: "Copy", Email: "new@example.com", Salary: 15, Password: "pw",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "Email already registered", apperrors.Message(err, ""))
	assert.Equal(t, domainauth.StateAnonymous, dup.State())
}

func TestSessionLive_ExpiredMidSession(t *testing.T) {
	f := newLiveFixture(t)
	f.backend.AddEmployee(testutil.NewProfile().Build(), "pw")
	s := f.manager.New()
	_, err := s.Login(context.Background(), domainauth.Credentials{Username: "barista@example.com", Password: "pw"})
	require.NoError(t, err)

	f.backend.RejectToken.Store(true)
	svc := NewResourceService(ResourceServiceOptions{})
	_, err = svc.List(context.Background(), s, "menu_items", 1)
	require.Error(t, err)

	assert.True(t, s.HandleAuthFailure(context.Background(), err))
	assert.Equal(t, domainauth.StateAnonymous, s.State())
	assert.False(t, f.stored(t, s.ID()))
}
