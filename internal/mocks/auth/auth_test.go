package auth

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
)

func TestFakeClient_TracksTokenAndCalls(t *testing.T) {
	c := &FakeClient{}
	ctx := context.Background()

	assert.False(t, c.Authorized())
	c.SetToken("tok")
	assert.True(t, c.Authorized())
	assert.Equal(t, "tok", c.Token())

	require.NoError(t, c.Get(ctx, "/me", nil, nil))
	require.NoError(t, c.Delete(ctx, "/menu_items/latte"))
	c.ClearToken()
	assert.False(t, c.Authorized())

	assert.Equal(t, []string{"GET /me", "DELETE /menu_items/latte"}, c.Calls())
}

func TestFakeClient_FuncOverrides(t *testing.T) {
	boom := errors.New("boom")
	c := &FakeClient{
		GetFunc: func(_ context.Context, _ string, _ url.Values, out any) error {
			return Respond(out, domainauth.Profile{Name: "Ada", Role: domainauth.RoleManager})
		},
		ExchangeFunc: func(context.Context, string, string) (domainauth.TokenResponse, error) {
			return domainauth.TokenResponse{}, boom
		},
	}

	var p domainauth.Profile
	require.NoError(t, c.Get(context.Background(), "/me", nil, &p))
	assert.Equal(t, "Ada", p.Name)
	assert.True(t, p.IsManager())

	_, err := c.ExchangePassword(context.Background(), "a", "b")
	require.ErrorIs(t, err, boom)
}

func TestTokenStore_Overrides(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "s", "tok"))
	assert.True(t, store.Has("s"))

	injected := errors.New("redis down")
	store.ClearFunc = func(context.Context, string) error { return injected }
	require.ErrorIs(t, store.Clear(ctx, "s"), injected)
	assert.True(t, store.Has("s"))

	store.Put("other", "x")
	tok, ok, err := store.Get(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", tok)
}
