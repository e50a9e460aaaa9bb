package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	apperrors "github.com/target/coffee-ui/internal/errors"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveBackend(method, path string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, method+" "+path+" "+http.StatusText(status))
}

func newTestClient(t *testing.T, h http.Handler) (*Client, *recordingObserver) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	obs := &recordingObserver{}
	c, err := NewClient(ClientOptions{BaseURL: srv.URL, Observer: obs})
	require.NoError(t, err)
	return c, obs
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	_, err := NewClient(ClientOptions{})
	require.Error(t, err)

	_, err = NewClient(ClientOptions{BaseURL: "ftp://example.com"})
	require.Error(t, err)
}

func TestClient_TokenAttachment(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	ctx := context.Background()

	assert.False(t, c.Authorized())
	require.NoError(t, c.Get(ctx, "/ping", nil, nil))

	c.SetToken("tok-1")
	assert.True(t, c.Authorized())
	require.NoError(t, c.Get(ctx, "/ping", nil, nil))

	c.ClearToken()
	assert.False(t, c.Authorized())
	require.NoError(t, c.Get(ctx, "/ping", nil, nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "Bearer tok-1", ""}, seen)
}

func TestClient_ExchangePassword(t *testing.T) {
	c, obs := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/token", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"), "exchange must not carry a bearer token")
		assert.Contains(t, r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "a@b.com", r.PostForm.Get("username"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer"}`))
	}))
	c.SetToken("stale")

	tok, err := c.ExchangePassword(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, domainauth.TokenResponse{AccessToken: "abc", TokenType: "bearer"}, tok)
	assert.Equal(t, []string{"POST /token OK"}, obs.calls)
}

func TestClient_ExchangePassword_InvalidCredentials(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
	}))

	_, err := c.ExchangePassword(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))
	assert.Equal(t, "Invalid credentials", apperrors.Message(err, ""))
}

func TestClient_ExchangePassword_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(ClientOptions{BaseURL: base, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.ExchangePassword(context.Background(), "a@b.com", "secret")
	require.Error(t, err)
	assert.True(t, apperrors.IsNetwork(err), "got %v", err)
}

func TestClient_GetDecodesJSON(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analytics/popular/", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("k"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"latte","sold":12}]`))
	}))

	var out []map[string]any
	require.NoError(t, c.Get(context.Background(), "/analytics/popular/", url.Values{"k": {"3"}}, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "latte", out[0]["name"])
}

func TestClient_ErrorTranslation(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
		msg    string
		field  string
	}{
		{"expired token", http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`, apperrors.IsAuthentication, "Could not validate credentials", ""},
		{"wrong role", http.StatusForbidden, `{"detail":"Managers only"}`, apperrors.IsForbidden, "Managers only", ""},
		{"duplicate", http.StatusBadRequest, `{"detail":"Email already registered"}`, apperrors.IsValidation, "Email already registered", ""},
		{"schema", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","salary"],"msg":"value is not a valid float"}]}`, apperrors.IsValidation, "salary: value is not a valid float", "salary"},
		{"missing", http.StatusNotFound, `{"detail":"Item not found"}`, apperrors.IsNotFound, "Item not found", ""},
		{"server", http.StatusInternalServerError, `oops`, apperrors.IsInternal, "backend error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			err := c.Post(context.Background(), "/inventory_items/", map[string]any{"name": "milk"}, nil)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected code %v", apperrors.GetCode(err))
			assert.Equal(t, tt.msg, apperrors.Message(err, ""))
			assert.Equal(t, tt.field, apperrors.GetField(err))
		})
	}
}

func TestClient_PatchAndDeleteEscapeKeys(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	c, obs := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.EscapedPath())
		mu.Unlock()
		if r.Method == http.MethodPatch {
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"Iced Latte"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	ctx := context.Background()
	key := "/menu_items/" + url.PathEscape("Iced Latte")

	var out map[string]any
	require.NoError(t, c.Patch(ctx, key, map[string]any{"price": 4.5}, &out))
	require.NoError(t, c.Delete(ctx, key))

	mu.Lock()
	assert.Equal(t, []string{"PATCH /menu_items/Iced%20Latte", "DELETE /menu_items/Iced%20Latte"}, paths)
	mu.Unlock()
	assert.Equal(t, []string{"PATCH /menu_items/:key OK", "DELETE /menu_items/:key No Content"}, obs.calls)
}

func TestClient_RejectsAbsolutePaths(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	err := c.Get(context.Background(), "https://evil.example/me", nil, nil)
	require.Error(t, err)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/", routeLabel(""))
	assert.Equal(t, "/me", routeLabel("/me"))
	assert.Equal(t, "/employees", routeLabel("/employees/"))
	assert.Equal(t, "/employees/:key", routeLabel("/employees/123-45-6789"))
	assert.Equal(t, "/analytics/revenue", routeLabel("/analytics/revenue/"))
}

func TestNewFactory_IndependentTokens(t *testing.T) {
	factory, err := NewFactory(ClientOptions{BaseURL: "http://backend.local"})
	require.NoError(t, err)

	a := factory.NewClient()
	b := factory.NewClient()
	a.SetToken("tok")
	assert.True(t, a.Authorized())
	assert.False(t, b.Authorized())
}
