package httpx

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/target/coffee-ui/internal/adapters/backend"
	"github.com/target/coffee-ui/internal/adapters/memstore"
	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	"github.com/target/coffee-ui/internal/service"
	"github.com/target/coffee-ui/internal/testutil/fakebackend"
)

// Test accounts seeded into every harness backend.
const (
	testManagerEmail  = "manager@coffee.test"
	testBaristaEmail  = "barista@coffee.test"
	testPassword      = "hunter22"
	testManagerSSN    = "111-11-1111"
	testBaristaSSN    = "222-22-2222"
	testOtherPassword = "wrong-password"
)

// testApp is a full router wired to a fake backend and an in-memory token store.
type testApp struct {
	Backend  *fakebackend.Server
	Store    *memstore.TokenStore
	Sessions *service.SessionManager
	Server   *httptest.Server
}

// newTestApp builds the router the way the server binary does, with memory storage.
// Options adjust the router services before the router is built.
func newTestApp(t *testing.T, opts ...func(*RouterServices)) *testApp {
	t.Helper()
	SkipIfNoTemplates(t)

	fb := fakebackend.New(t)
	fb.AddEmployee(domainauth.Profile{
		SSN: testManagerSSN, Name: "Mara Manager", Email: testManagerEmail, Salary: 5000, Role: domainauth.RoleManager,
	}, testPassword)
	fb.AddEmployee(domainauth.Profile{
		SSN: testBaristaSSN, Name: "Bo Barista", Email: testBaristaEmail, Salary: 3000, Role: domainauth.RoleBarista,
	}, testPassword)

	factory, err := backend.NewFactory(backend.ClientOptions{BaseURL: fb.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("backend factory: %v", err)
	}
	store := memstore.NewTokenStore()
	sessions := service.NewSessionManager(service.SessionManagerOptions{
		Deps: service.SessionDeps{
			Store: store,
			Auth:  service.NewAuthService(service.AuthServiceOptions{}),
		},
		Clients: factory,
	})

	services := RouterServices{
		Sessions:   sessions,
		Resources:  service.NewResourceService(service.ResourceServiceOptions{}),
		Analytics:  service.NewAnalyticsService(nil),
		Redirect:   service.NewRoleRedirect(LandingPath, DashboardPath),
		Limiter:    NewLoginLimiter(1000, 1000),
		TemplateFS: os.DirFS(TemplatePathFromTest),
	}
	for _, opt := range opts {
		opt(&services)
	}
	router, err := NewRouter(services)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testApp{Backend: fb, Store: store, Sessions: sessions, Server: srv}
}

// browser is a cookie-keeping client that does not follow redirects.
type browser struct {
	t      *testing.T
	app    *testApp
	client *http.Client
}

func (a *testApp) newBrowser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &browser{
		t:   t,
		app: a,
		client: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// page is a read response.
type page struct {
	Status   int
	Location string
	Header   http.Header
	Body     string
}

func (b *browser) do(req *http.Request) page {
	b.t.Helper()
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		b.t.Fatalf("read body: %v", err)
	}
	return page{
		Status:   resp.StatusCode,
		Location: resp.Header.Get("Location"),
		Header:   resp.Header,
		Body:     string(body),
	}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.app.Server.URL+path, nil)
	if err != nil {
		b.t.Fatalf("new request: %v", err)
	}
	return b.do(req)
}

// getJSON issues an API-style request.
func (b *browser) getJSON(path string) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.app.Server.URL+path, nil)
	if err != nil {
		b.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	return b.do(req)
}

// post submits a form with the CSRF token the browser holds. Extra headers are
// given as name/value pairs.
func (b *browser) post(path string, form url.Values, headers ...string) page {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set(DefaultCSRFCookieName, b.csrfToken())
	req, err := http.NewRequest(http.MethodPost, b.app.Server.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		b.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return b.do(req)
}

// csrfToken returns the token cookie, fetching the login page first when none is held.
func (b *browser) csrfToken() string {
	b.t.Helper()
	if v := b.cookie(DefaultCSRFCookieName); v != "" {
		return v
	}
	b.get(LoginPath)
	return b.cookie(DefaultCSRFCookieName)
}

func (b *browser) cookie(name string) string {
	u, err := url.Parse(b.app.Server.URL)
	if err != nil {
		b.t.Fatalf("parse server url: %v", err)
	}
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// sessionID returns the session cookie value.
func (b *browser) sessionID() string {
	return b.cookie(DefaultSessionCookieName)
}

// login signs in and returns the response of the login POST.
func (b *browser) login(email, password string) page {
	b.t.Helper()
	return b.post(LoginPath, url.Values{"email": {email}, "password": {password}})
}
