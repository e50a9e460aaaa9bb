package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/coffee-ui/internal/errors"
	"github.com/target/coffee-ui/internal/ports"
	"github.com/target/coffee-ui/internal/service"
	"github.com/target/coffee-ui/internal/testutil/fakebackend"
)

func seedAnalytics(app *testApp) {
	app.Backend.SetAnalytics(fakebackend.Analytics{
		Revenue: 1234.5,
		Popular: []map[string]any{
			{"name": "Latte", "sold": 120.0},
			{"name": "Mocha", "sold": 80.0},
			{"name": "Tea", "sold": 10.0},
			{"name": "Water", "sold": 1.0},
		},
		TopRevenue: []map[string]any{
			{"name": "Latte", "revenue": 540.0},
			{"name": "Mocha", "revenue": 420.25},
		},
	})
}

func TestAnalyticsPage_RendersPanels(t *testing.T) {
	app := newTestApp(t)
	seedAnalytics(app)
	b := app.newBrowser(t)
	b.login(testManagerEmail, testPassword)

	resp := b.get("/analytics")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, ContainsAll(resp.Body, []string{"$1,234.50", "Latte", "120 sold", "Mocha", "$420.25"}), resp.Body)
	assert.NotContains(t, resp.Body, "Water", "default k is 3")
	for _, path := range []string{service.PathRevenue, service.PathPopular, service.PathTopRevenue} {
		assert.Equal(t, 1, app.Backend.Count(http.MethodGet, path), path)
	}
}

func TestAnalyticsPage_QueryIsForwarded(t *testing.T) {
	app := newTestApp(t)
	seedAnalytics(app)
	b := app.newBrowser(t)
	b.login(testManagerEmail, testPassword)

	resp := b.get("/analytics?" + url.Values{
		"start": {"2024-03-01"}, "end": {"2024-03-31"}, "month": {"3"}, "year": {"2024"}, "k": {"4"},
	}.Encode())
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, "Water")
	assert.Contains(t, resp.Body, `value="2024-03-01"`)

	var popular url.Values
	for _, req := range app.Backend.Requests() {
		if req.Path == service.PathPopular {
			popular, _ = url.ParseQuery(req.Query)
		}
	}
	require.NotNil(t, popular)
	assert.Equal(t, "3", popular.Get("month"))
	assert.Equal(t, "2024", popular.Get("year"))
	assert.Equal(t, "4", popular.Get("k"))
}

func TestAnalyticsPage_BadQueryFallsBackToDefaults(t *testing.T) {
	app := newTestApp(t)
	seedAnalytics(app)
	b := app.newBrowser(t)
	b.login(testManagerEmail, testPassword)

	resp := b.get("/analytics?k=99&month=13&start=yesterday")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, "Top items must be between 1 and 20.")
	assert.Contains(t, resp.Body, "Month must be between 1 and 12.")
	assert.Contains(t, resp.Body, errMsgFixBelow)
	assert.Contains(t, resp.Body, "$1,234.50", "panels still render with defaults")
	assert.NotContains(t, resp.Body, "Water")
}

func TestParseAnalyticsQuery_EndBeforeStart(t *testing.T) {
	now := time.Date(2024, time.May, 17, 9, 0, 0, 0, time.UTC)
	q, errs := parseAnalyticsQuery(url.Values{"start": {"2024-05-10"}, "end": {"2024-05-01"}}, now)

	assert.Equal(t, "End date must be on or after the start date.", errs["end"])
	assert.Equal(t, "2024-05-01", q.Start.Format(service.DateLayout))
	assert.Equal(t, "2024-05-31", q.End.Format(service.DateLayout))
}

func TestAnalyticsPage_BaristaRedirected(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser(t)
	b.login(testBaristaEmail, testPassword)
	app.Backend.ResetRequests()

	resp := b.get("/analytics")
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, LandingPath, resp.Location)
	assert.Zero(t, app.Backend.Count(http.MethodGet, service.PathRevenue))
}

// failingPanel wraps a reporter and fails the popular panel.
type failingPanel struct {
	inner AnalyticsReporter
}

func (f failingPanel) Report(ctx context.Context, c ports.APIClient, q service.AnalyticsQuery) service.AnalyticsReport {
	r := f.inner.Report(ctx, c, q)
	r.Popular = nil
	r.PopularErr = apperrors.Network(errors.New("connection reset"))
	return r
}

func TestAnalyticsPage_PanelFailureIsInline(t *testing.T) {
	app := newTestApp(t, func(s *RouterServices) {
		s.Analytics = failingPanel{inner: s.Analytics}
	})
	seedAnalytics(app)
	b := app.newBrowser(t)
	b.login(testManagerEmail, testPassword)

	resp := b.get("/analytics")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, "unreachable")
	assert.Contains(t, resp.Body, "$1,234.50", "other panels are unaffected")
	assert.Contains(t, resp.Body, "$540.00")
}

func TestAnalyticsPage_RejectedTokenSignsOut(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser(t)
	b.login(testManagerEmail, testPassword)
	app.Backend.RejectToken.Store(true)

	resp := b.get("/analytics")
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Contains(t, resp.Location, LoginPath)

	app.Backend.RejectToken.Store(false)
	again := b.get("/analytics")
	assert.Equal(t, http.StatusSeeOther, again.Status, "the session stays signed out")
	assert.Contains(t, again.Location, LoginPath)
}
