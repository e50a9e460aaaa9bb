package httpx

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/target/coffee-ui/internal/http/validation"
	"github.com/target/coffee-ui/internal/service"
)

const maxTopK = 20

// AnalyticsPage renders the three manager panels. GET /analytics.
// Bad query values are reported inline and the defaults are used instead.
func (h *UIHandlers) AnalyticsPage(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFromContext(r.Context())
	if !ok || h.Analytics == nil {
		h.NotFound(w, r)
		return
	}

	q, fieldErrors := parseAnalyticsQuery(r.URL.Query(), h.now())
	report := h.Analytics.Report(r.Context(), s.Client(), q)
	if err := report.AuthFailure(); err != nil && h.interceptAuthFailure(w, r, err) {
		return
	}

	b := h.pageData(r, PageMeta{
		Title:       "Analytics - Coffee Shop",
		PageTitle:   "Analytics",
		CurrentPage: PageAnalytics,
	}).
		WithFieldErrors(fieldErrors).
		With("Report", report).
		With("Query", analyticsForm(q)).
		With("RevenueError", panelError(report.RevenueErr)).
		With("PopularError", panelError(report.PopularErr)).
		With("TopRevenueError", panelError(report.TopRevenueErr))
	if len(fieldErrors) > 0 {
		b.WithError(errMsgFixBelow)
	}
	h.renderPage(w, r, http.StatusOK, b.Build())
}

// analyticsFormValues echoes the query back into the filter form.
type analyticsFormValues struct {
	Start string
	End   string
	Month int
	Year  int
	K     int
}

func analyticsForm(q service.AnalyticsQuery) analyticsFormValues {
	return analyticsFormValues{
		Start: q.Start.Format(service.DateLayout),
		End:   q.End.Format(service.DateLayout),
		Month: q.Month,
		Year:  q.Year,
		K:     q.K,
	}
}

// parseAnalyticsQuery overlays valid query values on the current-month defaults.
func parseAnalyticsQuery(values url.Values, now time.Time) (service.AnalyticsQuery, map[string]string) {
	q := service.DefaultAnalyticsQuery(now)
	get := func(k string) string { return strings.TrimSpace(values.Get(k)) }

	fv := validation.New().
		Validate("start", get("start"), validation.Optional(validation.Date("Start date", service.DateLayout))).
		Validate("end", get("end"), validation.Optional(validation.Date("End date", service.DateLayout))).
		Validate("month", get("month"), validation.Optional(validation.IntRange("Month", 1, 12))).
		Validate("year", get("year"), validation.Optional(validation.IntRange("Year", 2000, 2100))).
		Validate("k", get("k"), validation.Optional(validation.IntRange("Top items", 1, maxTopK)))
	errs := fv.Errors()

	if v := get("start"); v != "" && errs["start"] == "" {
		q.Start, _ = time.ParseInLocation(service.DateLayout, v, now.Location())
	}
	if v := get("end"); v != "" && errs["end"] == "" {
		q.End, _ = time.ParseInLocation(service.DateLayout, v, now.Location())
	}
	if v := get("month"); v != "" && errs["month"] == "" {
		q.Month, _ = strconv.Atoi(v)
	}
	if v := get("year"); v != "" && errs["year"] == "" {
		q.Year, _ = strconv.Atoi(v)
	}
	if v := get("k"); v != "" && errs["k"] == "" {
		q.K, _ = strconv.Atoi(v)
	}

	if q.End.Before(q.Start) {
		fv.Add("end", "End date must be on or after the start date.")
		d := service.DefaultAnalyticsQuery(now)
		q.Start, q.End = d.Start, d.End
	}
	return q, fv.Errors()
}

func panelError(err error) string {
	if err == nil {
		return ""
	}
	return processError(err, nil)
}
