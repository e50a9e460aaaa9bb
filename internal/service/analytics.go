package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/target/coffee-ui/internal/errors"
	"github.com/target/coffee-ui/internal/ports"
)

// Backend analytics endpoints.
const (
	PathRevenue    = "/analytics/revenue/"
	PathPopular    = "/analytics/popular/"
	PathTopRevenue = "/analytics/top-revenue/"
)

// DateLayout is the backend's date query format.
const DateLayout = "2006-01-02"

// DefaultTopK is the default number of ranked items.
const DefaultTopK = 3

// AnalyticsQuery selects the report window.
type AnalyticsQuery struct {
	Start time.Time
	End   time.Time
	Month int
	Year  int
	K     int
}

// DefaultAnalyticsQuery covers the calendar month containing now.
func DefaultAnalyticsQuery(now time.Time) AnalyticsQuery {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return AnalyticsQuery{
		Start: first,
		End:   first.AddDate(0, 1, -1),
		Month: int(now.Month()),
		Year:  now.Year(),
		K:     DefaultTopK,
	}
}

// RankedItem is one menu item in a top-k list.
type RankedItem struct {
	Name    string  `json:"name"`
	Sold    float64 `json:"sold"`
	Revenue float64 `json:"revenue"`
}

// AnalyticsReport holds the three panels. Each panel fails independently.
type AnalyticsReport struct {
	Query         AnalyticsQuery
	Revenue       float64
	RevenueErr    error
	Popular       []RankedItem
	PopularErr    error
	TopRevenue    []RankedItem
	TopRevenueErr error
}

// AuthFailure returns the first panel error showing the token was rejected.
func (r AnalyticsReport) AuthFailure() error {
	for _, err := range []error{r.RevenueErr, r.PopularErr, r.TopRevenueErr} {
		if apperrors.IsAuthentication(err) {
			return err
		}
	}
	return nil
}

// Err joins every panel error.
func (r AnalyticsReport) Err() error {
	return errors.Join(r.RevenueErr, r.PopularErr, r.TopRevenueErr)
}

// AnalyticsService fetches the manager analytics.
type AnalyticsService struct {
	logger *slog.Logger
}

// NewAnalyticsService constructs a new AnalyticsService.
func NewAnalyticsService(logger *slog.Logger) *AnalyticsService {
	return &AnalyticsService{logger: logger}
}

func (s *AnalyticsService) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Report fetches the three panels concurrently.
func (s *AnalyticsService) Report(ctx context.Context, client ports.APIClient, q AnalyticsQuery) AnalyticsReport {
	if q.K <= 0 {
		q.K = DefaultTopK
	}
	report := AnalyticsReport{Query: q}
	k := strconv.Itoa(q.K)
	window := url.Values{
		"start": {q.Start.Format(DateLayout)},
		"end":   {q.End.Format(DateLayout)},
	}

	var g errgroup.Group
	g.Go(func() error {
		var out struct {
			Revenue float64 `json:"revenue"`
		}
		report.RevenueErr = client.Get(ctx, PathRevenue, window, &out)
		report.Revenue = out.Revenue
		return nil
	})
	g.Go(func() error {
		query := url.Values{
			"month": {strconv.Itoa(q.Month)},
			"year":  {strconv.Itoa(q.Year)},
			"k":     {k},
		}
		report.PopularErr = client.Get(ctx, PathPopular, query, &report.Popular)
		return nil
	})
	g.Go(func() error {
		query := url.Values{"start": window["start"], "end": window["end"], "k": {k}}
		report.TopRevenueErr = client.Get(ctx, PathTopRevenue, query, &report.TopRevenue)
		return nil
	})
	_ = g.Wait()

	if err := report.Err(); err != nil {
		s.log().Warn("analytics report incomplete", "error", err)
	}
	return report
}
