package httpx

import (
	"net/http"

	"github.com/target/coffee-ui/internal/domain/resource"
)

// Home renders the operational landing page for any signed-in employee. GET /.
func (h *UIHandlers) Home(w http.ResponseWriter, r *http.Request) {
	p, _ := ProfileFromContext(r.Context())

	var readable []*resource.Schema
	if h.Resources != nil {
		readable = h.Resources.Registry().Readable(p)
	}

	data := h.pageData(r, PageMeta{
		Title:       "Home - Coffee Shop",
		PageTitle:   "Welcome, " + firstName(p.Name),
		CurrentPage: PageHome,
	}).
		With("Profile", p).
		With("Resources", readable).
		Build()
	h.renderPage(w, r, http.StatusOK, data)
}

// Dashboard renders the manager area. GET /dashboard.
func (h *UIHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	p, _ := ProfileFromContext(r.Context())

	var managed, readOnly []*resource.Schema
	if h.Resources != nil {
		for _, s := range h.Resources.Registry().Readable(p) {
			if s.CanWrite(p) {
				managed = append(managed, s)
			} else {
				readOnly = append(readOnly, s)
			}
		}
	}

	data := h.pageData(r, PageMeta{
		Title:       "Dashboard - Coffee Shop",
		PageTitle:   "Manager dashboard",
		CurrentPage: PageDashboard,
	}).
		With("Profile", p).
		With("Managed", managed).
		With("ReadOnly", readOnly).
		With("AnalyticsURL", AnalyticsPath).
		Build()
	h.renderPage(w, r, http.StatusOK, data)
}

func firstName(name string) string {
	for i, r := range name {
		if r == ' ' {
			return name[:i]
		}
	}
	if name == "" {
		return "there"
	}
	return name
}
