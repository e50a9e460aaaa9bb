package httpx

import (
	"context"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/target/coffee-ui/internal/domain/resource"
	apperrors "github.com/target/coffee-ui/internal/errors"
	"github.com/target/coffee-ui/internal/http/ui/viewmodel"
	"github.com/target/coffee-ui/internal/ports"
	"github.com/target/coffee-ui/internal/service"
)

const errMsgFixBelow = "Please fix the errors below."

// ResourcesService is the schema-driven CRUD surface the resource pages need.
type ResourcesService interface {
	Registry() *resource.Registry
	List(ctx context.Context, c service.Caller, name string, page int) (service.ListResult, error)
	Get(ctx context.Context, c service.Caller, name, key string) (*resource.Schema, resource.Row, error)
	Schema(c service.Caller, name string) (*resource.Schema, error)
	Create(ctx context.Context, c service.Caller, name string, sub resource.Submission) (resource.Row, error)
	Update(ctx context.Context, c service.Caller, name, key string, sub resource.Submission) (resource.Row, error)
	Delete(ctx context.Context, c service.Caller, name, key string) error
	Refill(ctx context.Context, c service.Caller, name, key string, quantity float64) (resource.Row, error)
}

// AnalyticsReporter fetches the manager analytics panels.
type AnalyticsReporter interface {
	Report(ctx context.Context, client ports.APIClient, q service.AnalyticsQuery) service.AnalyticsReport
}

// Compile-time interface assertions to ensure concrete services satisfy their UI interfaces.
var (
	_ ResourcesService  = (*service.ResourceService)(nil)
	_ AnalyticsReporter = (*service.AnalyticsService)(nil)
)

// UIHandlers serves browser-facing routes.
type UIHandlers struct {
	T         *TemplateRenderer
	Resources ResourcesService
	Analytics AnalyticsReporter
	IsDev     bool             // Development mode flag for enhanced error reporting
	Now       func() time.Time // Optional: clock for analytics defaults
	Logger    *slog.Logger
}

// logger returns the configured logger or falls back to slog.Default().
func (h *UIHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *UIHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// PageMeta contains metadata for page rendering.
type PageMeta struct {
	Title       string
	PageTitle   string
	CurrentPage string
}

// buildLayout constructs shared layout metadata from the request/session context.
func buildLayout(r *http.Request, meta PageMeta) viewmodel.Layout {
	layout := viewmodel.Layout{
		Title:       meta.Title,
		PageTitle:   meta.PageTitle,
		CurrentPage: meta.CurrentPage,
		CSRFToken:   GetCSRFToken(r),
	}

	if p, ok := ProfileFromContext(r.Context()); ok {
		layout.User = &viewmodel.User{
			Name:  p.Name,
			Email: p.Email,
			Role:  p.Role.String(),
		}
		layout.IsAuthenticated = true
		layout.IsManager = p.IsManager()
	}

	return layout
}

// basePageData constructs the common page data map with user context.
func basePageData(r *http.Request, meta PageMeta) map[string]any {
	layout := buildLayout(r, meta)
	data := map[string]any{
		"Title":           layout.Title,
		"PageTitle":       layout.PageTitle,
		"CurrentPage":     layout.CurrentPage,
		"IsAuthenticated": layout.IsAuthenticated,
		"IsManager":       layout.IsManager,
	}

	if layout.CSRFToken != "" {
		data["CSRFToken"] = layout.CSRFToken
	}
	if layout.User != nil {
		data["User"] = layout.User
	}

	return data
}

// pageData is basePageData plus the resource navigation for the signed-in user.
func (h *UIHandlers) pageData(r *http.Request, meta PageMeta) *TemplateDataBuilder {
	b := NewTemplateData(r, meta)
	if nav := h.navFor(r); len(nav) > 0 {
		b.With("Nav", nav)
	}
	return b
}

func (h *UIHandlers) navFor(r *http.Request) []viewmodel.NavLink {
	p, ok := ProfileFromContext(r.Context())
	if !ok || h.Resources == nil {
		return nil
	}
	schemas := h.Resources.Registry().Readable(p)
	nav := make([]viewmodel.NavLink, 0, len(schemas))
	for _, s := range schemas {
		nav = append(nav, viewmodel.NavLink{Title: s.Title, URL: ResourcePrefix + s.Name})
	}
	return nav
}

// renderPage renders the page with the given status: the content fragment for htmx swaps,
// the full layout otherwise.
func (h *UIHandlers) renderPage(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	if !WantsPartial(r) {
		if err := h.T.Render(w, RenderParams{Template: tmplLayout, Status: status, Data: data}); err != nil {
			h.logAndRenderTemplateError(w, r, err, "full page render")
		}
		return
	}

	layout := layoutFromMap(data)
	buf, err := h.T.execute(ContentTemplateFor(layout.CurrentPage), data)
	if err != nil {
		h.logAndRenderTemplateError(w, r, err, "partial content render")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// Hint client JS to update nav active state based on current path
	SetHXTrigger(w, "nav:activate", map[string]string{"path": r.URL.Path})
	if status != 0 {
		w.WriteHeader(status)
	}

	// A <title> lets htmx update document.title; the header title is swapped out of band.
	head := `<title>` + html.EscapeString(layout.Title) + `</title>` +
		`<h1 id="header-title" class="header-title" hx-swap-oob="outerHTML">` +
		html.EscapeString(layout.PageTitle) + `</h1>`
	if _, err := w.Write([]byte(head)); err != nil {
		h.logger().Error("failed to write partial header", "error", err)
		return
	}
	if _, err := buf.WriteTo(w); err != nil {
		h.logger().Error("failed to write partial content", "error", err)
	}
}

func layoutFromMap(data map[string]any) viewmodel.Layout {
	layout := viewmodel.Layout{}
	if v, ok := data["Title"].(string); ok {
		layout.Title = v
	}
	if v, ok := data["PageTitle"].(string); ok {
		layout.PageTitle = v
	}
	if v, ok := data["CurrentPage"].(string); ok {
		layout.CurrentPage = v
	}
	return layout
}

// errorPage is the content of the standalone error layout.
type errorPage struct {
	Status  int
	Title   string
	Message string
}

// renderErrorPage renders the error layout, or JSON for API callers.
func (h *UIHandlers) renderErrorPage(w http.ResponseWriter, r *http.Request, p errorPage) {
	if !IsBrowserRequest(r) || h.T == nil {
		WriteJSON(w, p.Status, map[string]string{
			"error":   http.StatusText(p.Status),
			"message": p.Message,
		})
		return
	}

	_, authenticated := ProfileFromContext(r.Context())
	data := map[string]any{
		"Title":           p.Title + " - Coffee Shop",
		"Code":            strconv.Itoa(p.Status),
		"Heading":         p.Title,
		"Message":         p.Message,
		"IsAuthenticated": authenticated,
		"ShowLogin":       !authenticated,
		"LoginURL":        LoginPath,
	}
	if err := h.T.Render(w, RenderParams{Template: tmplErrorLayout, Status: p.Status, Data: data}); err != nil {
		http.Error(w, p.Message, p.Status)
	}
}

// handleBackendError turns a failed backend call into a response. A rejected token logs the
// session out and sends the browser to login.
func (h *UIHandlers) handleBackendError(w http.ResponseWriter, r *http.Request, err error) {
	if h.interceptAuthFailure(w, r, err) {
		return
	}

	status := StatusFor(err)
	switch {
	case apperrors.IsForbidden(err):
		h.renderErrorPage(w, r, errorPage{
			Status:  status,
			Title:   "Access denied",
			Message: apperrors.Message(err, "You do not have permission to view this page."),
		})
	case apperrors.IsNotFound(err):
		h.renderErrorPage(w, r, errorPage{
			Status:  status,
			Title:   "Not found",
			Message: apperrors.Message(err, "We could not find what you were looking for."),
		})
	default:
		h.logger().WarnContext(r.Context(), "backend request failed",
			"path", r.URL.Path, "status", status, "error", err)
		h.renderErrorPage(w, r, errorPage{
			Status:  status,
			Title:   "Something went wrong",
			Message: userMessage(err),
		})
	}
}

// interceptAuthFailure logs the session out when err shows an expired or revoked token and
// answers the request. It reports whether it wrote a response.
func (h *UIHandlers) interceptAuthFailure(w http.ResponseWriter, r *http.Request, err error) bool {
	s, ok := SessionFromContext(r.Context())
	if !ok || !s.HandleAuthFailure(r.Context(), err) {
		return false
	}
	h.logger().InfoContext(r.Context(), "backend rejected session token; signed out",
		"session", shortID(s.ID()), "path", r.URL.Path)
	denyUnauthenticated(w, r)
	return true
}

// userMessage is the inline text shown for a failed call.
func userMessage(err error) string {
	switch {
	case apperrors.IsTimeout(err):
		return "The coffee shop service took too long to answer. Please try again."
	case apperrors.IsCanceled(err):
		return "Request was canceled."
	case apperrors.IsNetwork(err):
		return "The coffee shop service is unreachable. Please try again shortly."
	case apperrors.IsValidation(err), apperrors.IsConflict(err):
		return apperrors.Message(err, "The request was rejected.")
	default:
		return "An unexpected error occurred. Please try again."
	}
}

// logAndRenderTemplateError logs template errors and renders them in dev mode.
func (h *UIHandlers) logAndRenderTemplateError(w http.ResponseWriter, r *http.Request, err error, context string) {
	h.logger().Error("template rendering failed",
		"error", err,
		"context", context,
		"path", r.URL.Path,
		"method", r.Method,
	)

	if h.IsDev {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		body := `<div class="dev-error"><h2>Template Rendering Error</h2>` +
			`<p><strong>Context:</strong> ` + html.EscapeString(context) + `</p>` +
			`<p><strong>Path:</strong> ` + html.EscapeString(r.URL.Path) + `</p>` +
			`<pre>` + html.EscapeString(err.Error()) + `</pre></div>`
		if _, writeErr := w.Write([]byte(body)); writeErr != nil {
			h.logger().Error("failed to write template error response", "error", writeErr)
		}
		return
	}

	http.Error(w, "internal server error", http.StatusInternalServerError)
}
