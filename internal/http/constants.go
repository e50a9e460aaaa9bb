package httpx

// CurrentPage constants define the page identifiers used in templates and navigation.
// These constants ensure consistency across UI handlers and template mapping.
const (
	PageHome         = "home"
	PageDashboard    = "dashboard"
	PageResourceList = "resource-list"
	PageResourceForm = "resource-form"
	PageAnalytics    = "analytics"
	PageLogin        = "login"
	PageSignup       = "signup"
)

// Route paths the handlers redirect between.
const (
	LoginPath      = "/login"
	SignupPath     = "/signup"
	LogoutPath     = "/logout"
	AuthStatusPath = "/auth/status"
	LandingPath    = "/"
	DashboardPath  = "/dashboard"
	AnalyticsPath  = "/analytics"
	ResourcePrefix = "/r/"
)

// Template paths used for loading templates in tests and production.
const (
	TemplatePathFromRoot = "frontend/templates"       // From project root
	TemplatePathFromTest = "../../frontend/templates" // From internal/http test files
)

// FormMode represents the mode of a form (create or edit).
// Using a dedicated type improves compile-time checks and prevents typos.
type FormMode string

const (
	// FormModeEdit indicates the form is in edit mode.
	FormModeEdit FormMode = "edit"
	// FormModeCreate indicates the form is in create mode.
	FormModeCreate FormMode = "create"
)

//nolint:gochecknoglobals // static read-only lookup for templates; avoids per-call allocations
var contentTemplates = map[string]string{
	PageHome:         "home-content",
	PageDashboard:    "dashboard-content",
	PageResourceList: "resource-list-content",
	PageResourceForm: "resource-form-content",
	PageAnalytics:    "analytics-content",
	PageLogin:        "login-content",
	PageSignup:       "signup-content",
}

// ContentTemplateMap returns the mapping from CurrentPage to template name.
// This is the single source of truth for page-to-template mapping.
func ContentTemplateMap() map[string]string { return contentTemplates }

// ContentTemplateFor returns the content template for the given CurrentPage.
// Falls back to home-content for unknown pages.
func ContentTemplateFor(currentPage string) string {
	if name, ok := ContentTemplateMap()[currentPage]; ok {
		return name
	}
	return "home-content"
}
