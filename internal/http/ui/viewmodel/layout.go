package viewmodel

// User represents the authenticated user context exposed to templates.
type User struct {
	Name  string
	Email string
	Role  string
}

// NavLink is one entry of the resource navigation.
type NavLink struct {
	Title string
	URL   string
}

// Layout captures shared chrome metadata (titles, navigation state, auth flags).
type Layout struct {
	Title           string
	PageTitle       string
	CurrentPage     string
	CSRFToken       string
	IsAuthenticated bool
	IsManager       bool
	User            *User
	Nav             []NavLink
}

// LayoutProvider exposes layout metadata for renderer utilities.
type LayoutProvider interface {
	LayoutData() *Layout
}
