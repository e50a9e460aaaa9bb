package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import "strings"

// Role represents an employee's authorization role as reported by the backend.
// Valid values are defined as constants below.
type Role string

const (
	RoleManager Role = "manager"
	RoleBarista Role = "barista"
)

// ParseRole normalizes a backend role string. Unknown values are returned as-is.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleManager || r == RoleBarista
}

func (r Role) String() string { return string(r) }

// Profile is the server-authoritative record returned by GET /me.
// The client never mutates it directly.
type Profile struct {
	SSN    string  `json:"ssn"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Salary float64 `json:"salary,omitempty"`
	Role   Role    `json:"role"`
}

// IsManager returns true if the profile carries the manager role.
func (p Profile) IsManager() bool { return p.Role == RoleManager }

// Credentials are the transient inputs for a token exchange. Never persisted.
type Credentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"` //nolint:gosec // transient credential, never stored
}

// SignupRequest is the JSON payload for POST /signup.
type SignupRequest struct {
	SSN      string  `json:"ssn"      validate:"required"`
	Name     string  `json:"name"     validate:"required"`
	Email    string  `json:"email"    validate:"required,email"`
	Salary   float64 `json:"salary"   validate:"gte=0"`
	Password string  `json:"password" validate:"required"` //nolint:gosec // transient credential, never stored
}

// TokenResponse is the bearer token issued by the backend.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// SignupResponse is returned by POST /signup. Some backend versions include the created user.
type SignupResponse struct {
	TokenResponse
	User *Profile `json:"user,omitempty"`
}

// State is the session lifecycle state.
type State int

const (
	// StateUnknown is the initial state before a restore attempt resolves.
	StateUnknown State = iota
	// StateAnonymous means no valid token is held.
	StateAnonymous
	// StateAuthenticated means a token is attached and a profile was fetched with it.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
