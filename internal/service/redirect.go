package service

import (
	domainauth "github.com/target/coffee-ui/internal/domain/auth"
)

// RedirectPolicy picks where a user lands after login or signup.
type RedirectPolicy interface {
	Target(p domainauth.Profile) string
}

// FixedRedirect sends every user to the same path.
type FixedRedirect struct {
	Path string
}

// Target implements RedirectPolicy.
func (f FixedRedirect) Target(domainauth.Profile) string {
	if f.Path == "" {
		return "/"
	}
	return f.Path
}

// RoleRedirect sends users to a per-role path, falling back to Default.
type RoleRedirect struct {
	ByRole  map[domainauth.Role]string
	Default string
}

// Target implements RedirectPolicy.
func (r RoleRedirect) Target(p domainauth.Profile) string {
	if path, ok := r.ByRole[p.Role]; ok && path != "" {
		return path
	}
	if r.Default == "" {
		return "/"
	}
	return r.Default
}

// NewRoleRedirect sends managers to managerPath and everyone else to landingPath.
func NewRoleRedirect(landingPath, managerPath string) RoleRedirect {
	return RoleRedirect{
		ByRole:  map[domainauth.Role]string{domainauth.RoleManager: managerPath},
		Default: landingPath,
	}
}
