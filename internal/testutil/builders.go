package testutil

import (
	domainauth "github.com/target/coffee-ui/internal/domain/auth"
)

// ProfileBuilder provides a fluent interface for building user profiles for testing.
type ProfileBuilder struct {
	p domainauth.Profile
}

// NewProfile creates a ProfileBuilder for a barista with sensible defaults.
func NewProfile() *ProfileBuilder {
	return &ProfileBuilder{
		p: domainauth.Profile{
			SSN:   "123-45-6789",
			Name:  "Test Barista",
			Email: "barista@example.com",
			Role:  domainauth.RoleBarista,
		},
	}
}

// Manager switches the profile to the manager role.
func (b *ProfileBuilder) Manager() *ProfileBuilder {
	b.p.Role = domainauth.RoleManager
	return b
}

// WithRole sets the role.
func (b *ProfileBuilder) WithRole(role domainauth.Role) *ProfileBuilder {
	b.p.Role = role
	return b
}

// WithName sets the display name.
func (b *ProfileBuilder) WithName(name string) *ProfileBuilder {
	b.p.Name = name
	return b
}

// WithEmail sets the email.
func (b *ProfileBuilder) WithEmail(email string) *ProfileBuilder {
	b.p.Email = email
	return b
}

// WithSSN sets the SSN.
func (b *ProfileBuilder) WithSSN(ssn string) *ProfileBuilder {
	b.p.SSN = ssn
	return b
}

// Build returns the built profile.
func (b *ProfileBuilder) Build() domainauth.Profile {
	return b.p
}
