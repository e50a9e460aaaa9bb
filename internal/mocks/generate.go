// Package mocks provides gomock implementations of the coffee-ui ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	authn := mocks.NewMockAuthenticator(ctrl)
//	authn.EXPECT().Me(gomock.Any(), gomock.Any()).Return(profile, nil)
package mocks

// Generate mock for Authenticator interface from internal/ports package.
// This creates MockAuthenticator with methods Login, Signup, Me.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=authenticator_mock.go github.com/target/coffee-ui/internal/ports Authenticator
