package service

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	apperrors "github.com/target/coffee-ui/internal/errors"
	mockauth "github.com/target/coffee-ui/internal/mocks/auth"
)

func TestAuthService_Login_Validates(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{})
	client := &mockauth.FakeClient{}

	_, err := svc.Login(context.Background(), client, domainauth.Credentials{Username: "  ", Password: "pw"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "email", apperrors.GetField(err))
	assert.Equal(t, "Email is required.", apperrors.Message(err, ""))
	assert.Empty(t, client.Calls(), "no request is sent for invalid input")
}

func TestAuthService_Login_ExchangesTrimmedUsername(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{})
	var gotUser string
	client := &mockauth.FakeClient{
		ExchangeFunc: func(_ context.Context, username, _ string) (domainauth.TokenResponse, error) {
			gotUser = username
			return domainauth.TokenResponse{AccessToken: "tok", TokenType: "bearer"}, nil
		},
	}

	tok, err := svc.Login(context.Background(), client, domainauth.Credentials{Username: " a@b.com ", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)
	assert.Equal(t, "a@b.com", gotUser)
	assert.False(t, client.Authorized(), "login does not attach the token")
}

func TestAuthService_Login_PropagatesRejection(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{})
	client := &mockauth.FakeClient{
		ExchangeFunc: func(context.Context, string, string) (domainauth.TokenResponse, error) {
			return domainauth.TokenResponse{}, apperrors.InvalidCredentials("")
		},
	}
	_, err := svc.Login(context.Background(), client, domainauth.Credentials{Username: "a@b.com", Password: "bad"})
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))
	assert.Equal(t, "Invalid credentials", apperrors.Message(err, ""))
}

func TestAuthService_Login_EmptyToken(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{})
	client := &mockauth.FakeClient{
		ExchangeFunc: func(context.Context, string, string) (domainauth.TokenResponse, error) {
			return domainauth.TokenResponse{}, nil
		},
	}
	_, err := svc.Login(context.Background(), client, domainauth.Credentials{Username: "a@b.com", Password: "pw"})
	assert.True(t, apperrors.IsInternal(err))
}

func validSignup() domainauth.SignupRequest {
	return domainauth.SignupRequest{SSN: "123-45-6789", Name: "Bo", Email: "bo@example.com", Salary: 10, Password: "pw"}
}

func TestAuthService_Signup(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{})
	var gotPath string
	var gotBody domainauth.SignupRequest
	client := &mockauth.FakeClient{
		PostFunc: func(_ context.Context, path string, body, out any) error {
			gotPath = path
			gotBody, _ = body.(domainauth.SignupRequest)
			return mockauth.Respond(out, map[string]any{"access_token": "tok", "token_type": "bearer"})
		},
	}

	resp, err := svc.Signup(context.Background(), client, validSignup())
	require.NoError(t, err)
	assert.Equal(t, PathSignup, gotPath)
	assert.Equal(t, "bo@example.com", gotBody.Email)
	assert.Equal(t, "tok", resp.AccessToken)
	assert.Nil(t, resp.User)
}

func TestAuthService_Signup_LocalValidation(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{})
	client := &mockauth.FakeClient{}

	req := validSignup()
	req.Email = "nope"
	_, err := svc.Signup(context.Background(), client, req)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "email", apperrors.GetField(err))

	req = validSignup()
	req.Salary = -5
	_, err = svc.Signup(context.Background(), client, req)
	assert.Equal(t, "Salary must be at least 0.", apperrors.Message(err, ""))
	assert.Empty(t, client.Calls())
}

func TestAuthService_Signup_BackendRejections(t *testing.T) {
	tests := []struct {
		name    string
		backend error
		wantMsg string
	}{
		{"duplicate email", apperrors.FromStatus(400, "Email already registered"), "Email already registered"},
		{"conflict", apperrors.FromStatus(409, "SSN taken"), "SSN taken"},
		{"unprocessable", apperrors.FromStatus(422, "salary: value is not a valid float"), "salary: value is not a valid float"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(AuthServiceOptions{})
			client := &mockauth.FakeClient{
				PostFunc: func(context.Context, string, any, any) error { return tt.backend },
			}
			_, err := svc.Signup(context.Background(), client, validSignup())
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.wantMsg, apperrors.Message(err, ""))
		})
	}
}

func TestAuthService_Me_NormalizesRole(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{})
	client := &mockauth.FakeClient{
		GetFunc: func(_ context.Context, path string, _ url.Values, out any) error {
			require.Equal(t, PathMe, path)
			return mockauth.Respond(out, map[string]any{"ssn": "1", "name": "Ada", "email": "a@b.com", "salary": 1, "role": " Manager "})
		},
	}
	p, err := svc.Me(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleManager, p.Role)
	assert.True(t, p.IsManager())
}
