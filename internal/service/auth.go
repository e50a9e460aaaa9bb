package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	"github.com/target/coffee-ui/internal/domain/resource"
	apperrors "github.com/target/coffee-ui/internal/errors"
	"github.com/target/coffee-ui/internal/ports"
)

// Backend paths used by the auth flows.
const (
	PathSignup = "/signup"
	PathMe     = "/me"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Validator *validator.Validate // Optional: defaults to validator.New()
	Logger    *slog.Logger        // Optional: structured logger
}

// AuthService performs the backend auth requests. It holds no per-user state;
// every call runs against the caller's own API client.
type AuthService struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	v := opts.Validator
	if v == nil {
		v = validator.New()
	}
	return &AuthService{validate: v, logger: opts.Logger}
}

func (s *AuthService) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// fieldLabels maps request struct fields to their form field name and label.
var fieldLabels = map[string][2]string{
	"Username": {"email", "Email"},
	"Password": {"password", "Password"},
	"SSN":      {"ssn", "SSN"},
	"Name":     {"name", "Name"},
	"Email":    {"email", "Email"},
	"Salary":   {"salary", "Salary"},
}

// checkStruct runs the struct validation and reports the first failure as a field error.
func (s *AuthService) checkStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid request")
	}
	fe := verrs[0]
	names, ok := fieldLabels[fe.StructField()]
	if !ok {
		names = [2]string{strings.ToLower(fe.StructField()), fe.StructField()}
	}
	return apperrors.ValidationField(names[0], resource.RuleMessage(names[1], fe.Tag(), fe.Param()))
}

// Login exchanges credentials for a bearer token. It does not attach the token.
func (s *AuthService) Login(ctx context.Context, client ports.APIClient, creds domainauth.Credentials) (domainauth.TokenResponse, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if err := s.checkStruct(creds); err != nil {
		return domainauth.TokenResponse{}, err
	}

	tok, err := client.ExchangePassword(ctx, creds.Username, creds.Password)
	if err != nil {
		return domainauth.TokenResponse{}, err
	}
	if tok.AccessToken == "" {
		return domainauth.TokenResponse{}, apperrors.Internal("backend returned an empty token")
	}
	return tok, nil
}

// Signup registers a new employee and returns the issued token. It does not attach the token.
func (s *AuthService) Signup(ctx context.Context, client ports.APIClient, req domainauth.SignupRequest) (domainauth.SignupResponse, error) {
	req.SSN = strings.TrimSpace(req.SSN)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.checkStruct(req); err != nil {
		return domainauth.SignupResponse{}, err
	}

	var resp domainauth.SignupResponse
	if err := client.Post(ctx, PathSignup, req, &resp); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.ErrCodeConflict {
			return domainauth.SignupResponse{}, &apperrors.AppError{
				Code:    apperrors.ErrCodeValidation,
				Message: appErr.Message,
				Field:   appErr.Field,
				Status:  appErr.Status,
			}
		}
		return domainauth.SignupResponse{}, err
	}
	if resp.AccessToken == "" {
		return domainauth.SignupResponse{}, apperrors.Internal("backend returned an empty token")
	}
	s.log().Debug("signup accepted", "has_user", resp.User != nil)
	return resp, nil
}

// Me fetches the profile of the token currently attached to client.
func (s *AuthService) Me(ctx context.Context, client ports.APIClient) (domainauth.Profile, error) {
	var p domainauth.Profile
	if err := client.Get(ctx, PathMe, nil, &p); err != nil {
		return domainauth.Profile{}, err
	}
	p.Role = domainauth.ParseRole(string(p.Role))
	if !p.Role.Valid() {
		s.log().Warn("profile has unknown role", "role", p.Role.String())
	}
	return p, nil
}
