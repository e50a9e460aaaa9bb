package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNotFound,
				Message: "resource not found",
			},
			want: "resource not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to process",
				Cause:   errors.New("underlying error"),
			},
			want: "failed to process: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:    ErrCodeInternal,
		Message: "wrapped error",
		Cause:   cause,
	}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestConstructors_KeepMessageVerbatim(t *testing.T) {
	msg := "discount is 100% off"
	for _, err := range []*AppError{
		Authentication(msg), Forbidden(msg), NotFound(msg), Conflict(msg), Validation(msg), Internal(msg),
	} {
		if err.Message != msg {
			t.Errorf("Message = %q, want %q", err.Message, msg)
		}
	}
	if got := Validationf("%s is required", "name").Message; got != "name is required" {
		t.Errorf("Validationf Message = %q", got)
	}
}

func TestInvalidCredentials_DefaultMessage(t *testing.T) {
	err := InvalidCredentials("")
	if !IsAuthentication(err) {
		t.Fatalf("expected authentication code, got %v", err.Code)
	}
	if err.Message != "Invalid credentials" {
		t.Errorf("InvalidCredentials().Message = %q", err.Message)
	}
}

func TestCodeForStatus(t *testing.T) {
	tests := map[int]ErrorCode{
		400: ErrCodeValidation,
		401: ErrCodeAuthentication,
		403: ErrCodeForbidden,
		404: ErrCodeNotFound,
		409: ErrCodeConflict,
		422: ErrCodeValidation,
		500: ErrCodeInternal,
		502: ErrCodeInternal,
		504: ErrCodeTimeout,
	}
	for status, want := range tests {
		if got := CodeForStatus(status); got != want {
			t.Errorf("CodeForStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestFromStatus_KeepsDetail(t *testing.T) {
	err := FromStatus(400, "Email already registered")
	if !IsValidation(err) {
		t.Fatalf("expected validation, got %v", err.Code)
	}
	if err.Message != "Email already registered" || err.Status != 400 {
		t.Errorf("unexpected error %+v", err)
	}

	fallback := FromStatus(401, "")
	if fallback.Message != "not authenticated" {
		t.Errorf("unexpected fallback message %q", fallback.Message)
	}
}

func TestFromTransport(t *testing.T) {
	if FromTransport(nil) != nil {
		t.Fatal("expected nil for nil error")
	}

	opErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	if got := FromTransport(fmt.Errorf("get /me: %w", opErr)); !IsNetwork(got) {
		t.Errorf("expected network, got %v", got.Code)
	}
	if got := FromTransport(context.DeadlineExceeded); !IsTimeout(got) {
		t.Errorf("expected timeout, got %v", got.Code)
	}
	if got := FromTransport(context.Canceled); !IsCanceled(got) {
		t.Errorf("expected canceled, got %v", got.Code)
	}

	existing := Validation("bad")
	if got := FromTransport(fmt.Errorf("wrapped: %w", existing)); got != existing {
		t.Errorf("expected existing AppError to be returned unchanged")
	}
}

func TestIsAuthFailure(t *testing.T) {
	if !IsAuthFailure(Authentication("expired")) {
		t.Error("authentication should be an auth failure")
	}
	if !IsAuthFailure(fmt.Errorf("wrap: %w", Forbidden("nope"))) {
		t.Error("wrapped forbidden should be an auth failure")
	}
	if IsAuthFailure(Validation("bad")) {
		t.Error("validation is not an auth failure")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
	cause := errors.New("boom")
	err := Wrapf(cause, ErrCodeInternal, "load %s", "menu")
	if err.Message != "load menu" || !errors.Is(err, cause) {
		t.Errorf("unexpected wrap result %+v", err)
	}
}

func TestGetCodeAndField(t *testing.T) {
	err := ValidationField("email", "email is required")
	if GetCode(err) != ErrCodeValidation {
		t.Errorf("GetCode() = %v", GetCode(err))
	}
	if GetField(err) != "email" {
		t.Errorf("GetField() = %v", GetField(err))
	}
	if GetCode(errors.New("plain")) != "" || GetField(errors.New("plain")) != "" {
		t.Error("plain errors carry no code or field")
	}
}

func TestMessage(t *testing.T) {
	if got := Message(NotFoundf("item %q not found", "latte"), "x"); got != `item "latte" not found` {
		t.Errorf("Message() = %q", got)
	}
	if got := Message(errors.New("plain"), "fallback"); got != "fallback" {
		t.Errorf("Message() = %q", got)
	}
}
