package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "booking not found",
			},
			expected: "NOT_FOUND: booking not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "finalize failed",
				Err:     errors.New("connection reset"),
			},
			expected: "INTERNAL_ERROR: finalize failed (caused by: connection reset)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("write conflict")
	appErr := Internal("transaction aborted", cause)

	if unwrapped := errors.Unwrap(appErr); unwrapped != cause {
		t.Errorf("Unwrap() should return the original error")
	}
	if !errors.Is(appErr, cause) {
		t.Errorf("errors.Is should match the wrapped cause")
	}
}

func TestIsAppError(t *testing.T) {
	if !IsAppError(Conflict("lock held")) {
		t.Error("expected IsAppError to report true for *AppError")
	}
	if IsAppError(errors.New("plain")) {
		t.Error("expected IsAppError to report false for plain error")
	}
	// Wrapped AppErrors still count.
	wrapped := fmt.Errorf("outer: %w", InvalidInput("bad id"))
	if !IsAppError(wrapped) {
		t.Error("expected IsAppError to unwrap and report true")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFoundWithID("Booking", "abc123")
	if got := AsAppError(appErr); got != appErr {
		t.Error("AsAppError should return the same *AppError")
	}

	plain := errors.New("boom")
	converted := AsAppError(plain)
	if converted.Code != CodeInternal {
		t.Errorf("expected code %s, got %s", CodeInternal, converted.Code)
	}
	if converted.Err != plain {
		t.Error("expected converted error to wrap the original")
	}
}
