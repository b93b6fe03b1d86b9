package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found", http.StatusNotFound)
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "not found" {
		t.Errorf("expected message 'not found', got %q", err.Message)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeTimeout, "timed out", http.StatusGatewayTimeout)
	if !err.Retryable {
		t.Error("TIMEOUT should be retryable")
	}
}

func TestAppError_NotFound_Success(t *testing.T) {
	err := NotFound("app", "primepos")
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected 404, got %d", err.HTTPStatus)
	}
	if err.Details["resource"] != "app" {
		t.Errorf("expected resource=app, got %v", err.Details["resource"])
	}
	if err.Details["id"] != "primepos" {
		t.Errorf("expected id=primepos, got %v", err.Details["id"])
	}
	if !strings.Contains(err.Message, `"primepos"`) {
		t.Errorf("expected message to name the id, got %q", err.Message)
	}
}

func TestAppError_NotFound_EmptyID(t *testing.T) {
	err := NotFound("entry", "")
	if _, ok := err.Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
}

func TestAppError_CrashLoop(t *testing.T) {
	err := CrashLoop("primepos", 10)
	if err.Code != ErrCodeCrashLoop {
		t.Errorf("expected CRASH_LOOP, got %s", err.Code)
	}
	if err.Retryable {
		t.Error("crash loop should not be retryable")
	}
	if err.Details["restarts"] != 10 {
		t.Errorf("expected restarts=10, got %v", err.Details["restarts"])
	}
}

func TestAppError_WithCause_Chain(t *testing.T) {
	cause := fmt.Errorf("exec format error")
	err := ExternalServiceError("entry", nil).WithCause(cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if !strings.Contains(err.Error(), "exec format error") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
}

func TestAppError_WithDetail_NilMap(t *testing.T) {
	err := Conflict("already running")
	err.WithDetail("app", "primepos")
	if err.Details["app"] != "primepos" {
		t.Errorf("expected app=primepos, got %v", err.Details["app"])
	}
}

func TestAppError_Constructors_Table(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"service unavailable", ServiceUnavailable("primepos"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{"timeout", Timeout("readiness probe"), ErrCodeTimeout, http.StatusGatewayTimeout},
		{"conflict", Conflict("busy"), ErrCodeConflict, http.StatusConflict},
		{"invalid input", InvalidInput("instances", "must be positive"), ErrCodeInvalidInput, http.StatusBadRequest},
		{"validation", Validation("bad config"), ErrCodeInvalidInput, http.StatusBadRequest},
		{"missing field", MissingField("script"), ErrCodeMissingField, http.StatusBadRequest},
		{"internal", Internal(nil), ErrCodeInternal, http.StatusInternalServerError},
		{"external", ExternalServiceError("entry", nil), ErrCodeExternalService, http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.HTTPStatus != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, tc.err.HTTPStatus)
			}
		})
	}
}

func TestErrorCode_IsRetryableCode_Table(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeServiceUnavailable, true},
		{ErrCodeTimeout, true},
		{ErrCodeExternalService, true},
		{ErrCodeNotFound, false},
		{ErrCodeCrashLoop, false},
		{ErrCodeRateLimited, true},
		{ErrCodeInternal, false},
	}
	for _, tc := range tests {
		if got := IsRetryableCode(tc.code); got != tc.want {
			t.Errorf("IsRetryableCode(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestAppError_ToResponse_Success(t *testing.T) {
	resp := NotFound("app", "x").ToResponse()
	if resp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", resp.Error.Code)
	}
	if resp.Error.Details["id"] != "x" {
		t.Errorf("expected id detail, got %v", resp.Error.Details)
	}
}

func TestAppError_AsAppError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("launch: %w", NotFound("entry", "dist/primepos"))
	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AsAppError to unwrap")
	}
	if appErr.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", appErr.Code)
	}
	if !IsAppError(wrapped) {
		t.Error("expected IsAppError true")
	}
	if !HasCode(wrapped, ErrCodeNotFound) {
		t.Error("expected HasCode true")
	}
	if HasCode(fmt.Errorf("plain"), ErrCodeNotFound) {
		t.Error("expected HasCode false for plain errors")
	}
}
