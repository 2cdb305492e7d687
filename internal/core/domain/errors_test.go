package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("KV-TEST-1000", "test message"),
			expected: "[KV-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("KV-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[KV-TEST-1001] test message: extra info",
		},
		{
			name:     "error with cause",
			err:      NewDomainError("KV-TEST-1002", "test message").WithCause(errors.New("boom")),
			expected: "[KV-TEST-1002] test message: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("KV-TEST-1000", "message 1")
	err2 := NewDomainError("KV-TEST-1000", "message 2")
	err3 := NewDomainError("KV-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}

	decorated := ErrInvalidDuration.WithDetailsf("bad unit %q", "x")
	if !errors.Is(fmt.Errorf("set: %w", decorated), ErrInvalidDuration) {
		t.Error("decorated sentinel should match through wrapping")
	}
}

func TestDomainError_WithCause(t *testing.T) {
	cause := fmt.Errorf("root cause")
	withCause := ErrEncryptionFailure.WithCause(cause)

	if ErrEncryptionFailure.Cause != nil {
		t.Error("WithCause should not modify original error")
	}
	if !errors.Is(withCause, cause) {
		t.Error("cause should be reachable through errors.Is")
	}
	if withCause.Code != ErrEncryptionFailure.Code {
		t.Errorf("Code = %q, want %q", withCause.Code, ErrEncryptionFailure.Code)
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"domain error", ErrCircularReference, "KV-CODC-4000"},
		{"wrapped domain error", fmt.Errorf("wrapped: %w", ErrSchedulerInit), "KV-SCHD-5000"},
		{"regular error", fmt.Errorf("regular error"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrInvalidCredential, "KV-CRYP-4000") {
		t.Error("IsDomainError should return true for matching code")
	}
	if !IsDomainError(ErrInvalidCredential, "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
	if IsDomainError(errors.New("plain"), "") {
		t.Error("IsDomainError should return false for non-DomainError")
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err  *DomainError
		code string
	}{
		{ErrInvalidDuration, "KV-TTL-4000"},
		{ErrInvalidCredential, "KV-CRYP-4000"},
		{ErrEncryptionFailure, "KV-CRYP-5000"},
		{ErrDecryptionFailure, "KV-CRYP-5001"},
		{ErrCircularReference, "KV-CODC-4000"},
		{ErrUnsupportedValue, "KV-CODC-4001"},
		{ErrMalformedValue, "KV-CODC-4002"},
		{ErrSchedulerInit, "KV-SCHD-5000"},
		{ErrSchedulerCommunication, "KV-SCHD-5001"},
		{ErrStorage, "KV-STOR-5000"},
		{ErrStoreClosed, "KV-STOR-5001"},
		{ErrInvalidArgument, "KV-ARG-4000"},
	}

	seen := make(map[string]bool)
	for _, tt := range tests {
		if tt.err.Code != tt.code {
			t.Errorf("%s: code = %q, want %q", tt.err.Message, tt.err.Code, tt.code)
		}
		if seen[tt.code] {
			t.Errorf("duplicate code %q", tt.code)
		}
		seen[tt.code] = true
	}
}
