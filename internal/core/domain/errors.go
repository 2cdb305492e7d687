// Package domain defines the core domain models for stashkv.
package domain

import (
	"errors"
	"fmt"
)

// DomainError is a failure carrying a stable, machine-readable code.
// Codes follow KV-<AREA>-<NNNN>, where the first digit of the number
// separates caller mistakes (4xxx) from runtime failures (5xxx).
type DomainError struct {
	Code    string // Error code (e.g., "KV-TTL-4000")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError with the same code, so sentinels compare
// equal to their decorated copies.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Expiration Errors (TTL)
// ============================================================================

var (
	// ErrInvalidDuration indicates a ttl or expires value that cannot be parsed.
	ErrInvalidDuration = NewDomainError("KV-TTL-4000", "invalid duration")
)

// ============================================================================
// Encryption Errors (CRYP)
// ============================================================================

var (
	// ErrInvalidCredential indicates an empty password or salt.
	ErrInvalidCredential = NewDomainError("KV-CRYP-4000", "invalid credential")

	// ErrEncryptionFailure indicates a value could not be encrypted; the
	// record is not persisted.
	ErrEncryptionFailure = NewDomainError("KV-CRYP-5000", "encryption failed")

	// ErrDecryptionFailure indicates a stored envelope could not be opened.
	ErrDecryptionFailure = NewDomainError("KV-CRYP-5001", "decryption failed")
)

// ============================================================================
// Codec Errors (CODC)
// ============================================================================

var (
	// ErrCircularReference indicates the same container was reached twice
	// while encoding a single value.
	ErrCircularReference = NewDomainError("KV-CODC-4000", "circular reference")

	// ErrUnsupportedValue indicates a value the codec has no representation for.
	ErrUnsupportedValue = NewDomainError("KV-CODC-4001", "unsupported value")

	// ErrMalformedValue indicates a tagged value that cannot be decoded.
	ErrMalformedValue = NewDomainError("KV-CODC-4002", "malformed encoded value")
)

// ============================================================================
// Scheduler Errors (SCHD)
// ============================================================================

var (
	// ErrSchedulerInit indicates the expiration worker could not start.
	ErrSchedulerInit = NewDomainError("KV-SCHD-5000", "scheduler initialization failed")

	// ErrSchedulerCommunication indicates a message could not be delivered
	// to, or was not answered by, the expiration worker.
	ErrSchedulerCommunication = NewDomainError("KV-SCHD-5001", "scheduler communication failed")
)

// ============================================================================
// Storage and Argument Errors (STOR, ARG)
// ============================================================================

var (
	// ErrStorage indicates a failure of the underlying object store.
	ErrStorage = NewDomainError("KV-STOR-5000", "storage error")

	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = NewDomainError("KV-STOR-5001", "store closed")

	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("KV-ARG-4000", "invalid argument")
)
