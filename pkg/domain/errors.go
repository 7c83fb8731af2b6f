package domain

import (
	"errors"
	"fmt"
)

// DomainError is a store error with a stable, machine-readable code.
// The code survives the wire protocol unchanged, so a remote caller
// can match the same sentinel an embedded caller would.
type DomainError struct {
	Code    string // Error code (e.g., "CS-KEY-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError carrying the same code.
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
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
// The cause's message becomes the details when none are set.
func (e *DomainError) Wrap(cause error) *DomainError {
	out := e.WithCause(cause)
	if out.Details == "" && cause != nil {
		out.Details = cause.Error()
	}
	return out
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
// Key / data errors
// ============================================================================

var (
	// ErrNotFound indicates the persona, app or key does not exist.
	ErrNotFound = NewDomainError("CS-KEY-4040", "not found")

	// ErrInvalidArgument indicates a malformed persona, app or key name.
	ErrInvalidArgument = NewDomainError("CS-ARG-4000", "invalid argument")

	// ErrInvalidValue indicates a value that cannot be serialized.
	ErrInvalidValue = NewDomainError("CS-ARG-4001", "invalid value")
)

// ============================================================================
// Storage errors
// ============================================================================

var (
	// ErrStorageIO indicates the persistence medium failed.
	ErrStorageIO = NewDomainError("CS-STOR-5001", "storage io error")

	// ErrCorruption indicates persisted data could not be parsed.
	ErrCorruption = NewDomainError("CS-STOR-5002", "corrupt snapshot")
)

// ============================================================================
// Vault errors
// ============================================================================

var (
	// ErrAuthenticationFailure indicates a vault envelope failed verification.
	// Wrong keys, tampering and non-envelope values all map here.
	ErrAuthenticationFailure = NewDomainError("CS-VAULT-4010", "authentication failure")

	// ErrInvalidVaultKey indicates a master key of the wrong length.
	ErrInvalidVaultKey = NewDomainError("CS-VAULT-4000", "invalid vault key")
)

// ============================================================================
// Protocol errors
// ============================================================================

var (
	// ErrProtocol indicates a malformed request or response.
	ErrProtocol = NewDomainError("CS-PROTO-4000", "protocol error")

	// ErrUnsupportedOperation indicates an operation name the peer does not know.
	ErrUnsupportedOperation = NewDomainError("CS-PROTO-4050", "unsupported operation")
)

// ============================================================================
// System / transport errors
// ============================================================================

var (
	// ErrInternal indicates an unexpected server-side failure.
	ErrInternal = NewDomainError("CS-SYS-5000", "internal error")

	// ErrRateLimited indicates the connection exceeded its request rate.
	ErrRateLimited = NewDomainError("CS-SYS-4290", "too many requests")

	// ErrServerBusy indicates the server refused the connection at capacity.
	ErrServerBusy = NewDomainError("CS-SYS-5030", "server busy")

	// ErrClosed indicates the store or client has been closed.
	ErrClosed = NewDomainError("CS-SYS-5031", "closed")

	// ErrDisconnected indicates no connection to the server is available.
	ErrDisconnected = NewDomainError("CS-NET-5030", "disconnected")

	// ErrTimeout indicates no response arrived within the deadline.
	ErrTimeout = NewDomainError("CS-NET-5040", "timeout")
)

var byCode = map[string]*DomainError{}

func init() {
	for _, e := range []*DomainError{
		ErrNotFound, ErrInvalidArgument, ErrInvalidValue,
		ErrStorageIO, ErrCorruption,
		ErrAuthenticationFailure, ErrInvalidVaultKey,
		ErrProtocol, ErrUnsupportedOperation,
		ErrInternal, ErrRateLimited, ErrServerBusy, ErrClosed,
		ErrDisconnected, ErrTimeout,
	} {
		byCode[e.Code] = e
	}
}

// FromCode rebuilds a DomainError received from a peer. Unknown codes
// are kept as-is with a generic message.
func FromCode(code, details string) *DomainError {
	if e, ok := byCode[code]; ok {
		return e.WithDetails(details)
	}
	return NewDomainError(code, "remote error").WithDetails(details)
}

// IsTransport reports whether err is a transport-level failure, the only
// class of error a client may retry.
func IsTransport(err error) bool {
	return errors.Is(err, ErrDisconnected) || errors.Is(err, ErrTimeout)
}
