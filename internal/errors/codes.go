package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents internal error codes for replication operations
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Client errors (4xx equivalent)
	ErrCodeInvalidArgument ErrorCode = 1000
	ErrCodeNotFound        ErrorCode = 1001
	ErrCodeAlreadyExists   ErrorCode = 1002
	ErrCodeNoReplica       ErrorCode = 1003
	ErrCodeKeyTooLarge     ErrorCode = 1004
	ErrCodeValueTooLarge   ErrorCode = 1005

	// Server-side errors (5xx equivalent, except FailedVerification and
	// Aborted, which ToHTTPStatus maps to 412 and 408)
	ErrCodeInternal           ErrorCode = 2000
	ErrCodeTimeout            ErrorCode = 2001
	ErrCodeNoDcs              ErrorCode = 2002
	ErrCodeFailedVerification ErrorCode = 2003
	ErrCodeBackend            ErrorCode = 2004
	ErrCodeAborted            ErrorCode = 2005
)

// ReplicationError is a structured error with code and context
type ReplicationError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface
func (e *ReplicationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *ReplicationError) Unwrap() error {
	return e.Cause
}

// ToHTTPStatus maps internal error codes to HTTP status codes
func (e *ReplicationError) ToHTTPStatus() int {
	switch e.Code {
	case ErrCodeOK:
		return http.StatusOK
	case ErrCodeInvalidArgument, ErrCodeKeyTooLarge, ErrCodeValueTooLarge:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodeNoReplica:
		return http.StatusNotFound
	case ErrCodeAlreadyExists:
		return http.StatusConflict
	case ErrCodeFailedVerification:
		return http.StatusPreconditionFailed
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeNoDcs:
		return http.StatusServiceUnavailable
	case ErrCodeAborted:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new ReplicationError
func New(code ErrorCode, message string, cause error) *ReplicationError {
	return &ReplicationError{Code: code, Message: message, Cause: cause}
}

// Convenience constructors for common errors

func InvalidArgument(message string) *ReplicationError {
	return New(ErrCodeInvalidArgument, message, nil)
}

func NotFound(key string) *ReplicationError {
	return New(ErrCodeNotFound, fmt.Sprintf("key not found: %s", key), nil)
}

func AlreadyExists(key string) *ReplicationError {
	return New(ErrCodeAlreadyExists, fmt.Sprintf("key already exists: %s", key), nil)
}

func NoReplica(key string) *ReplicationError {
	return New(ErrCodeNoReplica, fmt.Sprintf("no local replica for key: %s", key), nil)
}

func KeyTooLarge(size, maxSize int) *ReplicationError {
	return New(ErrCodeKeyTooLarge, fmt.Sprintf("key size %d exceeds maximum %d", size, maxSize), nil)
}

func ValueTooLarge(size, maxSize int) *ReplicationError {
	return New(ErrCodeValueTooLarge, fmt.Sprintf("value size %d exceeds maximum %d", size, maxSize), nil)
}

func Timeout(target string, cause error) *ReplicationError {
	return New(ErrCodeTimeout, fmt.Sprintf("rpc to %s exceeded deadline", target), cause)
}

func NoDcs(key string) *ReplicationError {
	return New(ErrCodeNoDcs, fmt.Sprintf("no reachable replica holders for key: %s", key), nil)
}

func FailedVerification(key string) *ReplicationError {
	return New(ErrCodeFailedVerification, fmt.Sprintf("conditional predicate failed for key: %s", key), nil)
}

func Backend(message string, cause error) *ReplicationError {
	return New(ErrCodeBackend, message, cause)
}

func Internal(message string, cause error) *ReplicationError {
	return New(ErrCodeInternal, message, cause)
}

func Aborted(key string, cause error) *ReplicationError {
	return New(ErrCodeAborted, fmt.Sprintf("request aborted for key: %s", key), cause)
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var re *ReplicationError
	if errors.As(err, &re) {
		return re.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// HTTPStatus maps any error to an HTTP status code
func HTTPStatus(err error) int {
	var re *ReplicationError
	if errors.As(err, &re) {
		return re.ToHTTPStatus()
	}
	return http.StatusInternalServerError
}

// FromHTTPStatus reconstructs the error kind a peer reported over the wire
func FromHTTPStatus(status int, key string) *ReplicationError {
	switch status {
	case http.StatusNotFound:
		return NoReplica(key)
	case http.StatusConflict:
		return AlreadyExists(key)
	case http.StatusGatewayTimeout:
		return Timeout(key, nil)
	case http.StatusServiceUnavailable:
		return NoDcs(key)
	default:
		return Internal(fmt.Sprintf("peer returned status %d", status), nil)
	}
}
