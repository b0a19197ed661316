package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies a downloader error
type ErrorType string

const (
	// ErrorTypeConfiguration for configuration-level errors (bad server
	// list, unknown dialect, broken naming script)
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeUnknownServer when a ticket URL matches no configured server
	ErrorTypeUnknownServer ErrorType = "unknown_server"
	// ErrorTypeAuth when a server rejects the login
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeNetwork for connect/timeout/transport failures
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParse when a required page element is missing
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeFilesystem for directory/file I/O failures
	ErrorTypeFilesystem ErrorType = "filesystem"
	// ErrorTypeStorage for archive/persistence errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeService for service-level errors
	ErrorTypeService ErrorType = "service"
	// ErrorTypeInternal for internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// DownloaderError is a structured error with context
type DownloaderError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *DownloaderError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *DownloaderError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *DownloaderError) WithContext(key string, value interface{}) *DownloaderError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *DownloaderError) WithCause(cause error) *DownloaderError {
	e.Cause = cause
	return e
}

// NewError creates a new DownloaderError
func NewError(errorType ErrorType, code, message string) *DownloaderError {
	return &DownloaderError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *DownloaderError {
	return NewError(ErrorTypeConfiguration, code, message)
}

// NewUnknownServerError creates an unknown-server error
func NewUnknownServerError(code, message string) *DownloaderError {
	return NewError(ErrorTypeUnknownServer, code, message)
}

// NewAuthError creates an authentication error
func NewAuthError(code, message string) *DownloaderError {
	return NewError(ErrorTypeAuth, code, message)
}

// NewNetworkError creates a network error
func NewNetworkError(code, message string) *DownloaderError {
	return NewError(ErrorTypeNetwork, code, message)
}

// NewParseError creates a page parsing error
func NewParseError(code, message string) *DownloaderError {
	return NewError(ErrorTypeParse, code, message)
}

// NewFilesystemError creates a filesystem error
func NewFilesystemError(code, message string) *DownloaderError {
	return NewError(ErrorTypeFilesystem, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *DownloaderError {
	return NewError(ErrorTypeStorage, code, message)
}

// NewServiceError creates a service error
func NewServiceError(code, message string) *DownloaderError {
	return NewError(ErrorTypeService, code, message)
}

// NewInternalError creates an internal system error
func NewInternalError(code, message string) *DownloaderError {
	return NewError(ErrorTypeInternal, code, message)
}

// WrapError wraps an existing error with DownloaderError context
func WrapError(err error, errorType ErrorType, code, message string) *DownloaderError {
	return &DownloaderError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
	}
}

// IsErrorType reports whether err (or anything it wraps) is a
// DownloaderError of the given type.
func IsErrorType(err error, errorType ErrorType) bool {
	var de *DownloaderError
	if errors.As(err, &de) {
		return de.Type == errorType
	}
	return false
}

// IsAuthError reports whether err is an authentication error
func IsAuthError(err error) bool { return IsErrorType(err, ErrorTypeAuth) }

// IsUnknownServerError reports whether err is an unknown-server error
func IsUnknownServerError(err error) bool { return IsErrorType(err, ErrorTypeUnknownServer) }

// IsConfigurationError reports whether err is a configuration error
func IsConfigurationError(err error) bool { return IsErrorType(err, ErrorTypeConfiguration) }

// IsNetworkError reports whether err is a network error
func IsNetworkError(err error) bool { return IsErrorType(err, ErrorTypeNetwork) }

// IsParseError reports whether err is a parse error
func IsParseError(err error) bool { return IsErrorType(err, ErrorTypeParse) }
