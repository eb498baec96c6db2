package errors

import (
	"fmt"
	"strings"
)

// ErrorType categorizes pipeline failures per the ingestion error taxonomy.
type ErrorType int

const (
	// ErrorTypeStructural - malformed entity missing required fields; always
	// fatal, raised before any store write.
	ErrorTypeStructural ErrorType = iota
	// ErrorTypeReferential - dangling relationship endpoint outside the soft
	// gate exemptions; logged, non-fatal unless strict mode escalates it.
	ErrorTypeReferential
	// ErrorTypeStore - an upsert, schema, or migration call against the graph
	// store failed.
	ErrorTypeStore
	// ErrorTypeConfig - missing or invalid run configuration.
	ErrorTypeConfig
	// ErrorTypeSanitization - a single unsupported property value was dropped;
	// the entity import continues without it.
	ErrorTypeSanitization
	// ErrorTypeInternal - unexpected internal state.
	ErrorTypeInternal
)

// Severity represents how critical an error is.
type Severity int

const (
	// SeverityWarning - logged, pipeline proceeds.
	SeverityWarning Severity = iota
	// SeverityError - fails the current batch or stage.
	SeverityError
	// SeverityFatal - aborts the run.
	SeverityFatal
)

// Error is a structured pipeline error with context.
type Error struct {
	Type     ErrorType
	Severity Severity
	Message  string
	Cause    error
	Context  map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Is matches on error type, so callers can use errors.Is with a sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal reports whether this error should abort the run.
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityFatal
}

// DetailedString renders the error with its context for operator output.
func (e *Error) DetailedString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", typeString(e.Type), e.Message))
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	for k, v := range e.Context {
		sb.WriteString(fmt.Sprintf("\n  %s: %v", k, v))
	}
	return sb.String()
}

func typeString(t ErrorType) string {
	switch t {
	case ErrorTypeStructural:
		return "STRUCTURAL"
	case ErrorTypeReferential:
		return "REFERENTIAL"
	case ErrorTypeStore:
		return "STORE"
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeSanitization:
		return "SANITIZATION"
	case ErrorTypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// New creates a structured error.
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{Type: errType, Severity: severity, Message: message}
}

// Wrap wraps an existing error. Returns nil when err is nil.
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Severity: severity, Message: message, Cause: err}
}

// StructuralError creates a fatal structural validation error.
func StructuralError(message string) *Error {
	return New(ErrorTypeStructural, SeverityFatal, message)
}

// StructuralErrorf creates a fatal structural validation error with formatting.
func StructuralErrorf(format string, args ...any) *Error {
	return New(ErrorTypeStructural, SeverityFatal, fmt.Sprintf(format, args...))
}

// ReferentialWarning creates a non-fatal dangling-endpoint warning.
func ReferentialWarning(message string) *Error {
	return New(ErrorTypeReferential, SeverityWarning, message)
}

// ReferentialWarningf creates a non-fatal dangling-endpoint warning with formatting.
func ReferentialWarningf(format string, args ...any) *Error {
	return New(ErrorTypeReferential, SeverityWarning, fmt.Sprintf(format, args...))
}

// StoreError wraps a graph store write failure.
func StoreError(err error, message string) *Error {
	return Wrap(err, ErrorTypeStore, SeverityError, message)
}

// StoreErrorf wraps a graph store write failure with formatting.
func StoreErrorf(err error, format string, args ...any) *Error {
	return Wrap(err, ErrorTypeStore, SeverityError, fmt.Sprintf(format, args...))
}

// ConfigError creates a fatal configuration error.
func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityFatal, message)
}

// ConfigErrorf creates a fatal configuration error with formatting.
func ConfigErrorf(format string, args ...any) *Error {
	return New(ErrorTypeConfig, SeverityFatal, fmt.Sprintf(format, args...))
}

// SanitizationSkip records a dropped property value. Never fatal.
func SanitizationSkip(message string) *Error {
	return New(ErrorTypeSanitization, SeverityWarning, message)
}

// InternalErrorf creates a fatal internal error with formatting.
func InternalErrorf(format string, args ...any) *Error {
	return New(ErrorTypeInternal, SeverityFatal, fmt.Sprintf(format, args...))
}

// IsFatal checks whether an arbitrary error should stop the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.IsFatal()
	}
	return false
}

// GetType returns the taxonomy type of an error.
func GetType(err error) ErrorType {
	if e, ok := err.(*Error); ok {
		return e.Type
	}
	return ErrorTypeInternal
}
