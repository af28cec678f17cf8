package foundation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a typed error classification.
type ErrorCode string

const (
	// Core error codes
	ErrorCodeConfig     ErrorCode = "config"
	ErrorCodeValidation ErrorCode = "validation"
	ErrorCodeProbe      ErrorCode = "probe"
	ErrorCodeState      ErrorCode = "state"
	ErrorCodeInit       ErrorCode = "init"
	ErrorCodeFilesystem ErrorCode = "filesystem"
	ErrorCodeLaunch     ErrorCode = "launch"
	ErrorCodeBuild      ErrorCode = "build"
	ErrorCodeRoster     ErrorCode = "roster"
	ErrorCodeJournal    ErrorCode = "journal"
	ErrorCodeEvents     ErrorCode = "events"
	ErrorCodeExternal   ErrorCode = "external"
	ErrorCodeInternal   ErrorCode = "internal"
)

// Severity indicates the importance/impact of an error.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
	SeverityFatal    Severity = "fatal"
)

// ClassifiedError provides structured error information with context.
// Fatal errors abort the whole bootstrap; warnings are tolerated and logged.
type ClassifiedError struct {
	Code      ErrorCode `json:"code"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Context   Fields    `json:"context,omitempty"`
	Cause     error     `json:"cause,omitempty"`
	Component string    `json:"component,omitempty"`
	Retryable bool      `json:"retryable"`
}

// Fields represents structured context data.
type Fields map[string]any

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	var parts []string

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Component))
	}

	parts = append(parts, fmt.Sprintf("code=%s", e.Code), e.Message)

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether the error should abort the whole bootstrap.
func (e *ClassifiedError) IsFatal() bool {
	return e.Severity == SeverityFatal
}

// IsRetryable returns whether the error can be retried.
func (e *ClassifiedError) IsRetryable() bool {
	return e.Retryable
}

// ErrorBuilder provides a fluent interface for creating classified errors.
type ErrorBuilder struct {
	err *ClassifiedError
}

// NewError creates a new error builder.
func NewError(code ErrorCode, message string) *ErrorBuilder {
	return &ErrorBuilder{
		err: &ClassifiedError{
			Code:      code,
			Severity:  SeverityError,
			Message:   message,
			Context:   make(Fields),
			Retryable: false,
		},
	}
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity Severity) *ErrorBuilder {
	b.err.Severity = severity
	return b
}

// WithCause sets the underlying cause.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.err.Cause = cause
	return b
}

// WithContext adds context fields.
func (b *ErrorBuilder) WithContext(fields Fields) *ErrorBuilder {
	for k, v := range fields {
		b.err.Context[k] = v
	}
	return b
}

// WithComponent sets the component context.
func (b *ErrorBuilder) WithComponent(component string) *ErrorBuilder {
	b.err.Component = component
	return b
}

// Retryable marks the error as retryable.
func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	b.err.Retryable = true
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	b.err.Severity = SeverityFatal
	return b
}

// Warning sets the severity to warning.
func (b *ErrorBuilder) Warning() *ErrorBuilder {
	b.err.Severity = SeverityWarning
	return b
}

// Build returns the constructed error.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return b.err
}

// Predefined error constructors for common cases

// ConfigError is fatal: the orchestrator must not start on bad configuration.
func ConfigError(message string) *ErrorBuilder {
	return NewError(ErrorCodeConfig, message).Fatal()
}

func ValidationError(message string) *ErrorBuilder {
	return NewError(ErrorCodeValidation, message).WithSeverity(SeverityWarning)
}

// ProbeError is retryable while attempts remain; exhaustion is decided by the caller.
func ProbeError(message string) *ErrorBuilder {
	return NewError(ErrorCodeProbe, message).Retryable()
}

// StateError covers unexpected database state codes; always fatal.
func StateError(message string) *ErrorBuilder {
	return NewError(ErrorCodeState, message).Fatal()
}

func InitError(message string) *ErrorBuilder {
	return NewError(ErrorCodeInit, message).Fatal()
}

func FilesystemError(message string) *ErrorBuilder {
	return NewError(ErrorCodeFilesystem, message).WithSeverity(SeverityError)
}

func LaunchError(message string) *ErrorBuilder {
	return NewError(ErrorCodeLaunch, message).Fatal()
}

// BuildError is per-pack: it fails one pack's build without aborting siblings.
func BuildError(message string) *ErrorBuilder {
	return NewError(ErrorCodeBuild, message)
}

func RosterError(message string) *ErrorBuilder {
	return NewError(ErrorCodeRoster, message).WithSeverity(SeverityWarning)
}

func JournalError(message string) *ErrorBuilder {
	return NewError(ErrorCodeJournal, message).WithSeverity(SeverityWarning)
}

func EventsError(message string) *ErrorBuilder {
	return NewError(ErrorCodeEvents, message).WithSeverity(SeverityWarning)
}

func ExternalError(message string) *ErrorBuilder {
	return NewError(ErrorCodeExternal, message).Retryable()
}

func InternalError(message string) *ErrorBuilder {
	return NewError(ErrorCodeInternal, message).WithSeverity(SeverityCritical)
}

// IsErrorCode checks if an error has a specific error code.
func IsErrorCode(err error, code ErrorCode) bool {
	var classifiedErr *ClassifiedError
	if AsClassified(err, &classifiedErr) {
		return classifiedErr.Code == code
	}
	return false
}

// AsClassified extracts a ClassifiedError from an error chain.
func AsClassified(err error, target **ClassifiedError) bool {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		*target = classified
		return true
	}
	return false
}

// IsFatal reports whether any error in the chain is classified fatal.
// Unclassified errors are treated as non-fatal.
func IsFatal(err error) bool {
	var classified *ClassifiedError
	if AsClassified(err, &classified) {
		return classified.IsFatal()
	}
	return false
}
