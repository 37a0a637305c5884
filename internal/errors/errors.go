// Package errors provides centralized error definitions and error handling
// utilities for orchard. It defines domain-specific errors, semantic error
// types, error constructors with context wrapping, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures of a specific subsystem:
//   - ChainError: a search chain failed (worker failure); aborts the run
//   - ChannelError: progress reporting degraded; never fails a run
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid run, model, or dataset parameters
//
// # Usage
//
//	err := errors.NewChainError("search failed", cause).WithChain(1).WithSeed(9)
//
//	if errors.Is(err, errors.ErrSearchFailed) { ... }
//
//	var chainErr *errors.ChainError
//	if errors.As(err, &chainErr) {
//	    fmt.Println(chainErr.ChainIndex)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Chain-related sentinel errors
var (
	// ErrSearchFailed matches every ChainError: some chain's search returned an error.
	ErrSearchFailed = New("search failed")
	// ErrWorkerPanic indicates that a search panicked inside its worker.
	ErrWorkerPanic = New("search worker panicked")
	// ErrRunAborted indicates that the run stopped before every chain completed.
	ErrRunAborted = New("run aborted")
)

// Progress-related sentinel errors
var (
	// ErrProgressMismatch indicates the observed progress units differ from the expected total.
	ErrProgressMismatch = New("progress count mismatch")
	// ErrIndicatorFailed indicates the progress indicator stopped working.
	ErrIndicatorFailed = New("progress indicator failed")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrInvalidDataset indicates that read-count data could not be used.
	ErrInvalidDataset = New("invalid dataset")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// OrchardError is the base interface for all orchard errors.
type OrchardError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the message is safe to show to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// formatPrefixed renders "<prefix> [k=v, ...]: message: cause".
func formatPrefixed(prefix string, parts []string, message string, cause error) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ChainError reports that one chain of an ensemble run failed. The original
// error raised by the search is preserved as the cause.
//
// Example:
//
//	err := errors.NewChainError("search failed", cause).WithChain(1).WithSeed(9)
//	fmt.Println(err) // "chain error [chain=1, seed=9]: search failed: bad state"
type ChainError struct {
	baseError
	ChainIndex int
	Seed       uint64
	hasSeed    bool
	Phase      string
}

// NewChainError creates a new ChainError. ChainIndex is -1 until set.
func NewChainError(message string, cause error) *ChainError {
	return &ChainError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		ChainIndex: -1,
	}
}

// WithChain records which chain failed.
func (e *ChainError) WithChain(index int) *ChainError {
	e.ChainIndex = index
	return e
}

// WithSeed records the derived seed of the failed chain.
func (e *ChainError) WithSeed(seed uint64) *ChainError {
	e.Seed = seed
	e.hasSeed = true
	return e
}

// WithPhase records where in the chain's lifecycle the failure happened
// ("setup", "search").
func (e *ChainError) WithPhase(phase string) *ChainError {
	e.Phase = phase
	return e
}

// WithSeverity sets the error severity.
func (e *ChainError) WithSeverity(s Severity) *ChainError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *ChainError) Error() string {
	var parts []string
	if e.ChainIndex >= 0 {
		parts = append(parts, fmt.Sprintf("chain=%d", e.ChainIndex))
	}
	if e.hasSeed {
		parts = append(parts, fmt.Sprintf("seed=%d", e.Seed))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}
	return formatPrefixed("chain error", parts, e.message, e.cause)
}

// Is matches any *ChainError and ErrSearchFailed, then defers to the cause.
func (e *ChainError) Is(target error) bool {
	if _, ok := target.(*ChainError); ok {
		return true
	}
	if target == ErrSearchFailed {
		return true
	}
	return false
}

// ChannelError reports degraded progress reporting. Progress loss is
// tolerated, so these are logged rather than returned from a run.
type ChannelError struct {
	baseError
	Expected int
	Observed int
}

// NewChannelError creates a new ChannelError with warning severity.
func NewChannelError(message string, cause error) *ChannelError {
	return &ChannelError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: false,
		},
		Expected: -1,
		Observed: -1,
	}
}

// WithCounts records expected and observed progress units.
func (e *ChannelError) WithCounts(expected, observed int) *ChannelError {
	e.Expected = expected
	e.Observed = observed
	return e
}

// Error returns the formatted error message.
func (e *ChannelError) Error() string {
	var parts []string
	if e.Expected >= 0 {
		parts = append(parts, fmt.Sprintf("expected=%d", e.Expected))
	}
	if e.Observed >= 0 {
		parts = append(parts, fmt.Sprintf("observed=%d", e.Observed))
	}
	return formatPrefixed("channel error", parts, e.message, e.cause)
}

// Is matches any *ChannelError.
func (e *ChannelError) Is(target error) bool {
	_, ok := target.(*ChannelError)
	return ok
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError indicates that a parameter or input value is invalid.
//
// Example:
//
//	err := errors.NewValidationError("beam_width", 0, "must be at least 1")
//	fmt.Println(err) // "validation error: beam_width: must be at least 1 (got: 0)"
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Field: field,
		Value: value,
	}
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s (got: %v)", e.Field, e.message, e.Value)
}

// Is matches any *ValidationError and ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return target == ErrInvalidInput
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable reports whether err (or anything it wraps) is marked retryable.
func IsRetryable(err error) bool {
	var oe OrchardError
	if As(err, &oe) {
		return oe.IsRetryable()
	}
	return false
}

// IsUserFacing reports whether err's message is safe to display to users.
func IsUserFacing(err error) bool {
	var oe OrchardError
	if As(err, &oe) {
		return oe.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity of err, SeverityError for foreign errors
// and SeverityInfo for nil.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}
	var oe OrchardError
	if As(err, &oe) {
		return oe.Severity()
	}
	return SeverityError
}

// ChainIndexOf returns the index of the failed chain carried by err.
func ChainIndexOf(err error) (int, bool) {
	var ce *ChainError
	if As(err, &ce) && ce.ChainIndex >= 0 {
		return ce.ChainIndex, true
	}
	return -1, false
}
