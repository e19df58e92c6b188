// Package errs provides standardized error types for pipeline operations.
// Every fatal failure in the pipeline is a *PipelineError carrying the
// failing stage, the column involved (when applicable) and an error kind
// from the closed taxonomy below. Undefined evaluation metrics are not
// errors; they are reported as NaN values by the evaluate package.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind int

const (
	// KindFetch indicates a network or CSV parse failure during ingest.
	KindFetch Kind = iota
	// KindSchema indicates an expected column is missing or renamed.
	KindSchema
	// KindConfiguration indicates an invalid column-role declaration.
	KindConfiguration
	// KindImputationPolicy indicates a sentinel list referencing an
	// absent column.
	KindImputationPolicy
	// KindParse indicates a malformed date or time value.
	KindParse
	// KindNumerical indicates model fitting failed to converge or the
	// design matrix is rank-deficient.
	KindNumerical
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "FetchError"
	case KindSchema:
		return "SchemaError"
	case KindConfiguration:
		return "ConfigurationError"
	case KindImputationPolicy:
		return "ImputationPolicyError"
	case KindParse:
		return "ParseError"
	case KindNumerical:
		return "NumericalError"
	default:
		return "UnknownError"
	}
}

// PipelineError represents a fatal pipeline failure.
type PipelineError struct {
	Kind    Kind   // Error classification
	Op      string // Stage or operation name (e.g. "ingest.Fetch", "model.Fit")
	Column  string // Column name if applicable
	Message string // Human-readable description
	Cause   error  // Underlying cause
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s failed on column %q: %s", e.Kind, e.Op, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s failed: %s", e.Kind, e.Op, e.Message)
}

// Unwrap returns the underlying cause for error wrapping support.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind, operation and column.
func (e *PipelineError) Is(target error) bool {
	var pe *PipelineError
	if errors.As(target, &pe) {
		return e.Kind == pe.Kind && e.Op == pe.Op && e.Column == pe.Column
	}
	return false
}

// IsKind reports whether err is a *PipelineError of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// NewFetch creates a FetchError for ingest failures.
func NewFetch(op, message string, cause error) *PipelineError {
	return &PipelineError{Kind: KindFetch, Op: op, Message: message, Cause: cause}
}

// NewSchema creates a SchemaError for a missing or renamed column.
func NewSchema(op, column, message string) *PipelineError {
	return &PipelineError{Kind: KindSchema, Op: op, Column: column, Message: message}
}

// NewConfiguration creates a ConfigurationError for invalid role declarations.
func NewConfiguration(op, column, message string) *PipelineError {
	return &PipelineError{Kind: KindConfiguration, Op: op, Column: column, Message: message}
}

// NewImputationPolicy creates an ImputationPolicyError for a sentinel list
// referencing a column that is not present.
func NewImputationPolicy(op, column, message string) *PipelineError {
	return &PipelineError{Kind: KindImputationPolicy, Op: op, Column: column, Message: message}
}

// NewParse creates a ParseError for malformed date/time input.
func NewParse(op, message string, cause error) *PipelineError {
	return &PipelineError{Kind: KindParse, Op: op, Message: message, Cause: cause}
}

// NewNumerical creates a NumericalError for fit failures. column names the
// offending design column when collinearity is detectable.
func NewNumerical(op, column, message string, cause error) *PipelineError {
	return &PipelineError{Kind: KindNumerical, Op: op, Column: column, Message: message, Cause: cause}
}
