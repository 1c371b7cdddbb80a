package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeExtraction represents failures of the text-understanding capability
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeResolution represents entity resolution failures
	ErrorTypeResolution ErrorType = "resolution"
	// ErrorTypeRelation represents invalid relation candidates
	ErrorTypeRelation ErrorType = "relation"
	// ErrorTypeStorage represents storage conflicts and write failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeAgent represents companion/LLM errors
	ErrorTypeAgent ErrorType = "agent"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Category returns the error's category; promoted to every error type that
// embeds BaseError
func (e *BaseError) Category() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Extraction Errors

// ErrExtractionUnavailable is returned when the text-understanding capability
// is unreachable or times out
type ErrExtractionUnavailable struct {
	*BaseError
	Attempts int
}

func NewExtractionUnavailable(attempts int, err error) *ErrExtractionUnavailable {
	return &ErrExtractionUnavailable{
		BaseError: NewBaseError(ErrorTypeExtraction, fmt.Sprintf("text understanding unavailable after %d attempts", attempts), err),
		Attempts:  attempts,
	}
}

// ErrExtractionMalformed is returned when the capability answers with output
// that cannot be parsed into candidates
type ErrExtractionMalformed struct {
	*BaseError
	Raw string
}

func NewExtractionMalformed(raw string, err error) *ErrExtractionMalformed {
	return &ErrExtractionMalformed{
		BaseError: NewBaseError(ErrorTypeExtraction, "text understanding returned malformed output", err),
		Raw:       raw,
	}
}

// Resolution Errors

// ErrResolutionAmbiguous is returned when a candidate cannot be mapped to a
// canonical entity
type ErrResolutionAmbiguous struct {
	*BaseError
	Mention string
}

func NewResolutionAmbiguous(mention string) *ErrResolutionAmbiguous {
	return &ErrResolutionAmbiguous{
		BaseError: NewBaseError(ErrorTypeResolution, fmt.Sprintf("cannot resolve mention: %s", mention), nil),
		Mention:   mention,
	}
}

// Relation Errors

// ErrInvalidRelation is returned for self-loops, unknown vocabulary, and
// dangling node references
type ErrInvalidRelation struct {
	*BaseError
	RelationType string
	Reason       string
}

func NewInvalidRelation(relationType, reason string) *ErrInvalidRelation {
	return &ErrInvalidRelation{
		BaseError:    NewBaseError(ErrorTypeRelation, fmt.Sprintf("invalid relation %q: %s", relationType, reason), nil),
		RelationType: relationType,
		Reason:       reason,
	}
}

// Storage Errors

// ErrStorageConflict is returned when a concurrent upsert race is detected by
// the atomic write; the caller retries once, then abandons the candidate
type ErrStorageConflict struct {
	*BaseError
	Key string
}

func NewStorageConflict(key string, err error) *ErrStorageConflict {
	return &ErrStorageConflict{
		BaseError: NewBaseError(ErrorTypeStorage, fmt.Sprintf("concurrent upsert conflict on %s", key), err),
		Key:       key,
	}
}

// Graph Errors

// ErrGraphConnectionFailed is returned when the Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Operation string
}

func NewGraphQueryFailed(operation string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("query failed: %s", operation), err),
		Operation: operation,
	}
}

// ErrNotFound is returned when a requested record does not exist
type ErrNotFound struct {
	*BaseError
	Kind string
	ID   string
}

func NewNotFound(kind, id string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("%s not found: %s", kind, id), nil),
		Kind:      kind,
		ID:        id,
	}
}

// Agent Errors

// ErrAgentLLMFailed is returned when an LLM request fails
type ErrAgentLLMFailed struct {
	*BaseError
	Model     string
	Attempts  int
	Retryable bool
}

func NewAgentLLMFailed(model string, attempts int, retryable bool, err error) *ErrAgentLLMFailed {
	return &ErrAgentLLMFailed{
		BaseError: NewBaseError(ErrorTypeAgent, fmt.Sprintf("LLM request failed after %d attempts", attempts), err),
		Model:     model,
		Attempts:  attempts,
		Retryable: retryable,
	}
}

// ErrAgentNoResponse is returned when the LLM returns no choices
var ErrAgentNoResponse = NewBaseError(ErrorTypeAgent, "no response from LLM", nil)

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific category
func IsErrorType(err error, errType ErrorType) bool {
	if categorized, ok := err.(interface{ Category() ErrorType }); ok {
		return categorized.Category() == errType
	}
	if wrapped, ok := err.(interface{ Unwrap() error }); ok {
		if inner := wrapped.Unwrap(); inner != nil {
			return IsErrorType(inner, errType)
		}
	}
	return false
}

// IsStorageConflict reports whether err is a concurrent upsert conflict
func IsStorageConflict(err error) bool {
	for err != nil {
		if _, ok := err.(*ErrStorageConflict); ok {
			return true
		}
		wrapped, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = wrapped.Unwrap()
	}
	return false
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	if llmErr, ok := err.(*ErrAgentLLMFailed); ok {
		return llmErr.Retryable
	}
	// Transient graph and storage failures are retryable
	if IsErrorType(err, ErrorTypeGraph) || IsErrorType(err, ErrorTypeStorage) {
		return true
	}
	return false
}
