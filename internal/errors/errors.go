// Package errors defines the error taxonomy shared by the tiling, knowledge
// base, refinement and pipeline packages.
//
// Every failure that crosses a package boundary is a *PipelineError carrying
// an ErrorCode. Callers decide severity from the code:
//
//   - INVALID_CONFIGURATION: fatal, raised before any work starts
//   - EMBEDDING_FAILED: recoverable, the affected symbol is not learned or
//     the query is treated as a miss
//   - DETECTION_FAILED: recoverable per tile, the tile is recorded empty
//   - MALFORMED_DETECTION: never surfaced, only counted
//   - PERSISTENCE_FAILED: fatal for the current write, earlier data intact
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	ErrorInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	ErrorEmbeddingFailed      ErrorCode = "EMBEDDING_FAILED"
	ErrorDetectionFailed      ErrorCode = "DETECTION_FAILED"
	ErrorMalformedDetection   ErrorCode = "MALFORMED_DETECTION"
	ErrorPersistenceFailed    ErrorCode = "PERSISTENCE_FAILED"
)

// PipelineError represents a structured processing error
type PipelineError struct {
	Code      ErrorCode
	Message   string
	Subject   string // tile id, symbol id or file path the error is about
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// HasCode reports whether err (or anything it wraps) is a PipelineError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// Factory functions for common errors

func NewInvalidConfigurationError(field string, format string, args ...interface{}) *PipelineError {
	return &PipelineError{
		Code:      ErrorInvalidConfiguration,
		Message:   fmt.Sprintf(format, args...),
		Subject:   field,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

func NewEmbeddingError(subject string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorEmbeddingFailed,
		Message:   "Failed to compute image embedding",
		Subject:   subject,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewDetectionError(tileID string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorDetectionFailed,
		Message:   fmt.Sprintf("Detector failed for tile %s", tileID),
		Subject:   tileID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewMalformedDetectionError(reason string, box []float64) *PipelineError {
	return &PipelineError{
		Code:      ErrorMalformedDetection,
		Message:   fmt.Sprintf("Malformed detection: %s", reason),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"box": box,
		},
	}
}

func NewPersistenceError(path string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorPersistenceFailed,
		Message:   fmt.Sprintf("Failed to persist %s", path),
		Subject:   path,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for structured logging and tool responses
func (e *PipelineError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}
	if e.Subject != "" {
		result["subject"] = e.Subject
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
