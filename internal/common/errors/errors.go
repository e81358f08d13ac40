// Package errors provides standardized error handling for the generation pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Transport-level errors (classified by the resilient invoker).
const (
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeout ErrorCode = "TIMEOUT_ERROR"
	ErrCodeHTTP    ErrorCode = "HTTP_ERROR"
)

// Stage-level errors (service reachable but reported a domain failure).
const (
	ErrCodeServiceLogic ErrorCode = "SERVICE_LOGIC_ERROR"

	ErrCodeTranscriptionSilence  ErrorCode = "TRANSCRIPTION_SILENCE"
	ErrCodeTranscriptionTooShort ErrorCode = "TRANSCRIPTION_TOO_SHORT"
	ErrCodeTranscriptionFailed   ErrorCode = "TRANSCRIPTION_FAILED"

	ErrCodeExtractionEmpty  ErrorCode = "EXTRACTION_EMPTY"
	ErrCodeExtractionFailed ErrorCode = "EXTRACTION_FAILED"

	ErrCodeMappingFailed ErrorCode = "MAPPING_FAILED"
	ErrCodePersistFailed ErrorCode = "PERSIST_FAILED"
)

// Caller errors (input invalid, never retried).
const (
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
)

// PipelineError represents a structured pipeline error. Adapters never let
// raw transport errors escape; every failure path carries one of these.
type PipelineError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Stage     string                 `json:"stage,omitempty"`
	Status    int                    `json:"status,omitempty"` // HTTP status for HTTP_ERROR
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("PipelineError[%s]: %s", e.Code, e.Message)
}

// WithStage tags the error with the pipeline stage it occurred in.
func (e *PipelineError) WithStage(stage string) *PipelineError {
	e.Stage = stage
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewNetworkError creates a retryable connection-level error.
func NewNetworkError(target string, err error) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeNetwork,
		Message:   "Network failure calling external service",
		Details:   fmt.Sprintf("target: %s, error: %s", target, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTimeoutError creates a retryable deadline-exceeded error.
func NewTimeoutError(target string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeTimeout,
		Message:   "Call exceeded its deadline",
		Details:   fmt.Sprintf("target: %s", target),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewHTTPError creates an HTTP status error. 429 and 5xx are retryable,
// every other 4xx is terminal.
func NewHTTPError(target string, status int) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeHTTP,
		Message:   fmt.Sprintf("Service responded with status %d", status),
		Details:   fmt.Sprintf("target: %s", target),
		Status:    status,
		Retryable: IsRetryableStatus(status),
		Timestamp: time.Now().UTC(),
	}
}

// NewServiceLogicError creates a terminal service-side domain failure.
func NewServiceLogicError(service, details string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeServiceLogic,
		Message:   fmt.Sprintf("Service '%s' reported a domain failure", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable caller-input error.
func NewValidationError(details string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeValidation,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTranscriptionSilenceError reports a transcript with no usable speech.
func NewTranscriptionSilenceError(details string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeTranscriptionSilence,
		Message:   "No speech detected in audio",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTranscriptionTooShortError reports audio below the audibility threshold.
func NewTranscriptionTooShortError(size, minSize int) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeTranscriptionTooShort,
		Message:   "Audio is too short to transcribe",
		Details:   fmt.Sprintf("size: %d bytes, minimum: %d bytes", size, minSize),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTranscriptionFailedError reports a transcription service failure.
func NewTranscriptionFailedError(err error) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeTranscriptionFailed,
		Message:   "Transcription service error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionFailedError reports an entity-extraction service failure.
// The adapter pairs this with an empty entity set so the orchestrator can
// take the fallback path instead of aborting.
func NewExtractionFailedError(err error) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeExtractionFailed,
		Message:   "Entity extraction service error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMappingFailedError reports a visual-mapping service failure.
func NewMappingFailedError(err error) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeMappingFailed,
		Message:   "Visual mapping service error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistFailedError reports a layout-storage write failure after the
// invoker's own retry policy is exhausted.
func NewPersistFailedError(err error) *PipelineError {
	return &PipelineError{
		Code:      ErrCodePersistFailed,
		Message:   "Layout persistence failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryableStatus reports whether an HTTP status warrants a retry.
func IsRetryableStatus(status int) bool {
	return status == 429 || status >= 500
}

// Normalize ensures we always have a PipelineError.
func Normalize(err error) *PipelineError {
	if err == nil {
		return nil
	}
	if pipeErr, ok := err.(*PipelineError); ok {
		return pipeErr
	}
	return &PipelineError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsCode reports whether err is a PipelineError with the given code.
func IsCode(err error, code ErrorCode) bool {
	pipeErr, ok := err.(*PipelineError)
	return ok && pipeErr.Code == code
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TRANSCRIPTION"):
		return "TRANSCRIPTION"
	case strings.Contains(codeStr, "EXTRACTION"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "MAPPING"):
		return "MAPPING"
	case strings.Contains(codeStr, "PERSIST"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "NETWORK") || strings.Contains(codeStr, "TIMEOUT") || strings.Contains(codeStr, "HTTP"):
		return "TRANSPORT"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
