// Package errors provides standardized error handling for BPMN workflow integration.
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

const (
	ErrCodeInputParsingFailed    ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeInputValidationFailed ErrorCode = "INPUT_VALIDATION_FAILED"

	// Completion reconciliation
	ErrCodeEmptyCompletion        ErrorCode = "EMPTY_COMPLETION"
	ErrCodeInvalidCompletion      ErrorCode = "INVALID_COMPLETION"
	ErrCodeSchemaValidationFailed ErrorCode = "SCHEMA_VALIDATION_FAILED"

	ErrCodeDuplicateRequest       ErrorCode = "DUPLICATE_REQUEST"
	ErrCodeIdempotencyCheckFailed ErrorCode = "IDEMPOTENCY_CHECK_FAILED"

	ErrCodeLLMGenerationFailed ErrorCode = "LLM_GENERATION_FAILED"
	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"

	ErrCodeDatabaseInsertFailed ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeQueryExecutionFailed ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeTravelPlanNotFound   ErrorCode = "TRAVEL_PLAN_NOT_FOUND"

	ErrCodeExportUploadFailed ErrorCode = "EXPORT_UPLOAD_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInputParsingFailedError is returned when job variables are not valid JSON.
func NewInputParsingFailedError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Failed to parse job variables", err.Error(), false)
}

// NewInputValidationFailedError lists every violated field of a request.
func NewInputValidationFailedError(details string) *StandardError {
	return newError(ErrCodeInputValidationFailed, "Input validation failed", details, false)
}

func NewEmptyCompletionError() *StandardError {
	return newError(ErrCodeEmptyCompletion, "Model returned an empty completion", "", false)
}

// NewInvalidCompletionError carries the parse diagnostics of both attempts.
func NewInvalidCompletionError(details string) *StandardError {
	return newError(ErrCodeInvalidCompletion, "Model completion is not valid JSON after repair", details, false)
}

// NewSchemaValidationFailedError names the offending field paths.
func NewSchemaValidationFailedError(details string) *StandardError {
	return newError(ErrCodeSchemaValidationFailed, "Model completion does not match the expected schema", details, false)
}

// NewDuplicateRequestError is an expected conflict, never retried.
func NewDuplicateRequestError(details string) *StandardError {
	return newError(ErrCodeDuplicateRequest, "Result already generated for this request", details, false)
}

func NewIdempotencyCheckFailedError(err error) *StandardError {
	return newError(ErrCodeIdempotencyCheckFailed, "Duplicate check against storage failed", err.Error(), true)
}

func NewLLMGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeLLMGenerationFailed, "LLM completion request failed", err.Error(), true)
}

func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "LLM completion timed out", err.Error(), true)
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

func NewTravelPlanNotFoundError(email, startDate string) *StandardError {
	return newError(ErrCodeTravelPlanNotFound, "Travel plan not found",
		fmt.Sprintf("email: %s, startDate: %s", email, startDate), false)
}

func NewExportUploadFailedError(err error) *StandardError {
	return newError(ErrCodeExportUploadFailed, "Export upload failed", err.Error(), true)
}

// NewInternalError wraps anything that has no better classification.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. Codes that
// are missing fall back to their own name.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInputParsingFailed:     "INPUT_PARSING_FAILED",
	ErrCodeInputValidationFailed:  "INPUT_VALIDATION_FAILED",
	ErrCodeEmptyCompletion:        "GENERATION_REJECTED",
	ErrCodeInvalidCompletion:      "GENERATION_REJECTED",
	ErrCodeSchemaValidationFailed: "GENERATION_REJECTED",
	ErrCodeDuplicateRequest:       "DUPLICATE_REQUEST",
	ErrCodeIdempotencyCheckFailed: "IDEMPOTENCY_CHECK_FAILED",
	ErrCodeLLMGenerationFailed:    "LLM_GENERATION_FAILED",
	ErrCodeLLMTimeout:             "LLM_TIMEOUT",
	ErrCodeDatabaseInsertFailed:   "DATABASE_INSERT_FAILED",
	ErrCodeQueryExecutionFailed:   "QUERY_EXECUTION_FAILED",
	ErrCodeTravelPlanNotFound:     "TRAVEL_PLAN_NOT_FOUND",
	ErrCodeExportUploadFailed:     "EXPORT_UPLOAD_FAILED",
}

// GetRetryCount returns the recommended retry count for a code. Only
// transport and storage failures are retried; a retry of a generation job
// means a fresh LLM call, never a re-parse of the same text.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeIdempotencyCheckFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeExportUploadFailed:
		return 3

	case ErrCodeLLMGenerationFailed:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "COMPLETION") || strings.Contains(codeStr, "SCHEMA"):
		return "RECONCILIATION"
	case strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "DUPLICATE") || strings.Contains(codeStr, "IDEMPOTENCY"):
		return "IDEMPOTENCY"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "NOT_FOUND"):
		return "DATABASE"
	case strings.Contains(codeStr, "EXPORT"):
		return "EXPORT"
	case strings.Contains(codeStr, "INPUT"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
