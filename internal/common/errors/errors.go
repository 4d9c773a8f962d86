// Package errors provides the standardized error taxonomy shared by the board engine,
// the data-access layer and the Zeebe workers.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is a stable, user-independent identifier for a failure class.
type ErrorCode string

const (
	// Board faults
	ErrCodeStatusInvalid   ErrorCode = "STATUS_INVALID"
	ErrCodeStaleReference  ErrorCode = "STALE_REFERENCE"
	ErrCodeDragInProgress  ErrorCode = "DRAG_IN_PROGRESS"
	ErrCodePersistence     ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeMutationTimeout ErrorCode = "MUTATION_TIMEOUT"

	// Data access
	ErrCodeApplicationNotFound      ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeCacheFailed              ErrorCode = "CACHE_FAILED"

	// Side channels
	ErrCodeActivityIndexFailed    ErrorCode = "ACTIVITY_INDEX_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeProcessExecutionFailed ErrorCode = "PROCESS_EXECUTION_FAILED"

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

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any *StandardError carrying the same code, so sentinel values work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrStatusInvalid       = &StandardError{Code: ErrCodeStatusInvalid}
	ErrStaleReference      = &StandardError{Code: ErrCodeStaleReference}
	ErrDragInProgress      = &StandardError{Code: ErrCodeDragInProgress}
	ErrPersistence         = &StandardError{Code: ErrCodePersistence}
	ErrMutationTimeout     = &StandardError{Code: ErrCodeMutationTimeout}
	ErrApplicationNotFound = &StandardError{Code: ErrCodeApplicationNotFound}
)

// CodeOf extracts the ErrorCode from err, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
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

// ToErrorVariables returns a map suitable for Camunda fail/throw variables.
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

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewStatusInvalidError reports a status outside the closed set (ValidationFault).
func NewStatusInvalidError(status string) *StandardError {
	return newError(ErrCodeStatusInvalid, "Status is not part of the board", fmt.Sprintf("status: %q", status), false, nil)
}

// NewStaleReferenceError reports a dragged or target record that is no longer on the board.
func NewStaleReferenceError(id string) *StandardError {
	return newError(ErrCodeStaleReference, "Record no longer on the board", fmt.Sprintf("id: %s", id), false, nil)
}

func NewDragInProgressError(activeID string) *StandardError {
	return newError(ErrCodeDragInProgress, "Another drag is already active", fmt.Sprintf("activeId: %s", activeID), false, nil)
}

// NewPersistenceError wraps a failed durable status write. Timeouts get their own code.
func NewPersistenceError(applicationID string, err error) *StandardError {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return newError(ErrCodeMutationTimeout, "Status update timed out",
			fmt.Sprintf("applicationId: %s", applicationID), true, err)
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) && stdErr.Code == ErrCodeMutationTimeout {
		return stdErr
	}
	details := fmt.Sprintf("applicationId: %s", applicationID)
	if err != nil {
		details = fmt.Sprintf("%s, error: %s", details, err.Error())
	}
	return newError(ErrCodePersistence, "Status update failed", details, true, err)
}

func NewApplicationNotFoundError(applicationID string) *StandardError {
	return newError(ErrCodeApplicationNotFound, "Application not found",
		fmt.Sprintf("applicationId: %s", applicationID), false, nil)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true, err)
}

func NewCacheFailedError(op string, err error) *StandardError {
	return newError(ErrCodeCacheFailed, "Cache operation failed",
		fmt.Sprintf("op: %s, error: %s", op, err.Error()), true, err)
}

func NewActivityIndexFailedError(err error) *StandardError {
	return newError(ErrCodeActivityIndexFailed, "Activity indexing failed", err.Error(), true, err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true, err)
}

func NewProcessExecutionFailedError(processID string, err error) *StandardError {
	return newError(ErrCodeProcessExecutionFailed, "Workflow process failed",
		fmt.Sprintf("processId: %s, error: %s", processID, err.Error()), true, err)
}

// Generic constructors

func NewValidationError(message, details string) *StandardError {
	return newError(ErrCodeStatusInvalid, message, details, false, nil)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError("EXTERNAL_SERVICE_ERROR", fmt.Sprintf("External service '%s' error", service), err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError("TIMEOUT_ERROR", fmt.Sprintf("Service '%s' timeout", service), err.Error(), true, err)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError("RESOURCE_NOT_FOUND", fmt.Sprintf("Resource not found in %s", service), details, false, nil)
}

// ==========================
// 4. User-facing messages
// ==========================

var userMessages = map[ErrorCode]string{
	ErrCodePersistence:              "Failed to update status. Your board has been restored.",
	ErrCodeMutationTimeout:          "The server took too long to save the move. Your board has been restored.",
	ErrCodeApplicationNotFound:      "This application no longer exists.",
	ErrCodeStatusInvalid:            "That column is not available.",
	ErrCodeDatabaseConnectionFailed: "We could not reach the server. Please try again.",
	ErrCodeQueryExecutionFailed:     "We could not reach the server. Please try again.",
	ErrCodeProcessExecutionFailed:   "We could not reach the server. Please try again.",
}

// UserMessage returns the stable text shown to users for a code. Transport detail never leaks here.
func UserMessage(code ErrorCode) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return "Something went wrong. Please try again."
}

// ==========================
// 5. Retry / BPMN conversion
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodePersistence,
		ErrCodeProcessExecutionFailed:
		return 3
	case ErrCodeMutationTimeout,
		ErrCodeCacheFailed,
		ErrCodeActivityIndexFailed,
		ErrCodeNotificationSendFailed:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}
	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeStatusInvalid || code == ErrCodeStaleReference || code == ErrCodeDragInProgress:
		return "BOARD"
	case code == ErrCodePersistence || code == ErrCodeMutationTimeout:
		return "PERSISTENCE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || code == ErrCodeApplicationNotFound:
		return "DATABASE"
	case code == ErrCodeCacheFailed:
		return "CACHE"
	case code == ErrCodeActivityIndexFailed:
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case code == ErrCodeProcessExecutionFailed:
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
