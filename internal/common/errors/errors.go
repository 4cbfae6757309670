// Package errors provides standardized error handling for the knowledge-base sync workers
// and their BPMN integration.
package errors

import (
	stderrors "errors"
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
	ErrCodeConfigInvalid     ErrorCode = "CONFIG_INVALID"
	ErrCodeProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"
	ErrCodeFormatInvalid     ErrorCode = "FORMAT_INVALID"
	ErrCodeJobFailed         ErrorCode = "JOB_FAILED"
	ErrCodeJobTimeout        ErrorCode = "JOB_TIMEOUT"
	ErrCodeTransportFailed   ErrorCode = "TRANSPORT_FAILED"

	ErrCodeImportFailed ErrorCode = "IMPORT_FAILED"
	ErrCodeExportFailed ErrorCode = "EXPORT_FAILED"

	ErrCodeSyncConflict ErrorCode = "SYNC_CONFLICT"
	ErrCodeInputInvalid ErrorCode = "INPUT_INVALID"
	ErrCodeQueryFailed  ErrorCode = "QUERY_FAILED"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// Phases name the step of a sync run a transport or job error belongs to.
const (
	PhaseImport      = "import"
	PhaseExport      = "export"
	PhaseStatusCheck = "status-check"
	PhaseDownload    = "download"
	PhaseQuery       = "query"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is matches any *StandardError carrying the same code, so the sentinels below work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrConfigInvalid     = &StandardError{Code: ErrCodeConfigInvalid}
	ErrProtocolViolation = &StandardError{Code: ErrCodeProtocolViolation}
	ErrFormatInvalid     = &StandardError{Code: ErrCodeFormatInvalid}
	ErrJobFailed         = &StandardError{Code: ErrCodeJobFailed}
	ErrJobTimeout        = &StandardError{Code: ErrCodeJobTimeout}
	ErrTransportFailed   = &StandardError{Code: ErrCodeTransportFailed}
	ErrImportFailed      = &StandardError{Code: ErrCodeImportFailed}
	ErrExportFailed      = &StandardError{Code: ErrCodeExportFailed}
	ErrSyncConflict      = &StandardError{Code: ErrCodeSyncConflict}
	ErrInputInvalid      = &StandardError{Code: ErrCodeInputInvalid}
	ErrQueryFailed       = &StandardError{Code: ErrCodeQueryFailed}
)

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

// NewConfigError reports a missing or invalid capability. Never retryable.
func NewConfigError(capability, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigInvalid,
		Message:   fmt.Sprintf("%s capability required", capability),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"capability": capability},
		Timestamp: time.Now().UTC(),
	}
}

// NewProtocolError reports a remote response missing a contractually required field.
func NewProtocolError(phase, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProtocolViolation,
		Message:   fmt.Sprintf("%s response violates the service contract", phaseTitle(phase)),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"phase": phase},
		Timestamp: time.Now().UTC(),
	}
}

// NewFormatError reports an archive without a usable knowledge-base table.
func NewFormatError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFormatInvalid,
		Message:   "knowledge base archive is malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewJobFailedError reports a terminal failure status or a non-empty error list from a polled job.
func NewJobFailedError(phase, status, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobFailed,
		Message:   fmt.Sprintf("%s failed, job status is: %s", phaseTitle(phase), status),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"phase": phase, "status": status},
		Timestamp: time.Now().UTC(),
	}
}

// NewJobTimeoutError reports an exhausted polling budget.
func NewJobTimeoutError(phase string, attempts int, lastStatus string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobTimeout,
		Message:   fmt.Sprintf("%s did not finish after %d status checks", phaseTitle(phase), attempts),
		Details:   fmt.Sprintf("last status: %q", lastStatus),
		Retryable: true,
		Metadata:  map[string]interface{}{"phase": phase, "status": lastStatus, "attempts": attempts},
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError wraps an HTTP failure with the phase it happened in.
func NewTransportError(phase string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailed,
		Message:   fmt.Sprintf("%s failed", phaseTitle(phase)),
		Retryable: true,
		Metadata:  map[string]interface{}{"phase": phase},
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewImportError wraps any failure of an import run.
func NewImportError(err error) *StandardError {
	return wrapBoundary(ErrCodeImportFailed, "Import failed", err)
}

// NewExportError wraps any failure of an export run.
func NewExportError(err error) *StandardError {
	return wrapBoundary(ErrCodeExportFailed, "Export process failed", err)
}

// NewSyncConflictError reports that another export holds the project lock.
func NewSyncConflictError(project string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSyncConflict,
		Message:   "another export is running for this project",
		Details:   fmt.Sprintf("project: %s", project),
		Retryable: true,
		Metadata:  map[string]interface{}{"project": project},
		Timestamp: time.Now().UTC(),
	}
}

// NewInputInvalidError reports job variables that do not match the worker's input schema.
func NewInputInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputInvalid,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryFailedError wraps a failed single-turn query.
func NewQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryFailed,
		Message:   "Query failed",
		Retryable: isRetryable(err),
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func wrapBoundary(code ErrorCode, message string, err error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Retryable: isRetryable(err),
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func phaseTitle(phase string) string {
	switch phase {
	case PhaseImport:
		return "Import"
	case PhaseExport:
		return "Export"
	case PhaseStatusCheck:
		return "Status check"
	case PhaseDownload:
		return "Download"
	case PhaseQuery:
		return "Query"
	}
	return phase
}

func isRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransportFailed,
		ErrCodeQueryFailed:
		return 3

	case ErrCodeJobTimeout,
		ErrCodeSyncConflict:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda. Boundary
// wrappers keep their own code but take the retry policy of the root cause.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	root := RootCause(stdErr)

	retries := GetRetryCount(root.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	details := stdErr.Details
	if stdErr.Cause != nil {
		details = stdErr.Cause.Error()
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(root.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// RootCause returns the innermost StandardError in err's chain.
func RootCause(err *StandardError) *StandardError {
	root := err
	for cause := err.Cause; cause != nil; {
		var next *StandardError
		if !stderrors.As(cause, &next) {
			break
		}
		root = next
		cause = next.Cause
	}
	return root
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// CodeOf returns the code of the outermost StandardError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// JobStatusOf extracts the remote job status carried by a JOB_FAILED or JOB_TIMEOUT error.
func JobStatusOf(err error) string {
	for err != nil {
		var stdErr *StandardError
		if !stderrors.As(err, &stdErr) {
			return ""
		}
		if status, ok := stdErr.Metadata["status"].(string); ok {
			return status
		}
		err = stdErr.Cause
	}
	return ""
}
