// Package errors provides scmfs's structured error system: error codes,
// categories, and contextual metadata attached to every error that crosses
// a component boundary (mount, checkout, diff, channel attach, object
// store).
package errors

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies a specific failure mode.
type ErrorCode string

// Error code constants, organized by category. The numeric ranges in the
// section comments are labels only; the code values are plain strings.
// The boundary error kinds named in the core's public contract
// (CheckoutInProgress, OutOfDateParent, Loop, NotADirectory, AlreadyExists,
// NotFound, DeviceUnmountedDuringInitialization, MountCancelled,
// IllegalStateTransition) each have a code below.
const (
	// Configuration Errors (1000-1999)
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig    ErrorCode = "MISSING_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"

	// Connection Errors (2000-2999) -- object store and privileged helper RPC
	ErrCodeConnectionFailed  ErrorCode = "CONNECTION_FAILED"
	ErrCodeConnectionTimeout ErrorCode = "CONNECTION_TIMEOUT"
	ErrCodeConnectionPool    ErrorCode = "CONNECTION_POOL"
	ErrCodeNetworkError      ErrorCode = "NETWORK_ERROR"

	// Object Store Errors (3000-3999)
	ErrCodeObjectNotFound ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeTreeNotFound   ErrorCode = "TREE_NOT_FOUND"
	ErrCodeStorageWrite   ErrorCode = "STORAGE_WRITE"
	ErrCodeStorageRead    ErrorCode = "STORAGE_READ"
	ErrCodeAccessDenied   ErrorCode = "ACCESS_DENIED"

	// Filesystem/Inode Errors (4000-4999)
	ErrCodeMountFailed                          ErrorCode = "MOUNT_FAILED"
	ErrCodeUnmountFailed                        ErrorCode = "UNMOUNT_FAILED"
	ErrCodePermissionDenied                     ErrorCode = "PERMISSION_DENIED"
	ErrCodePathInvalid                          ErrorCode = "PATH_INVALID"
	ErrCodeNotFound                             ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists                        ErrorCode = "ALREADY_EXISTS"
	ErrCodeNotADirectory                        ErrorCode = "NOT_A_DIRECTORY"
	ErrCodeNotEmpty                             ErrorCode = "NOT_EMPTY"
	ErrCodeLoop                                 ErrorCode = "LOOP"
	ErrCodeDeviceUnmountedDuringInitialization  ErrorCode = "DEVICE_UNMOUNTED_DURING_INITIALIZATION"

	// Resource Management Errors (5000-5999)
	ErrCodeOutOfMemory       ErrorCode = "OUT_OF_MEMORY"
	ErrCodeBufferFull        ErrorCode = "BUFFER_FULL"
	ErrCodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
	ErrCodeCacheFull         ErrorCode = "CACHE_FULL"
	ErrCodeLimitExceeded     ErrorCode = "LIMIT_EXCEEDED"

	// State Management Errors (6000-6999)
	ErrCodeAlreadyStarted         ErrorCode = "ALREADY_STARTED"
	ErrCodeNotInitialized         ErrorCode = "NOT_INITIALIZED"
	ErrCodeIllegalStateTransition ErrorCode = "ILLEGAL_STATE_TRANSITION"
	ErrCodeShutdownInProgress     ErrorCode = "SHUTDOWN_IN_PROGRESS"
	ErrCodeCheckoutInProgress     ErrorCode = "CHECKOUT_IN_PROGRESS"
	ErrCodeMountCancelled         ErrorCode = "MOUNT_CANCELLED"

	// Operation Errors (7000-7999)
	ErrCodeOperationTimeout  ErrorCode = "OPERATION_TIMEOUT"
	ErrCodeOperationCanceled ErrorCode = "OPERATION_CANCELED"
	ErrCodeOperationFailed   ErrorCode = "OPERATION_FAILED"
	ErrCodeRetryExhausted    ErrorCode = "RETRY_EXHAUSTED"
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeOutOfDateParent   ErrorCode = "OUT_OF_DATE_PARENT"

	// Authentication/Authorization Errors (8000-8999) -- object-store backend creds
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeCredentialsMissing   ErrorCode = "CREDENTIALS_MISSING"

	// Internal System Errors (9000-9999)
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrCodePanicRecovered ErrorCode = "PANIC_RECOVERED"
	ErrCodeUnknownError   ErrorCode = "UNKNOWN_ERROR"
)

// ErrorCategory groups related error codes.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryConnection    ErrorCategory = "connection"
	CategoryObjectStore   ErrorCategory = "object_store"
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryResource      ErrorCategory = "resource"
	CategoryState         ErrorCategory = "state"
	CategoryOperation     ErrorCategory = "operation"
	CategoryAuth          ErrorCategory = "auth"
	CategoryInternal      ErrorCategory = "internal"
)

// ScmfsError is a structured error carrying the code, category, and
// contextual metadata every boundary in the core attaches to its failures.
type ScmfsError struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`

	// ExpectedState / ActualState are populated for IllegalStateTransition:
	// spec.md §7 requires state-transition failures report both.
	ExpectedState string `json:"expected_state,omitempty"`
	ActualState   string `json:"actual_state,omitempty"`

	Retryable  bool `json:"retryable"`
	UserFacing bool `json:"user_facing"`

	Stack string `json:"stack,omitempty"`
}

func (e *ScmfsError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ScmfsError) Unwrap() error {
	return e.Cause
}

// Is compares by code, so errors.Is(err, ErrCheckoutInProgress) works against
// a sentinel built with NewError.
func (e *ScmfsError) Is(target error) bool {
	if other, ok := target.(*ScmfsError); ok {
		return e.Code == other.Code
	}
	return false
}

func (e *ScmfsError) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.ExpectedState != "" || e.ActualState != "" {
		parts = append(parts, fmt.Sprintf("ExpectedState=%s ActualState=%s", e.ExpectedState, e.ActualState))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}
	return fmt.Sprintf("ScmfsError{%s}", strings.Join(parts, ", "))
}

// JSON renders the error for structured log sinks.
func (e *ScmfsError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// NewError creates a ScmfsError, filling in category and default hints from
// the code.
func NewError(code ErrorCode, message string) *ScmfsError {
	return &ScmfsError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Details:    make(map[string]interface{}),
		Context:    make(map[string]string),
		Retryable:  IsRetryableByDefault(code),
		UserFacing: IsUserFacingByDefault(code),
	}
}

// NewIllegalStateTransition builds the specific error spec.md §7 calls for:
// concurrent operations observing a failed state transition report both the
// expected and actual state.
func NewIllegalStateTransition(component, expected, actual string) *ScmfsError {
	return NewError(ErrCodeIllegalStateTransition,
		fmt.Sprintf("cannot transition %s from %s: current state is %s", component, expected, actual)).
		WithComponent(component).
		WithExpectedActual(expected, actual)
}

// GetCategory determines the category based on the error code's prefix.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "MISSING_CONFIG") ||
		strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "CONNECTION_") || strings.HasPrefix(codeStr, "NETWORK_"):
		return CategoryConnection
	case strings.HasPrefix(codeStr, "OBJECT_") || strings.HasPrefix(codeStr, "TREE_") ||
		strings.HasPrefix(codeStr, "STORAGE_") || codeStr == "ACCESS_DENIED":
		return CategoryObjectStore
	case (strings.HasPrefix(codeStr, "MOUNT_") && codeStr != "MOUNT_CANCELLED") || strings.HasPrefix(codeStr, "UNMOUNT_") ||
		strings.HasPrefix(codeStr, "PERMISSION_") || strings.HasPrefix(codeStr, "PATH_") ||
		codeStr == "NOT_FOUND" || codeStr == "ALREADY_EXISTS" || codeStr == "NOT_A_DIRECTORY" ||
		codeStr == "NOT_EMPTY" || codeStr == "LOOP" || strings.HasPrefix(codeStr, "DEVICE_"):
		return CategoryFilesystem
	case strings.HasPrefix(codeStr, "OUT_OF_MEMORY") || strings.HasPrefix(codeStr, "BUFFER_") ||
		strings.HasPrefix(codeStr, "RESOURCE_") || strings.HasPrefix(codeStr, "CACHE_") ||
		strings.HasPrefix(codeStr, "LIMIT_"):
		return CategoryResource
	case strings.HasPrefix(codeStr, "ALREADY_STARTED") || strings.HasPrefix(codeStr, "NOT_INITIALIZED") ||
		strings.HasPrefix(codeStr, "ILLEGAL_STATE") || strings.HasPrefix(codeStr, "SHUTDOWN_") ||
		strings.HasPrefix(codeStr, "CHECKOUT_") || strings.HasPrefix(codeStr, "MOUNT_CANCELLED"):
		return CategoryState
	case strings.HasPrefix(codeStr, "OPERATION_") || strings.HasPrefix(codeStr, "RETRY_") ||
		strings.HasPrefix(codeStr, "VALIDATION_") || strings.HasPrefix(codeStr, "OUT_OF_DATE"):
		return CategoryOperation
	case strings.HasPrefix(codeStr, "AUTHENTICATION_") || strings.HasPrefix(codeStr, "CREDENTIALS_"):
		return CategoryAuth
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
// Domain-error and invariant-violation codes are deliberately absent: a
// CheckoutInProgress or IllegalStateTransition should never be blindly
// retried by internal/retry.
func IsRetryableByDefault(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		ErrCodeConnectionTimeout: true,
		ErrCodeConnectionFailed:  true,
		ErrCodeNetworkError:      true,
		ErrCodeOperationTimeout:  true,
		ErrCodeResourceExhausted: true,
		ErrCodeInternalError:     true,
	}
	return retryableCodes[code]
}

// IsUserFacingByDefault determines if an error should be shown to the caller
// verbatim rather than translated to a generic message.
func IsUserFacingByDefault(code ErrorCode) bool {
	userFacingCodes := map[ErrorCode]bool{
		ErrCodeInvalidConfig:      true,
		ErrCodeMissingConfig:      true,
		ErrCodePermissionDenied:   true,
		ErrCodePathInvalid:        true,
		ErrCodeNotFound:           true,
		ErrCodeAlreadyExists:      true,
		ErrCodeMountFailed:        true,
		ErrCodeCheckoutInProgress: true,
		ErrCodeOutOfDateParent:    true,
		ErrCodeLoop:               true,
	}
	return userFacingCodes[code]
}

// CaptureStack captures the current stack trace for debugging.
func CaptureStack(skip int) string {
	const depth = 10
	var pcs [depth]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "errors.go") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return strings.Join(stack, "\n")
}

func (e *ScmfsError) WithContext(key, value string) *ScmfsError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *ScmfsError) WithDetail(key string, value interface{}) *ScmfsError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *ScmfsError) WithComponent(component string) *ScmfsError {
	e.Component = component
	return e
}

func (e *ScmfsError) WithOperation(operation string) *ScmfsError {
	e.Operation = operation
	return e
}

func (e *ScmfsError) WithCause(cause error) *ScmfsError {
	e.Cause = cause
	return e
}

func (e *ScmfsError) WithStack() *ScmfsError {
	e.Stack = CaptureStack(2)
	return e
}

// WithExpectedActual records the states involved in a failed CAS transition.
func (e *ScmfsError) WithExpectedActual(expected, actual string) *ScmfsError {
	e.ExpectedState = expected
	e.ActualState = actual
	return e
}
