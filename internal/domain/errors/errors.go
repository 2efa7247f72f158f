package errors

import (
	"net/http"

	"rewardnet/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.details != "" {
		return e.message + ": " + e.details
	}

	return e.message
}

// Is matches any BaseError carrying the same business code, so errors derived
// through WithDetails still satisfy errors.Is against the predefined value.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}

	return e.errorCode == t.errorCode
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Predefined error types
var (
	// Participant-related errors
	ErrParticipantNotFound = NewBaseError(
		http.StatusNotFound,
		"PARTICIPANT_NOT_FOUND",
		"找不到該會員",
		"",
	)

	ErrIdentifierExhausted = NewBaseError(
		http.StatusServiceUnavailable,
		"IDENTIFIER_EXHAUSTED",
		"無法產生唯一識別碼，請稍後再試",
		"",
	)

	// Placement-related errors
	ErrUnknownSponsor = NewBaseError(
		http.StatusNotFound,
		"UNKNOWN_SPONSOR",
		"推薦碼不存在",
		"",
	)

	ErrAlreadyPlaced = NewBaseError(
		http.StatusConflict,
		"ALREADY_PLACED",
		"該會員已安置於組織樹中",
		"",
	)

	ErrSelfSponsor = NewBaseError(
		http.StatusBadRequest,
		"SELF_SPONSOR",
		"不可使用自己的推薦碼",
		"",
	)

	ErrNotALeaf = NewBaseError(
		http.StatusConflict,
		"PARTICIPANT_HAS_DOWNLINE",
		"已有下線的會員不可重新安置",
		"",
	)

	ErrTreeFull = NewBaseError(
		http.StatusConflict,
		"TREE_FULL",
		"推薦人組織下已無可用位置",
		"",
	)

	ErrPlacementFailed = NewBaseError(
		http.StatusServiceUnavailable,
		"PLACEMENT_FAILED",
		"安置衝突重試次數已用盡",
		"",
	)

	ErrInvalidWalkLimit = NewBaseError(
		http.StatusBadRequest,
		"INVALID_WALK_LIMIT",
		"查詢層數不可為負數",
		"",
	)

	// Commission-related errors
	ErrInvalidSchedule = NewBaseError(
		http.StatusBadRequest,
		"INVALID_SCHEDULE",
		"獎金分配表設定無效",
		"",
	)

	ErrInvalidDistribution = NewBaseError(
		http.StatusBadRequest,
		"INVALID_DISTRIBUTION",
		"獎金分配請求無效",
		"",
	)

	ErrInvalidCommissionStatus = NewBaseError(
		http.StatusBadRequest,
		"INVALID_COMMISSION_STATUS",
		"無效的獎金狀態",
		"",
	)

	// Store-related errors
	ErrStoreUnavailable = NewBaseError(
		http.StatusServiceUnavailable,
		"STORE_UNAVAILABLE",
		"資料庫暫時無法使用",
		"",
	)
)

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// Unwrap exposes the driver error
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusServiceUnavailable
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "資料庫執行失敗"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}
