package shared

import (
	"errors"
	"net/http"
)

// AppError carries an HTTP status alongside the wrapped cause so handlers can
// return domain errors and let the fiber ErrorHandler translate them.
type AppError struct {
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`

	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(statusCode int, err error, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

func NewBadRequestError(err error, message string) *AppError {
	return NewAppError(http.StatusBadRequest, err, message)
}

func NewUnauthorizedError(err error, message string) *AppError {
	return NewAppError(http.StatusUnauthorized, err, message)
}

// NewPaymentRequiredError signals a debit that would take a balance negative.
func NewPaymentRequiredError(err error, message string) *AppError {
	return NewAppError(http.StatusPaymentRequired, err, message)
}

func NewForbiddenError(err error, message string) *AppError {
	return NewAppError(http.StatusForbidden, err, message)
}

func NewNotFoundError(err error, message string) *AppError {
	return NewAppError(http.StatusNotFound, err, message)
}

func NewConflictError(err error, message string) *AppError {
	return NewAppError(http.StatusConflict, err, message)
}

// NewTooEarlyError signals a timer completion requested before the timer
// actually elapsed server-side.
func NewTooEarlyError(err error, message string) *AppError {
	return NewAppError(http.StatusTooEarly, err, message)
}

func NewServiceUnavailableError(err error, message string) *AppError {
	return NewAppError(http.StatusServiceUnavailable, err, message)
}

func NewInternalError(err error, message string) *AppError {
	return NewAppError(http.StatusInternalServerError, err, message)
}

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
