package http

import (
	"fmt"
	"net/http"
)

// Error codes returned in AppError.Code.
const (
	CodeNotFound   = "ERR_NOT_FOUND"
	CodeBadRequest = "ERR_BAD_REQUEST"
	CodeInternal   = "ERR_INTERNAL"
)

// AppError is an error that carries its HTTP status. Field names the request
// parameter at fault, if any.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// OnField attributes the error to a request parameter.
func (e *AppError) OnField(field string) *AppError {
	e.Field = field
	return e
}

// WithParam attaches a detail, e.g. the rejected value.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = map[string]interface{}{}
	}
	e.Params[key] = value
	return e
}

// WithError keeps the cause for logs; it is never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return newAppError(http.StatusNotFound, CodeNotFound, message)
}

func BadRequestError(message string) *AppError {
	return newAppError(http.StatusBadRequest, CodeBadRequest, message)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

func InternalError(message string) *AppError {
	return newAppError(http.StatusInternalServerError, CodeInternal, message)
}
