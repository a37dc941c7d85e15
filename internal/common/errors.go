package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	CodeImageLoad  = "IMAGE_LOAD"
	CodeOCRFailure = "OCR_FAILURE"
	CodeOCRConfig  = "OCR_CONFIG"
	CodeConfig     = "CONFIG_ERROR"
	CodeDatabase   = "DATABASE_ERROR"
	CodeInvalid    = "INVALID_INPUT"
	CodeNotFound   = "NOT_FOUND"
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrImageLoad    = errors.New("image load failed")
	ErrOCRFailure   = errors.New("ocr service failure")
	ErrOCRConfig    = errors.New("ocr service misconfigured")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ImageLoadError reports a missing or undecodable image. It matches ErrImageLoad
// and the underlying cause with errors.Is.
func ImageLoadError(path string, cause error) error {
	return NewAppError(CodeImageLoad, fmt.Sprintf("cannot load image %q", path), errors.Join(ErrImageLoad, cause))
}

// OCRFailure reports a failed or timed out OCR call.
func OCRFailure(engine string, cause error) error {
	return NewAppError(CodeOCRFailure, engine, errors.Join(ErrOCRFailure, cause))
}

// DatabaseError wraps a failed database operation so it matches ErrDatabase.
func DatabaseError(op string, cause error) error {
	return NewAppError(CodeDatabase, op, errors.Join(ErrDatabase, cause))
}

// IsImageLoad reports whether err is (or wraps) an image load failure.
func IsImageLoad(err error) bool {
	return errors.Is(err, ErrImageLoad)
}

// HTTPStatus maps an error to the status code the HTTP API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrImageLoad), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOCRFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
