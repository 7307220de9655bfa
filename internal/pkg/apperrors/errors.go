package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrParse = errors.New("malformed ledger snapshot")

	ErrPersistenceCapacity = errors.New("storage capacity exceeded")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")

	ErrUnauthorized = errors.New("unauthorized")
)

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {

	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

// NewNotFoundError reports an unknown borrower, loan or other entity.
func NewNotFoundError(resource, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, resource, id)
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapDatabaseError(cause error, message string) error {
	return &AppError{
		Code:    "DB_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrDatabase, cause),
	}
}

// NewCapacityError marks a save rejected by the storage backend for lack of space.
func NewCapacityError(cause error, message string) error {
	if cause == nil {
		cause = ErrPersistenceCapacity
	} else {
		cause = fmt.Errorf("%w: %w", ErrPersistenceCapacity, cause)
	}
	return &AppError{
		Code:    "STORAGE_FULL",
		Message: message,
		Cause:   cause,
	}
}

func NewParseError(cause error, message string) error {
	if cause == nil {
		return &AppError{Code: "PARSE_ERROR", Message: message, Cause: ErrParse}
	}
	return &AppError{
		Code:    "PARSE_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrParse, cause),
	}
}

// IsPersistence reports whether err came from saving a snapshot, as opposed
// to a rejected operation.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistenceCapacity) || errors.Is(err, ErrDatabase)
}
