package errors

import (
	"fmt"
	"time"
)

// ErrorType tags which stage of the pipeline an error came from. The
// orchestrator consumes all of them through the same record-and-continue
// path; only ErrIndex aborts a run.
type ErrorType string

const (
	ErrIndex ErrorType = "INDEX"
	ErrFetch ErrorType = "FETCH"
	ErrClone ErrorType = "CLONE"
	ErrStore ErrorType = "STORE"
)

// AppError represents an application error
type AppError struct {
	Type      ErrorType
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:      errType,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

func is(err error, t ErrorType) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type == t
	}
	return false
}

// IsIndexError checks if the error came from the index source
func IsIndexError(err error) bool {
	return is(err, ErrIndex)
}

// IsFetchError checks if the error came from the metadata client
func IsFetchError(err error) bool {
	return is(err, ErrFetch)
}

// IsCloneError checks if the error came from the clone executor
func IsCloneError(err error) bool {
	return is(err, ErrClone)
}

// IsStoreError checks if the error came from the state store
func IsStoreError(err error) bool {
	return is(err, ErrStore)
}

// NewIndexError creates a new index error. Index errors are fatal to a run:
// without the index nothing is known and nothing can proceed.
func NewIndexError(message string, err error) *AppError {
	return New(ErrIndex, message, err)
}

// NewFetchError creates a new metadata fetch error
func NewFetchError(message string, err error) *AppError {
	return New(ErrFetch, message, err)
}

// NewCloneError creates a new clone error. All clone failure modes (auth,
// network, disk, malformed URL) collapse into this one type.
func NewCloneError(message string, err error) *AppError {
	return New(ErrClone, message, err)
}

// NewStoreError creates a new state store error
func NewStoreError(message string, err error) *AppError {
	return New(ErrStore, message, err)
}
