package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNoEmbedding        = errors.New("post has no embedding")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrExhaustedRetries   = errors.New("retries exhausted")
	ErrQueueUnavailable   = errors.New("job queue unavailable")
	ErrModelUnavailable   = errors.New("no model provider available")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)

// TransientIOError marks a failure of an external dependency (store, broker,
// model provider) that may succeed on retry.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }

func NewTransient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientIOError{Op: op, Err: err}
}

// InsufficientDataError is a typed "no result" outcome. Callers render it
// rather than treat it as a crash.
type InsufficientDataError struct {
	Reason     string
	Suggestion string
}

func (e *InsufficientDataError) Error() string { return e.Reason }

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// InvalidInputError is returned before any I/O is attempted.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidArgument }

func NewInvalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// ExhaustedRetriesError reports a job that failed on its final attempt.
type ExhaustedRetriesError struct {
	JobID    string
	Attempts int
	Err      error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("job %s failed after %d attempts: %v", e.JobID, e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() []error { return []error{ErrExhaustedRetries, e.Err} }

func IsTransient(err error) bool {
	var t *TransientIOError
	return errors.As(err, &t)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}
