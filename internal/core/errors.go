package core

import (
	"errors"
	"fmt"
)

var (
	ErrMissingDate        = errors.New("missing date")
	ErrMissingDescription = errors.New("missing description")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")

	ErrMalformedPayload = errors.New("malformed payload")
	ErrIncompleteRecord = errors.New("incomplete record")
	ErrInvalidRecord    = errors.New("invalid record")

	ErrPersistence = errors.New("persistence failure")
	ErrFileRead    = errors.New("file read failure")
)

// ValidationError reports which candidate field was rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ImportError reports why a backup payload was refused. Index is -1 when the
// payload as a whole is at fault.
type ImportError struct {
	Index int
	Field string
	Err   error
	cause error
}

// NewImportError builds an ImportError; cause may be nil.
func NewImportError(kind error, index int, field string, cause error) *ImportError {
	return &ImportError{Index: index, Field: field, Err: kind, cause: cause}
}

func (e *ImportError) Error() string {
	msg := e.Err.Error()
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s at record %d", msg, e.Index)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %q)", e.Field)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ImportError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}

// PersistenceError wraps a storage read or write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// FileReadError wraps a failure to read a user-selected file.
type FileReadError struct {
	Name string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read file %q: %v", e.Name, e.Err)
}

func (e *FileReadError) Unwrap() []error { return []error{ErrFileRead, e.Err} }
