// Package apperr defines the sentinel errors shared by the journal layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrFrontMatterFormat = errors.New("malformed front matter")
	ErrMalformedName     = errors.New("malformed entry file name")
	ErrInvalidTag        = errors.New("invalid tag")
	ErrTagNotFound       = errors.New("tag not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrStorage           = errors.New("storage error")
	ErrInvalidRange      = errors.New("invalid date range")
	ErrNoFilter          = errors.New("query has neither a date range nor tags")
	ErrListingConsumed   = errors.New("file listing already consumed")
	ErrInvalidPath       = errors.New("path escapes journal root")

	// ErrNotFound is kept for callers that only care about absence.
	ErrNotFound = ErrRecordNotFound
)

// StorageError wraps an I/O failure with the operation and path that caused it.
// It matches ErrStorage as well as the wrapped error.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// Storage builds a StorageError. It returns nil when err is nil.
func Storage(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Path: path, Err: err}
}
