// Package apperr holds the error taxonomy shared by the conversion pipeline.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrAttachmentMissing  = errors.New("attachment missing")
	ErrRenderFailure      = errors.New("render failure")
	ErrPersistenceFailure = errors.New("persistence failure")
)

// RecordError ties a pipeline failure to the export record that caused it.
type RecordError struct {
	Path string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Record wraps err with the source record path. A nil err stays nil.
func Record(path string, err error) error {
	if err == nil {
		return nil
	}
	var re *RecordError
	if errors.As(err, &re) && re.Path == path {
		return err
	}
	return &RecordError{Path: path, Err: err}
}

// Malformed builds an ErrMalformedRecord error with a reason.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...))
}
