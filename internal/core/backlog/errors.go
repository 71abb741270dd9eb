package backlog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced item or task does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidStatus is returned for a status outside the closed set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrMissingField is returned when a required metadata field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidName is returned for a file or folder name that does not match
	// the expected numeric prefix pattern.
	ErrInvalidName = errors.New("invalid name")
)

// ParseError describes why a single file could not be parsed. It never
// aborts a scan; the scan turns it into a PARSE_ERROR issue.
type ParseError struct {
	Source string
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(source, field string, err error) *ParseError {
	return &ParseError{Source: source, Field: field, Err: err}
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound returns a NotFoundError for kind and key.
func NotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}
