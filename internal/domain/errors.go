package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound matches every NotFoundError via errors.Is
	ErrNotFound = errors.New("not found")
	// ErrValidation matches every ValidationError via errors.Is
	ErrValidation = errors.New("validation failed")
)

// LoadError is returned when the candidate catalog or the annotation file
// can't be read or parsed
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("while loading '%s': %s", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NotFoundError represents an unknown image index, image id or annotation id
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError lists what is missing from an annotation payload
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "invalid annotation: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// SaveError wraps a failed write of the annotation file
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("while saving '%s': %s", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
