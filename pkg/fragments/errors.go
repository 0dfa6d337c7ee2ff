package fragments

import (
	"errors"
	"fmt"

	"github.com/tendant/simple-fragments/pkg/fragments/convert"
)

// Error types
var (
	// ErrInvalidFragment indicates bad construction arguments
	ErrInvalidFragment = errors.New("invalid fragment")

	// ErrInvalidInput indicates a malformed byte payload
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the owner has no fragment with the given id
	ErrNotFound = errors.New("fragment not found")

	// ErrTypeMismatch indicates a replacement whose type differs from the stored fragment
	ErrTypeMismatch = errors.New("content type does not match fragment type")

	// ErrStorage indicates an underlying persistence failure
	ErrStorage = errors.New("storage failure")

	// ErrUnsupportedConversion indicates the requested target is not in the fragment's formats.
	// It is an expected outcome, not a fault.
	ErrUnsupportedConversion = convert.ErrUnsupported

	// ErrConversionNotImplemented indicates a legal pair without a transformation
	ErrConversionNotImplemented = convert.ErrNotImplemented
)

// FragmentError represents an error related to a fragment operation
type FragmentError struct {
	OwnerID string
	ID      string
	Op      string
	Err     error
}

func (e *FragmentError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("fragment operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("fragment operation %s failed for fragment %s: %v", e.Op, e.ID, e.Err)
}

func (e *FragmentError) Unwrap() error {
	return e.Err
}

// StorageError represents a failure in the metadata repository or blob store.
// It matches ErrStorage under errors.Is while still unwrapping to the cause.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports ErrStorage as a match.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func invalid(op, format string, args ...any) error {
	return &FragmentError{Op: op, Err: fmt.Errorf("%w: %s", ErrInvalidFragment, fmt.Sprintf(format, args...))}
}
