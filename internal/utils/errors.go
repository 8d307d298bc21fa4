// Package utils holds small helpers shared by the HDF5 read path.
package utils

import "fmt"

// FormatError is an error raised while decoding an on-disk structure.
// Context names the structure or step, Cause is the underlying failure.
type FormatError struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *FormatError) Unwrap() error {
	return e.Cause
}

// WrapError creates a contextual error. A nil cause yields nil.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &FormatError{
		Context: context,
		Cause:   cause,
	}
}
