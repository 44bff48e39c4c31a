package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller lacks scope over the target employee or department.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates a rejected input; nothing was written.
	ErrValidation = errors.New("validation failed")
)
