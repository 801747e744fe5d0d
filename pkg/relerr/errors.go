// Package relerr defines the error kinds shared across the framework so
// that callers can use errors.Is/errors.As regardless of which package
// raised the failure.
package relerr

import "errors"

// Sentinel kinds. Wrap these with fmt.Errorf("...: %w", ErrX) or use the
// typed wrappers below when extra context (state, middleware, branch id)
// needs to travel with the error.
var (
	ErrInvalidExpression  = errors.New("invalid expression")
	ErrInvalidAdapter     = errors.New("invalid adapter")
	ErrAdapterTimeout     = errors.New("adapter timeout")
	ErrMiddlewareError    = errors.New("middleware error")
	ErrBranchError        = errors.New("branch error")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// MiddlewareError wraps a piece-thrown error with the middleware type that
// raised it, per the error kind table.
type MiddlewareError struct {
	Middleware string
	Err        error
}

func (e *MiddlewareError) Error() string {
	return "middleware error in " + e.Middleware + ": " + e.Err.Error()
}

func (e *MiddlewareError) Unwrap() error { return e.Err }

func (e *MiddlewareError) Is(target error) bool { return target == ErrMiddlewareError }

// NewMiddlewareError builds a MiddlewareError annotated with the stack
// type it occurred in.
func NewMiddlewareError(middleware string, err error) error {
	return &MiddlewareError{Middleware: middleware, Err: err}
}

// BranchError wraps a branch callback error with the id of the branch
// that raised it.
type BranchError struct {
	BranchID string
	Err      error
}

func (e *BranchError) Error() string {
	return "branch error in " + e.BranchID + ": " + e.Err.Error()
}

func (e *BranchError) Unwrap() error { return e.Err }

func (e *BranchError) Is(target error) bool { return target == ErrBranchError }

// NewBranchError builds a BranchError annotated with the id of the
// offending branch.
func NewBranchError(branchID string, err error) error {
	return &BranchError{BranchID: branchID, Err: err}
}
