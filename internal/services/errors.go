package services

import "github.com/ytakahashi/quicklist/internal/remote"

// notFoundError keeps the backend's message while matching remote.ErrNotFound.
type notFoundError struct {
	err error
}

func (e *notFoundError) Error() string { return e.err.Error() }

func (e *notFoundError) Unwrap() error { return e.err }

func (e *notFoundError) Is(target error) bool { return target == remote.ErrNotFound }
