package repository

import "errors"

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrStatusConflict indicates a conditional status transition matched no row
// because the recording is not in one of the expected states.
var ErrStatusConflict = errors.New("status conflict")
