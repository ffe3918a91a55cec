package service

import "errors"

// Error kinds surfaced to API callers. Wrap them with fmt.Errorf("%w: ...")
// and match with errors.Is.
var (
	ErrNotFound     = errors.New("recording not found")
	ErrForbidden    = errors.New("access denied")
	ErrUnauthorized = errors.New("invalid authentication credentials")
	ErrValidation   = errors.New("invalid request")
	ErrConflict     = errors.New("recording state conflict")
	ErrTooLarge     = errors.New("chunk too large")
	ErrUpstream     = errors.New("upstream provider failure")
)
