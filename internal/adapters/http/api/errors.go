package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrBadTimeout = errors.New("invalid timeout; must be a Go duration")
)
