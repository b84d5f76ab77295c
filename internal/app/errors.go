package service

import "errors"

// Sentinel errors for the run service.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrInvalidSettings = errors.New("invalid run settings")
)
