package strategy

import "errors"

// Sentinel errors for strategies.
var (
	ErrUnknownKind   = errors.New("unknown strategy kind")
	ErrInvalidParams = errors.New("invalid strategy parameters")
	ErrInvalidName   = errors.New("invalid strategy name")
)
