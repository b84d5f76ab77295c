package solver

import "errors"

// Sentinel errors for the solver.
var (
	ErrNotConfigured = errors.New("solver has no problem set")
	ErrNoModels      = errors.New("strategy exposes no models")
	ErrNoResult      = errors.New("solver has not run")
)
