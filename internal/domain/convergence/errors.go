package convergence

import "errors"

// Sentinel errors for convergence checks.
var (
	ErrZeroStartObjective = errors.New("starting objective is zero")
	ErrStopped            = errors.New("tracker already stopped")
)
