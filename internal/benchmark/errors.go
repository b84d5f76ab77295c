package benchmark

import "errors"

// Sentinel errors for benchmark runs.
var (
	ErrNoData     = errors.New("dataset has no splits")
	ErrNotSet     = errors.New("objective has no data")
	ErrNoOutcomes = errors.New("no outcomes to compare")
)
