package model

import "errors"

// Sentinel errors for models, losses and metrics.
var (
	ErrFeatureMismatch = errors.New("feature count does not match model")
	ErrLengthMismatch  = errors.New("predictions and targets differ in length")
	ErrEmptyInput      = errors.New("empty input")
	ErrUndefinedMetric = errors.New("metric undefined for input")
)
