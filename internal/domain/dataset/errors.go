package dataset

import "errors"

// Sentinel errors for federated datasets.
var (
	ErrUnavailable   = errors.New("dataset unavailable")
	ErrInvalidParams = errors.New("invalid dataset parameters")
	ErrInvalidSplit  = errors.New("invalid train/test split")
	ErrUnknown       = errors.New("unknown dataset")
)
