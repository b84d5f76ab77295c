package evaluation

import "errors"

// Sentinel errors for evaluation.
var (
	ErrNoDefinedClients = errors.New("no client has a defined metric")
	ErrEmptyDataset     = errors.New("dataset yields no batches")
	ErrNilModel         = errors.New("model is nil")
	ErrNonFiniteLoss    = errors.New("loss is not finite")
)
