package evaluation

import "github.com/okian/fedbench/pkg/logger"

// DefaultBatchSize is the test-time batch size.
const DefaultBatchSize = 100

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithBatchSize sets the batch size used to iterate every split.
// Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithLogger sets the aggregator logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}
