package convergence

import (
	"time"

	"github.com/okian/fedbench/pkg/logger"
)

// Option applies a configuration option to the SufficientProgress checker.
type Option func(*SufficientProgress)

// WithPatience sets the progress window size.
func WithPatience(patience int) Option {
	return func(c *SufficientProgress) {
		if patience > 0 {
			c.patience = patience
		}
	}
}

// WithEps sets the convergence threshold. Values outside (0, 1) are ignored.
func WithEps(eps float64) Option {
	return func(c *SufficientProgress) {
		if eps > 0 && eps < 1 {
			c.eps = eps
		}
	}
}

// WithKeyToMonitor sets the record key used for decisions.
func WithKeyToMonitor(key string) Option {
	return func(c *SufficientProgress) {
		if key != "" {
			c.key = key
		}
	}
}

// WithLogger sets the logger used for exit diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(c *SufficientProgress) {
		if l != nil {
			c.logger = l
		}
	}
}

// TrackerOption applies a configuration option to the Tracker.
type TrackerOption func(*Tracker)

// WithMaxRuns stops the run after n observed rounds. Zero disables the limit.
func WithMaxRuns(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.maxRuns = n
		}
	}
}

// WithTimeout stops the run once d has elapsed since the first record.
func WithTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithTrackerLogger sets the tracker logger.
func WithTrackerLogger(l logger.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}
