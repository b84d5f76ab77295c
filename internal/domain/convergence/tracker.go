package convergence

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/fedbench/internal/domain/objective"
	"github.com/okian/fedbench/pkg/logger"
	"github.com/okian/fedbench/pkg/metrics"
)

// Tracker holds the state of one run: the objective history, the best
// objective seen so far and the checker fed after every round.
type Tracker struct {
	mu sync.RWMutex

	checker Checker
	key     string

	history objective.History
	best    float64
	last    Decision
	stopped bool
	started time.Time

	maxRuns int
	timeout time.Duration
	now     func() time.Time

	logger logger.Logger
}

// State is a read-only snapshot of a Tracker.
type State struct {
	History objective.History `json:"history"`
	Best    float64           `json:"best"`
	Last    Decision          `json:"last"`
	Rounds  int               `json:"rounds"`
	Stopped bool              `json:"stopped"`
}

// NewTracker creates a tracker monitoring key with checker.
func NewTracker(checker Checker, key string, opts ...TrackerOption) *Tracker {
	if key == "" {
		key = objective.DefaultKey
	}
	t := &Tracker{
		checker: checker,
		key:     key,
		best:    math.Inf(1),
		last:    Decision{Reason: ReasonRunning},
		now:     time.Now,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Key returns the monitored record key.
func (t *Tracker) Key() string { return t.key }

// Observe appends r to the history and returns the stop decision for it.
// The first record is the pre-training baseline and only seeds the best
// objective. Non-finite monitored values are rejected without touching the
// run state. Once a decision stops the run, later calls fail with ErrStopped.
func (t *Tracker) Observe(ctx context.Context, r objective.Record) (Decision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return t.last, ErrStopped
	}

	current, err := r.Monitored(t.key)
	if err != nil {
		return Decision{}, err
	}
	if math.IsNaN(current) || math.IsInf(current, 0) {
		return Decision{}, fmt.Errorf("%w: %q", objective.ErrNonFinite, t.key)
	}

	if len(t.history) == 0 {
		if current == 0 {
			return Decision{}, fmt.Errorf("%w: key %q", ErrZeroStartObjective, t.key)
		}
		t.history = t.history.Append(r)
		t.best = current
		t.started = t.now()
		t.last = Decision{Reason: ReasonRunning}
		metrics.RecordRoundObserved(current)
		return t.last, nil
	}

	history := t.history.Append(r)
	d, err := t.checker.Check(ctx, history, t.best)
	if err != nil {
		return Decision{}, err
	}
	t.history = history
	t.best = math.Min(t.best, current)
	metrics.RecordRoundObserved(current)

	if !d.Stop {
		switch {
		case t.maxRuns > 0 && len(t.history)-1 >= t.maxRuns:
			d = Decision{Stop: true, Progress: d.Progress, Reason: ReasonMaxRuns}
		case t.timeout > 0 && t.now().Sub(t.started) >= t.timeout:
			d = Decision{Stop: true, Progress: d.Progress, Reason: ReasonTimeout}
		}
	}

	if sp, ok := t.checker.(*SufficientProgress); ok {
		metrics.UpdateProgressWindowSize(len(sp.window))
	}
	metrics.UpdateProgress(d.Progress)

	t.last = d
	if d.Stop {
		t.stopped = true
		metrics.RecordStopDecision(string(d.Reason))
		t.logger.Info(ctx, "run stopped",
			logger.String("reason", string(d.Reason)),
			logger.Int("rounds", len(t.history)-1),
			logger.Float64("best", t.best),
		)
	}
	return d, nil
}

// Snapshot returns a copy of the tracker state.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h := make(objective.History, len(t.history))
	copy(h, t.history)
	best := t.best
	if len(h) == 0 {
		best = 0
	}
	return State{
		History: h,
		Best:    best,
		Last:    t.last,
		Rounds:  max(len(h)-1, 0),
		Stopped: t.stopped,
	}
}

// Stopped reports whether a stopping decision was reached.
func (t *Tracker) Stopped() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stopped
}

// Reset clears the run state so the tracker can monitor a new run.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = nil
	t.best = math.Inf(1)
	t.last = Decision{Reason: ReasonRunning}
	t.stopped = false
	t.started = time.Time{}
	t.checker.Reset()
}
