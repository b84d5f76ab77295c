// Package repository defines the run store interface and its in-memory
// implementation.
package repository

import (
	"context"
	"time"

	"github.com/okian/fedbench/internal/domain/convergence"
)

// Run is one monitored benchmark run.
type Run struct {
	ID        string
	CreatedAt time.Time
	Patience  int
	Eps       float64
	Key       string
	MaxRuns   int
	Timeout   time.Duration
	Tracker   *convergence.Tracker
}

// Store provides read/write access to runs.
type Store interface {
	// Create adds run. Returns ErrDuplicate when the id is taken and
	// ErrCapacity when the store is full.
	Create(ctx context.Context, run *Run) error

	// Get returns the run with id or ErrNotFound.
	Get(ctx context.Context, id string) (*Run, error)

	// List returns every run ordered by creation time.
	List(ctx context.Context) ([]*Run, error)

	// Delete removes the run with id or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored runs.
	Count(ctx context.Context) int
}
