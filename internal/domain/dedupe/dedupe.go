// Package dedupe tracks submission keys so a retried objective submission
// is applied to a run at most once.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen submission keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so a failed submission can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int
}

// inMemoryDeduper keeps keys in a map and evicts the oldest once maxSize
// is reached. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64
	order   []entry // insertion order, oldest first; may hold stale entries
	seq     uint64
	maxSize int
}

type entry struct {
	key string
	seq uint64
}

// NewInMemoryDeduper creates a deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: 50_000}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize {
			d.evictOldest()
		}
	}
	d.seq++
	d.seen[key] = d.seq
	d.order = append(d.order, entry{key: key, seq: d.seq})
	return false
}

// evictOldest drops the oldest live key, skipping entries already unrecorded.
func (d *inMemoryDeduper) evictOldest() {
	for len(d.order) > 0 {
		e := d.order[0]
		d.order = d.order[1:]
		if d.live(e) {
			delete(d.seen, e.key)
			return
		}
	}
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	if len(d.order) > 2*len(d.seen)+64 {
		d.compact()
	}
}

func (d *inMemoryDeduper) live(e entry) bool {
	seq, ok := d.seen[e.key]
	return ok && seq == e.seq
}

// compact rebuilds order without stale entries.
func (d *inMemoryDeduper) compact() {
	kept := make([]entry, 0, len(d.seen))
	for _, e := range d.order {
		if d.live(e) {
			kept = append(kept, e)
		}
	}
	d.order = kept
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
