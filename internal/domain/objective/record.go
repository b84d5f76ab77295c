// Package objective contains the per-round evaluation record and the run history
// that flows from the metric aggregator into the convergence checker.
package objective

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// DefaultKey is the record key monitored for stopping decisions.
const DefaultKey = "value"

// Sentinel errors for this package.
var (
	ErrMissingKey    = errors.New("monitored key missing from record")
	ErrNonFinite     = errors.New("record value is not finite")
	ErrEmptyHistory  = errors.New("objective history is empty")
	ErrInvalidRecord = errors.New("invalid objective record")
)

// Record maps metric names to scalar values for one evaluation round.
// The zero value is ready to use.
type Record struct {
	values map[string]float64
}

// NewRecord builds a Record from a plain map. The map is copied.
func NewRecord(values map[string]float64) Record {
	r := Record{values: make(map[string]float64, len(values))}
	for k, v := range values {
		r.values[k] = v
	}
	return r
}

// Set stores v under key.
func (r *Record) Set(key string, v float64) {
	if r.values == nil {
		r.values = make(map[string]float64)
	}
	r.values[key] = v
}

// Get returns the value stored under key.
func (r Record) Get(key string) (float64, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Monitored returns the value stored under key or ErrMissingKey.
func (r Record) Monitored(key string) (float64, error) {
	v, ok := r.values[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	return v, nil
}

// Len returns the number of entries.
func (r Record) Len() int { return len(r.values) }

// Keys returns the record keys with DefaultKey first and the rest sorted by name.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r.values))
	hasValue := false
	for k := range r.values {
		if k == DefaultKey {
			hasValue = true
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if hasValue {
		keys = append([]string{DefaultKey}, keys...)
	}
	return keys
}

// Map returns a copy of the underlying values.
func (r Record) Map() map[string]float64 {
	out := make(map[string]float64, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Validate checks that key is present and every value is finite.
func (r Record) Validate(key string) error {
	if _, err := r.Monitored(key); err != nil {
		return err
	}
	for _, k := range r.Keys() {
		v := r.values[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %q", ErrNonFinite, k)
		}
	}
	return nil
}

// MarshalJSON encodes the record as an object following Keys order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		v := r.values[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %q", ErrNonFinite, k)
		}
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat object of numbers.
func (r *Record) UnmarshalJSON(b []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	*r = NewRecord(m)
	return nil
}
