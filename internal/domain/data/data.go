// Package data provides in-memory datasets and the batch loader used for
// federated evaluation.
package data

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Sentinel errors for datasets.
var (
	ErrShapeMismatch = errors.New("features and labels disagree on sample count")
	ErrIndexRange    = errors.New("sample index out of range")
	ErrBatchSize     = errors.New("batch size must be positive")
)

// Dataset is an indexable collection of (features, label) samples.
type Dataset interface {
	Len() int
	Features() int
	Sample(i int) (x []float64, y float64)
}

// Batch is one sequential slice of a dataset.
type Batch struct {
	X *mat.Dense
	Y []float64
}

// InMemory is a Dataset backed by a dense feature matrix.
type InMemory struct {
	x *mat.Dense
	y []float64
}

// NewInMemory wraps x (n rows) and y (n labels).
func NewInMemory(x *mat.Dense, y []float64) (*InMemory, error) {
	r, _ := x.Dims()
	if r != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, r, len(y))
	}
	return &InMemory{x: x, y: y}, nil
}

// FromRows builds an InMemory from row slices.
func FromRows(rows [][]float64, y []float64) (*InMemory, error) {
	if len(rows) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(rows), len(y))
	}
	if len(rows) == 0 {
		return &InMemory{x: &mat.Dense{}, y: nil}, nil
	}
	cols := len(rows[0])
	flat := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(r), cols)
		}
		flat = append(flat, r...)
	}
	return NewInMemory(mat.NewDense(len(rows), cols, flat), y)
}

// Len implements Dataset.
func (d *InMemory) Len() int { return len(d.y) }

// Features implements Dataset.
func (d *InMemory) Features() int {
	if len(d.y) == 0 {
		return 0
	}
	_, c := d.x.Dims()
	return c
}

// Sample implements Dataset.
func (d *InMemory) Sample(i int) ([]float64, float64) {
	return mat.Row(nil, i, d.x), d.y[i]
}

type subset struct {
	base    Dataset
	indices []int
}

// Subset returns a view of base restricted to indices.
func Subset(base Dataset, indices []int) (Dataset, error) {
	for _, i := range indices {
		if i < 0 || i >= base.Len() {
			return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexRange, i, base.Len())
		}
	}
	idx := make([]int, len(indices))
	copy(idx, indices)
	return &subset{base: base, indices: idx}, nil
}

func (s *subset) Len() int      { return len(s.indices) }
func (s *subset) Features() int { return s.base.Features() }
func (s *subset) Sample(i int) ([]float64, float64) {
	return s.base.Sample(s.indices[i])
}

type concat struct {
	parts   []Dataset
	offsets []int
	n       int
}

// Concat chains datasets end to end.
func Concat(parts ...Dataset) Dataset {
	c := &concat{parts: parts, offsets: make([]int, len(parts))}
	for i, p := range parts {
		c.offsets[i] = c.n
		c.n += p.Len()
	}
	return c
}

func (c *concat) Len() int { return c.n }

func (c *concat) Features() int {
	for _, p := range c.parts {
		if p.Len() > 0 {
			return p.Features()
		}
	}
	return 0
}

func (c *concat) Sample(i int) ([]float64, float64) {
	for k := len(c.parts) - 1; k >= 0; k-- {
		if i >= c.offsets[k] {
			return c.parts[k].Sample(i - c.offsets[k])
		}
	}
	panic(fmt.Sprintf("data: index %d out of range", i))
}

// Labels returns every label of ds in order.
func Labels(ds Dataset) []float64 {
	out := make([]float64, ds.Len())
	for i := range out {
		_, out[i] = ds.Sample(i)
	}
	return out
}

// Batches splits ds sequentially into batches of at most batchSize samples.
func Batches(ds Dataset, batchSize int) ([]Batch, error) {
	if batchSize <= 0 {
		return nil, ErrBatchSize
	}
	n := ds.Len()
	if n == 0 {
		return nil, nil
	}
	cols := ds.Features()
	out := make([]Batch, 0, (n+batchSize-1)/batchSize)
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		x := mat.NewDense(end-start, cols, nil)
		y := make([]float64, end-start)
		for i := start; i < end; i++ {
			row, label := ds.Sample(i)
			x.SetRow(i-start, row)
			y[i-start] = label
		}
		out = append(out, Batch{X: x, Y: y})
	}
	return out, nil
}
