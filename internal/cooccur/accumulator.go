// Package cooccur holds the sparse additive store the builder accumulates
// into, and the coordinate-list matrix it exports.
package cooccur

import "fmt"

// Accumulator is a sparse (row, col) -> weight map that is only ever added
// to. It is not safe for concurrent use; sharded builds give each worker its
// own Accumulator and Merge the results.
type Accumulator struct {
	dim     int
	entries map[uint64]float64
	adds    int64
}

func NewAccumulator(dim int) *Accumulator {
	return &Accumulator{
		dim:     dim,
		entries: make(map[uint64]float64),
	}
}

func packKey(row, col int) uint64 {
	return uint64(uint32(row))<<32 | uint64(uint32(col))
}

func unpackKey(k uint64) (row, col int) {
	return int(uint32(k >> 32)), int(uint32(k))
}

// Add increments cell (row, col) by w. A missing cell starts at zero.
func (a *Accumulator) Add(row, col int, w float64) {
	a.entries[packKey(row, col)] += w
	a.adds++
}

func (a *Accumulator) Get(row, col int) float64 {
	return a.entries[packKey(row, col)]
}

// Len is the number of distinct cells written.
func (a *Accumulator) Len() int {
	return len(a.entries)
}

// Adds is the number of Add calls, i.e. window pairs visited.
func (a *Accumulator) Adds() int64 {
	return a.adds
}

func (a *Accumulator) Dim() int {
	return a.dim
}

// Merge adds every cell of other into a. other is left unchanged.
func (a *Accumulator) Merge(other *Accumulator) error {
	if other.dim != a.dim {
		return fmt.Errorf("merging accumulator of dimension %d into %d", other.dim, a.dim)
	}
	for k, v := range other.entries {
		a.entries[k] += v
	}
	a.adds += other.adds
	return nil
}

// Reset drops all cells but keeps the dimension.
func (a *Accumulator) Reset() {
	a.entries = make(map[uint64]float64)
	a.adds = 0
}

// Export copies the cells into a coordinate-list Matrix. Entry order follows
// map iteration and must not be relied on. The dimension is the larger of
// the declared dimension and len(labels); labels are used for both axes.
func (a *Accumulator) Export(labels []string) *Matrix {
	m := &Matrix{
		Rows:   make([]int32, 0, len(a.entries)),
		Cols:   make([]int32, 0, len(a.entries)),
		Values: make([]float64, 0, len(a.entries)),
	}
	for k, v := range a.entries {
		row, col := unpackKey(k)
		m.Rows = append(m.Rows, int32(row))
		m.Cols = append(m.Cols, int32(col))
		m.Values = append(m.Values, v)
	}
	n := max(a.dim, len(labels))
	m.Dim = [2]int{n, n}
	m.RowLabels = append([]string(nil), labels...)
	m.ColLabels = append([]string(nil), labels...)
	return m
}
