package cooccur

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddInsertsAndIncrements(t *testing.T) {
	acc := NewAccumulator(3)
	acc.Add(0, 1, 0.5)
	acc.Add(0, 1, 0.25)
	acc.Add(1, 0, 1)

	assert.Equal(t, 0.75, acc.Get(0, 1))
	assert.Equal(t, 1.0, acc.Get(1, 0))
	assert.Equal(t, 0.0, acc.Get(2, 2))
	assert.Equal(t, 2, acc.Len())
	assert.Equal(t, int64(3), acc.Adds())
}

func TestKeyPackingKeepsRowAndColDistinct(t *testing.T) {
	acc := NewAccumulator(1 << 20)
	acc.Add(1, 0, 1)
	acc.Add(0, 1, 2)
	acc.Add(1<<19, 7, 3)

	assert.Equal(t, 1.0, acc.Get(1, 0))
	assert.Equal(t, 2.0, acc.Get(0, 1))
	assert.Equal(t, 3.0, acc.Get(1<<19, 7))

	row, col := unpackKey(packKey(1<<19, 7))
	assert.Equal(t, 1<<19, row)
	assert.Equal(t, 7, col)
}

func TestExport(t *testing.T) {
	acc := NewAccumulator(2)
	acc.Add(0, 0, 1)
	acc.Add(0, 1, 0.5)
	acc.Add(1, 0, 0.5)

	m := acc.Export([]string{"100", "200"})

	assert.Equal(t, [2]int{2, 2}, m.Dim)
	assert.Equal(t, []string{"100", "200"}, m.RowLabels)
	assert.Equal(t, m.RowLabels, m.ColLabels)
	assert.ElementsMatch(t, []Triplet{
		{Row: 0, Col: 0, Value: 1},
		{Row: 0, Col: 1, Value: 0.5},
		{Row: 1, Col: 0, Value: 0.5},
	}, m.Triplets())
}

func TestExportDimensionUsesLabelCountWhenLarger(t *testing.T) {
	acc := NewAccumulator(1)
	m := acc.Export([]string{"a", "b", "c"})
	assert.Equal(t, [2]int{3, 3}, m.Dim)

	m = NewAccumulator(5).Export([]string{"a"})
	assert.Equal(t, [2]int{5, 5}, m.Dim)
}

func TestExportIsIdempotent(t *testing.T) {
	acc := NewAccumulator(4)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			acc.Add(i, j, float64(i*4+j))
		}
	}

	first := acc.Export(nil)
	second := acc.Export(nil)
	assert.ElementsMatch(t, first.Triplets(), second.Triplets())
	assert.Equal(t, first.Sorted(), second.Sorted())
}

func TestExportDoesNotAliasLabels(t *testing.T) {
	labels := []string{"1"}
	m := NewAccumulator(1).Export(labels)
	labels[0] = "changed"
	assert.Equal(t, "1", m.RowLabels[0])
}

func TestMerge(t *testing.T) {
	a := NewAccumulator(2)
	a.Add(0, 0, 1)
	b := NewAccumulator(2)
	b.Add(0, 0, 2)
	b.Add(1, 1, 4)

	require.NoError(t, a.Merge(b))
	assert.Equal(t, 3.0, a.Get(0, 0))
	assert.Equal(t, 4.0, a.Get(1, 1))
	assert.Equal(t, 2, a.Len())
	// source untouched
	assert.Equal(t, 2.0, b.Get(0, 0))
}

func TestMergeDimensionMismatch(t *testing.T) {
	assert.Error(t, NewAccumulator(2).Merge(NewAccumulator(3)))
}

func TestReset(t *testing.T) {
	acc := NewAccumulator(2)
	acc.Add(1, 1, 1)
	acc.Reset()
	assert.Equal(t, 0, acc.Len())
	assert.Equal(t, 2, acc.Dim())
}

func TestSortedOrdersByRowThenCol(t *testing.T) {
	m := &Matrix{
		Rows:   []int32{1, 0, 1, 0},
		Cols:   []int32{0, 1, 1, 0},
		Values: []float64{3, 2, 4, 1},
		Dim:    [2]int{2, 2},
	}
	s := m.Sorted()

	assert.Equal(t, []int32{0, 0, 1, 1}, s.Rows)
	assert.Equal(t, []int32{0, 1, 0, 1}, s.Cols)
	assert.Equal(t, []float64{1, 2, 3, 4}, s.Values)
	assert.Equal(t, 10.0, s.Total())
	// original unchanged
	assert.Equal(t, []int32{1, 0, 1, 0}, m.Rows)
}

func BenchmarkAccumulatorAdd(b *testing.B) {
	acc := NewAccumulator(5000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		acc.Add(i%5000, (i*7)%5000, 1)
	}
}
