package cooccur

import "sort"

// Matrix is a sparse matrix in coordinate form: Rows[i], Cols[i], Values[i]
// describe one non-empty cell.
type Matrix struct {
	Rows      []int32   `json:"i"`
	Cols      []int32   `json:"j"`
	Values    []float64 `json:"x"`
	Dim       [2]int    `json:"dim"`
	RowLabels []string  `json:"row_labels"`
	ColLabels []string  `json:"col_labels"`
}

// Triplet is one cell of a Matrix.
type Triplet struct {
	Row   int32
	Col   int32
	Value float64
}

func (m *Matrix) NNZ() int {
	return len(m.Values)
}

// Triplets returns the cells in storage order.
func (m *Matrix) Triplets() []Triplet {
	out := make([]Triplet, len(m.Values))
	for i := range m.Values {
		out[i] = Triplet{Row: m.Rows[i], Col: m.Cols[i], Value: m.Values[i]}
	}
	return out
}

// Sorted returns a copy whose cells are ordered by (row, col).
func (m *Matrix) Sorted() *Matrix {
	triplets := m.Triplets()
	sort.Slice(triplets, func(i, j int) bool {
		if triplets[i].Row != triplets[j].Row {
			return triplets[i].Row < triplets[j].Row
		}
		return triplets[i].Col < triplets[j].Col
	})
	out := &Matrix{
		Rows:      make([]int32, len(triplets)),
		Cols:      make([]int32, len(triplets)),
		Values:    make([]float64, len(triplets)),
		Dim:       m.Dim,
		RowLabels: append([]string(nil), m.RowLabels...),
		ColLabels: append([]string(nil), m.ColLabels...),
	}
	for i, t := range triplets {
		out.Rows[i], out.Cols[i], out.Values[i] = t.Row, t.Col, t.Value
	}
	return out
}

// Total is the sum of all values.
func (m *Matrix) Total() float64 {
	var sum float64
	for _, v := range m.Values {
		sum += v
	}
	return sum
}
