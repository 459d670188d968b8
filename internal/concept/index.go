// Package concept maps concept ids onto dense matrix indices and holds the
// optional concept hierarchy used to roll events up to their ancestors.
package concept

import (
	"fmt"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/errors"
)

// Index is a bijection between the vocabulary and [0, Len()). It is fixed
// once built and safe for concurrent reads.
type Index struct {
	ids       []int64
	positions map[int64]int
}

// NewIndex assigns each id its position in ids. A repeated id keeps its first
// position; the dimension is still len(ids).
func NewIndex(ids []int64) *Index {
	idx := &Index{
		ids:       make([]int64, len(ids)),
		positions: make(map[int64]int, len(ids)),
	}
	copy(idx.ids, ids)
	for i, id := range ids {
		if _, exists := idx.positions[id]; !exists {
			idx.positions[id] = i
		}
	}
	return idx
}

// IndexOf returns the matrix index for id, or an error wrapping
// ErrUnknownConcept when id is not part of the vocabulary.
func (x *Index) IndexOf(id int64) (int, error) {
	pos, ok := x.positions[id]
	if !ok {
		return 0, fmt.Errorf("concept %d: %w", id, apperrors.ErrUnknownConcept)
	}
	return pos, nil
}

func (x *Index) Contains(id int64) bool {
	_, ok := x.positions[id]
	return ok
}

func (x *Index) Len() int {
	return len(x.ids)
}

// Labels returns the stringified vocabulary in index order.
func (x *Index) Labels() []string {
	labels := make([]string, len(x.ids))
	for i, id := range x.ids {
		labels[i] = strconv.FormatInt(id, 10)
	}
	return labels
}

// IDs returns a copy of the vocabulary in index order.
func (x *Index) IDs() []int64 {
	out := make([]int64, len(x.ids))
	copy(out, x.ids)
	return out
}
