package builder

import (
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/concept"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/cooccur"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/timeline"
)

// window scans one sorted timeline and adds every (target, context) pair in
// range to an accumulator. It keeps a scratch buffer, so each goroutine needs
// its own window.
type window struct {
	index   *concept.Index
	weights WeightTable
	prior   int
	post    int
	rows    []int
}

func newWindow(index *concept.Index, weights WeightTable, prior, post int) *window {
	return &window{
		index:   index,
		weights: weights,
		prior:   prior,
		post:    post,
		rows:    make([]int, 0, 64),
	}
}

// accumulate returns the number of pairs added. events must be sorted by
// (StartDay, ConceptID). Every concept is resolved before anything is added,
// so an unknown concept leaves acc untouched for this timeline.
func (w *window) accumulate(acc *cooccur.Accumulator, events []timeline.ConceptEvent) (int64, error) {
	n := len(events)
	if n == 0 {
		return 0, nil
	}
	w.rows = w.rows[:0]
	for _, e := range events {
		row, err := w.index.IndexOf(e.ConceptID)
		if err != nil {
			return 0, err
		}
		w.rows = append(w.rows, row)
	}

	var pairs int64
	lo, hi := 0, 0
	day := events[0].StartDay
	for t := 0; t < n; t++ {
		// cursors only move when the target day changes; same-day targets
		// share the previous bounds
		if t == 0 || events[t].StartDay != day {
			day = events[t].StartDay
			for lo < n-1 && events[lo].StartDay < day-w.prior {
				lo++
			}
			for hi < n-1 && events[hi].StartDay <= day+w.post {
				hi++
			}
			if events[hi].StartDay > day+w.post {
				hi--
			}
		}
		target := w.rows[t]
		for c := lo; c <= hi; c++ {
			offset := events[c].StartDay - day + w.prior
			acc.Add(target, w.rows[c], w.weights[offset])
		}
		pairs += int64(hi - lo + 1)
	}
	return pairs, nil
}
