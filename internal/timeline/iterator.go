// Package timeline assembles per-observation-period event timelines from a
// batched record stream. Periods and records are merged on their sequence id
// with two forward-only cursors, so the whole population is read in one pass.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/concept"
)

type Option func(*Iterator)

// WithAncestors enables roll-up: every event is replaced by one event per
// ancestor of its concept, and events without ancestors are dropped.
func WithAncestors(m concept.AncestorMap) Option {
	return func(it *Iterator) {
		it.ancestors = m
		it.rollUp = true
	}
}

// Stats counts what an Iterator has consumed so far.
type Stats struct {
	Periods        int64
	EmptyPeriods   int64
	RecordsRead    int64
	EventsEmitted  int64
	BatchesFetched int64
}

// Iterator yields one Timeline per observation period, in the order the
// periods were given. Records for a period must be contiguous in the source
// and appear in the same relative order as the periods.
type Iterator struct {
	periods      []ObservationPeriod
	periodCursor int

	source    RecordSource
	batch     []EventRecord
	cursor    int
	exhausted bool

	rollUp    bool
	ancestors concept.AncestorMap

	buf   []ConceptEvent
	stats Stats

	logger *slog.Logger
}

func NewIterator(periods []ObservationPeriod, source RecordSource, opts ...Option) *Iterator {
	it := &Iterator{
		periods: periods,
		source:  source,
		buf:     make([]ConceptEvent, 0, 64),
		logger:  slog.Default().With("component", "timeline-iterator"),
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

func (it *Iterator) HasNext() bool {
	return it.periodCursor < len(it.periods)
}

// Next returns the timeline of the next observation period. The Events slice
// is reused by the following call; use Timeline.Clone to keep it.
func (it *Iterator) Next(ctx context.Context) (*Timeline, error) {
	if !it.HasNext() {
		return nil, io.EOF
	}
	period := it.periods[it.periodCursor]
	it.periodCursor++
	it.stats.Periods++
	it.buf = it.buf[:0]

	for {
		rec, ok, err := it.peek(ctx)
		if err != nil {
			return nil, err
		}
		if !ok || rec.SequenceID >= period.SequenceID {
			break
		}
		it.cursor++
	}
	for {
		rec, ok, err := it.peek(ctx)
		if err != nil {
			return nil, err
		}
		if !ok || rec.SequenceID != period.SequenceID {
			break
		}
		it.collect(rec)
		it.cursor++
	}

	it.buf = sortAndDedup(it.buf)
	if len(it.buf) == 0 {
		it.stats.EmptyPeriods++
	}
	it.stats.EventsEmitted += int64(len(it.buf))
	return &Timeline{Period: period, Events: it.buf}, nil
}

// Stats returns a snapshot of the consumption counters.
func (it *Iterator) Stats() Stats {
	return it.stats
}

// peek returns the record under the event cursor, pulling the next batch
// when the current one is used up. ok is false once the source is drained.
func (it *Iterator) peek(ctx context.Context) (EventRecord, bool, error) {
	for it.cursor >= len(it.batch) {
		if it.exhausted {
			return EventRecord{}, false, nil
		}
		batch, err := it.source.NextBatch(ctx)
		if errors.Is(err, io.EOF) {
			it.exhausted = true
			it.batch = nil
			it.cursor = 0
			it.logger.Debug("record source drained",
				"batches", it.stats.BatchesFetched,
				"records", it.stats.RecordsRead,
			)
			return EventRecord{}, false, nil
		}
		if err != nil {
			return EventRecord{}, false, fmt.Errorf("fetching event batch %d: %w", it.stats.BatchesFetched+1, err)
		}
		it.stats.BatchesFetched++
		it.stats.RecordsRead += int64(len(batch))
		it.batch = batch
		it.cursor = 0
	}
	return it.batch[it.cursor], true, nil
}

func (it *Iterator) collect(rec EventRecord) {
	if !it.rollUp {
		it.buf = append(it.buf, ConceptEvent{StartDay: rec.StartDay, EndDay: rec.EndDay, ConceptID: rec.ConceptID})
		return
	}
	ancestors, ok := it.ancestors.Ancestors(rec.ConceptID)
	if !ok {
		return
	}
	for _, ancestor := range ancestors {
		it.buf = append(it.buf, ConceptEvent{StartDay: rec.StartDay, EndDay: rec.EndDay, ConceptID: ancestor})
	}
}

// sortAndDedup orders events by (StartDay, ConceptID) and drops consecutive
// events with the same key, keeping the first.
func sortAndDedup(events []ConceptEvent) []ConceptEvent {
	if len(events) <= 1 {
		return events
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].less(events[j])
	})
	n := 1
	for i := 1; i < len(events); i++ {
		if events[i].sameKey(events[n-1]) {
			continue
		}
		events[n] = events[i]
		n++
	}
	return events[:n]
}
