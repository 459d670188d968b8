package timeline

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/concept"
)

func periods(seqIDs ...int64) []ObservationPeriod {
	out := make([]ObservationPeriod, len(seqIDs))
	for i, id := range seqIDs {
		out[i] = ObservationPeriod{PersonID: "p", PeriodID: "op", SequenceID: id}
	}
	return out
}

func drain(t *testing.T, it *Iterator) [][]ConceptEvent {
	t.Helper()
	var out [][]ConceptEvent
	for it.HasNext() {
		tl, err := it.Next(context.Background())
		require.NoError(t, err)
		out = append(out, tl.Clone().Events)
	}
	return out
}

func TestIteratorGroupsBySequenceID(t *testing.T) {
	records := []EventRecord{
		{StartDay: 3, EndDay: 3, ConceptID: 2, SequenceID: 1},
		{StartDay: 1, EndDay: 1, ConceptID: 1, SequenceID: 1},
		{StartDay: 0, EndDay: 5, ConceptID: 7, SequenceID: 2},
	}
	it := NewIterator(periods(1, 2), NewSliceSource(records))

	got := drain(t, it)
	require.Len(t, got, 2)
	assert.Equal(t, []ConceptEvent{{1, 1, 1}, {3, 3, 2}}, got[0])
	assert.Equal(t, []ConceptEvent{{0, 5, 7}}, got[1])
	assert.False(t, it.HasNext())
}

func TestIteratorSortsByDayThenConcept(t *testing.T) {
	records := []EventRecord{
		{StartDay: 2, ConceptID: 5, SequenceID: 1},
		{StartDay: 2, ConceptID: 3, SequenceID: 1},
		{StartDay: 0, ConceptID: 9, SequenceID: 1},
	}
	got := drain(t, NewIterator(periods(1), NewSliceSource(records)))

	require.Len(t, got, 1)
	assert.Equal(t, []ConceptEvent{{0, 0, 9}, {2, 0, 3}, {2, 0, 5}}, got[0])
}

func TestIteratorDeduplicatesIgnoringEndDay(t *testing.T) {
	records := []EventRecord{
		{StartDay: 4, EndDay: 4, ConceptID: 100, SequenceID: 1},
		{StartDay: 4, EndDay: 9, ConceptID: 100, SequenceID: 1},
		{StartDay: 5, EndDay: 5, ConceptID: 100, SequenceID: 1},
	}
	got := drain(t, NewIterator(periods(1), NewSliceSource(records)))

	require.Len(t, got, 1)
	assert.Equal(t, []ConceptEvent{{4, 4, 100}, {5, 5, 100}}, got[0])
}

func TestIteratorEmptyPeriod(t *testing.T) {
	records := []EventRecord{
		{StartDay: 0, ConceptID: 1, SequenceID: 1},
		{StartDay: 0, ConceptID: 1, SequenceID: 3},
	}
	it := NewIterator(periods(1, 2, 3), NewSliceSource(records))

	got := drain(t, it)
	require.Len(t, got, 3)
	assert.Len(t, got[0], 1)
	assert.Empty(t, got[1])
	assert.Len(t, got[2], 1)
	assert.Equal(t, int64(1), it.Stats().EmptyPeriods)
	assert.Equal(t, int64(3), it.Stats().Periods)
}

func TestIteratorSkipsRecordsWithoutPeriod(t *testing.T) {
	// seq 1 and 4 have no observation period; their records are passed over
	records := []EventRecord{
		{StartDay: 0, ConceptID: 1, SequenceID: 1},
		{StartDay: 0, ConceptID: 2, SequenceID: 2},
		{StartDay: 0, ConceptID: 3, SequenceID: 4},
		{StartDay: 0, ConceptID: 4, SequenceID: 5},
	}
	got := drain(t, NewIterator(periods(2, 5), NewSliceSource(records)))

	require.Len(t, got, 2)
	assert.Equal(t, []ConceptEvent{{0, 0, 2}}, got[0])
	assert.Equal(t, []ConceptEvent{{0, 0, 4}}, got[1])
}

func TestIteratorCrossesBatchBoundaries(t *testing.T) {
	records := []EventRecord{
		{StartDay: 0, ConceptID: 1, SequenceID: 1},
		{StartDay: 1, ConceptID: 2, SequenceID: 1},
		{StartDay: 2, ConceptID: 3, SequenceID: 1},
		{StartDay: 0, ConceptID: 4, SequenceID: 2},
		{StartDay: 1, ConceptID: 5, SequenceID: 2},
		{StartDay: 0, ConceptID: 6, SequenceID: 4},
	}
	for _, size := range []int{1, 2, 4, 100} {
		it := NewIterator(periods(1, 2, 3, 4), Paginate(records, size))
		got := drain(t, it)

		require.Len(t, got, 4, "batch size %d", size)
		assert.Len(t, got[0], 3, "batch size %d", size)
		assert.Len(t, got[1], 2, "batch size %d", size)
		assert.Empty(t, got[2], "batch size %d", size)
		assert.Len(t, got[3], 1, "batch size %d", size)
		assert.Equal(t, int64(len(records)), it.Stats().RecordsRead)
	}
}

func TestIteratorSkipsEmptyBatches(t *testing.T) {
	src := NewSliceSource(
		[]EventRecord{},
		[]EventRecord{{StartDay: 0, ConceptID: 1, SequenceID: 1}},
		nil,
		[]EventRecord{{StartDay: 3, ConceptID: 2, SequenceID: 1}},
	)
	got := drain(t, NewIterator(periods(1), src))

	require.Len(t, got, 1)
	assert.Equal(t, []ConceptEvent{{0, 0, 1}, {3, 0, 2}}, got[0])
}

func TestIteratorRollUp(t *testing.T) {
	ancestors := concept.NewAncestorMap([]concept.AncestorPair{
		{AncestorID: 10, DescendantID: 1},
		{AncestorID: 20, DescendantID: 1},
		{AncestorID: 10, DescendantID: 2},
	})
	records := []EventRecord{
		{StartDay: 0, EndDay: 2, ConceptID: 1, SequenceID: 1},
		{StartDay: 0, EndDay: 0, ConceptID: 2, SequenceID: 1},
		{StartDay: 1, EndDay: 1, ConceptID: 3, SequenceID: 1}, // no ancestors: dropped
	}
	got := drain(t, NewIterator(periods(1), NewSliceSource(records), WithAncestors(ancestors)))

	require.Len(t, got, 1)
	// concept 1 and 2 both roll up to 10 on day 0 and collapse into one event
	assert.Equal(t, []ConceptEvent{{0, 2, 10}, {0, 2, 20}}, got[0])
}

func TestIteratorWithoutRollUpPassesThrough(t *testing.T) {
	records := []EventRecord{{StartDay: 1, EndDay: 1, ConceptID: 3, SequenceID: 1}}
	got := drain(t, NewIterator(periods(1), NewSliceSource(records)))

	assert.Equal(t, []ConceptEvent{{1, 1, 3}}, got[0])
}

type failingSource struct {
	err error
}

func (f failingSource) NextBatch(context.Context) ([]EventRecord, error) {
	return nil, f.err
}

func TestIteratorPropagatesSourceError(t *testing.T) {
	boom := errors.New("connection reset")
	it := NewIterator(periods(1), failingSource{err: boom})

	_, err := it.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestIteratorNextAfterEnd(t *testing.T) {
	it := NewIterator(nil, NewSliceSource())

	assert.False(t, it.HasNext())
	_, err := it.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestIteratorReusesBuffer(t *testing.T) {
	records := []EventRecord{
		{StartDay: 0, ConceptID: 1, SequenceID: 1},
		{StartDay: 0, ConceptID: 2, SequenceID: 2},
	}
	it := NewIterator(periods(1, 2), NewSliceSource(records))

	first, err := it.Next(context.Background())
	require.NoError(t, err)
	kept := first.Clone()

	_, err = it.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), kept.Events[0].ConceptID)
}
