package timeline

import (
	"context"
	"time"
)

// ConceptEvent is a dated occurrence of a concept. Days are offsets from the
// start of the owning observation period.
type ConceptEvent struct {
	StartDay  int
	EndDay    int
	ConceptID int64
}

// less orders events by (StartDay, ConceptID).
func (e ConceptEvent) less(o ConceptEvent) bool {
	if e.StartDay != o.StartDay {
		return e.StartDay < o.StartDay
	}
	return e.ConceptID < o.ConceptID
}

// sameKey reports equality under the de-duplication key. EndDay is ignored.
func (e ConceptEvent) sameKey(o ConceptEvent) bool {
	return e.StartDay == o.StartDay && e.ConceptID == o.ConceptID
}

// ObservationPeriod is one contiguous enrollment span of a person. SequenceID
// is the join key shared with EventRecord.
type ObservationPeriod struct {
	PersonID   string    `json:"person_id"`
	PeriodID   string    `json:"observation_period_id"`
	SequenceID int64     `json:"observation_period_seq_id"`
	StartDate  time.Time `json:"observation_period_start_date"`
	EndDate    time.Time `json:"observation_period_end_date"`
}

// EventRecord is one row delivered by a RecordSource.
type EventRecord struct {
	StartDay   int   `json:"start_day"`
	EndDay     int   `json:"end_day"`
	ConceptID  int64 `json:"concept_id"`
	SequenceID int64 `json:"observation_period_seq_id"`
}

// RecordSource delivers event records in batches. Across and within batches
// SequenceID must be non-decreasing. NextBatch returns io.EOF once no batches
// remain; an empty batch is allowed and simply skipped.
type RecordSource interface {
	NextBatch(ctx context.Context) ([]EventRecord, error)
}

// Timeline is the sorted, de-duplicated event list of one observation period.
type Timeline struct {
	Period ObservationPeriod
	Events []ConceptEvent
}

// Clone returns a timeline that does not share its event buffer with the
// iterator that produced it.
func (t *Timeline) Clone() *Timeline {
	events := make([]ConceptEvent, len(t.Events))
	copy(events, t.Events)
	return &Timeline{Period: t.Period, Events: events}
}
