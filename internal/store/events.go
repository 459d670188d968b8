package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/timeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/resilience"
)

// eventKey is the keyset cursor: the sort key of the last record returned.
type eventKey struct {
	seqID     int64
	startDay  int
	conceptID int64
	endDay    int
}

// EventSource pages through concept_events in (sequence id, start day,
// concept id, end day) order. Each page is fetched with keyset pagination,
// so the cost of a page does not grow with how far the scan has got.
// Identical rows collapse into one, which the timeline de-duplication would
// do anyway.
type EventSource struct {
	store    *Store
	pageSize int
	retry    resilience.RetryConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger

	after *eventKey
	done  bool
	pages int
}

type EventSourceOption func(*EventSource)

func WithRetry(cfg resilience.RetryConfig) EventSourceOption {
	return func(e *EventSource) { e.retry = cfg }
}

func WithSourceMetrics(m *metrics.Metrics) EventSourceOption {
	return func(e *EventSource) { e.metrics = m }
}

func (s *Store) EventSource(pageSize int, opts ...EventSourceOption) *EventSource {
	e := &EventSource{
		store:    s,
		pageSize: pageSize,
		logger:   s.logger.With("source", "postgres"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NextBatch returns the next page, or io.EOF once a short page has been
// seen.
func (e *EventSource) NextBatch(ctx context.Context) ([]timeline.EventRecord, error) {
	if e.done {
		return nil, io.EOF
	}
	var batch []timeline.EventRecord
	start := time.Now()
	err := resilience.Retry(ctx, "fetch event page", e.retry, func() error {
		var err error
		batch, err = e.fetch(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %w", apperrors.ErrSourceUnavailable, e.pages+1, err)
	}
	e.pages++
	e.metrics.ObserveBatch("postgres", time.Since(start))

	if len(batch) < e.pageSize {
		e.done = true
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	last := batch[len(batch)-1]
	e.after = &eventKey{seqID: last.SequenceID, startDay: last.StartDay, conceptID: last.ConceptID, endDay: last.EndDay}
	e.logger.Debug("event page fetched", "page", e.pages, "records", len(batch), "last_seq_id", last.SequenceID)
	return batch, nil
}

func (e *EventSource) fetch(ctx context.Context) ([]timeline.EventRecord, error) {
	query, args := eventPageQuery(e.store.db.Schema(), e.after, e.pageSize)
	rows, err := e.store.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer closeRows(rows, e.logger)

	batch := make([]timeline.EventRecord, 0, e.pageSize)
	for rows.Next() {
		var r timeline.EventRecord
		if err := rows.Scan(&r.SequenceID, &r.StartDay, &r.ConceptID, &r.EndDay); err != nil {
			return nil, resilience.Permanent(fmt.Errorf("scanning event row: %w", err))
		}
		batch = append(batch, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return batch, nil
}

func eventPageQuery(schema string, after *eventKey, limit int) (string, []any) {
	table := qualified(schema, eventTable)
	const cols = `observation_period_seq_id, start_day, concept_id, end_day`
	if after == nil {
		return fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s LIMIT $1`, cols, table, cols),
			[]any{limit}
	}
	return fmt.Sprintf(`SELECT %s FROM %s WHERE (%s) > ($1, $2, $3, $4) ORDER BY %s LIMIT $5`, cols, table, cols, cols),
		[]any{after.seqID, after.startDay, after.conceptID, after.endDay, limit}
}
