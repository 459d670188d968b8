// Package source adapts streaming transports to timeline.RecordSource.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/timeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/metrics"
)

// BatchReader is satisfied by *kafka.BatchReader.
type BatchReader interface {
	ReadBatch(ctx context.Context, max int) ([][]byte, error)
}

// KafkaSource decodes JSON event records from a bounded topic read. The
// topic must hold records in sequence id order; a record that goes
// backwards fails the batch with ErrInvalidInput.
type KafkaSource struct {
	reader    BatchReader
	batchSize int
	metrics   *metrics.Metrics
	lastSeq   int64
	seen      int64
}

func NewKafkaSource(reader BatchReader, batchSize int, m *metrics.Metrics) *KafkaSource {
	return &KafkaSource{reader: reader, batchSize: batchSize, metrics: m}
}

func (k *KafkaSource) NextBatch(ctx context.Context) ([]timeline.EventRecord, error) {
	start := time.Now()
	values, err := k.reader.ReadBatch(ctx, k.batchSize)
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSourceUnavailable, err)
	}
	k.metrics.ObserveBatch("kafka", time.Since(start))

	batch := make([]timeline.EventRecord, 0, len(values))
	for _, v := range values {
		k.seen++
		rec, err := kafka.DecodeJSON[timeline.EventRecord](v)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", apperrors.ErrInvalidInput, k.seen, err)
		}
		if k.seen > 1 && rec.SequenceID < k.lastSeq {
			return nil, fmt.Errorf("%w: record %d has sequence id %d after %d", apperrors.ErrInvalidInput, k.seen, rec.SequenceID, k.lastSeq)
		}
		k.lastSeq = rec.SequenceID
		batch = append(batch, rec)
	}
	return batch, nil
}
