// Package kafka wraps segmentio/kafka-go. BatchReader drains a topic
// partition up to the high watermark seen when reading starts; Producer
// publishes JSON events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/config"
)

// fetcher is the part of *kafka.Reader a BatchReader uses.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	ReadLag(ctx context.Context) (int64, error)
	Close() error
}

// BatchReader reads a single partition from the first offset without a
// consumer group, so every run sees the whole topic. It stops at the lag
// measured on the first call; messages produced later are not read.
type BatchReader struct {
	reader    fetcher
	logger    *slog.Logger
	remaining int64
	started   bool
}

// NewBatchReader reads partition 0 of topic from its first offset.
func NewBatchReader(cfg config.KafkaConfig, topic string) *BatchReader {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		Partition:   0,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newBatchReader(r, topic)
}

func newBatchReader(r fetcher, topic string) *BatchReader {
	return &BatchReader{
		reader: r,
		logger: slog.Default().With("component", "kafka-reader", "topic", topic),
	}
}

// ReadBatch returns up to max message values. It returns io.EOF once every
// message that existed at the first call has been returned.
func (b *BatchReader) ReadBatch(ctx context.Context, max int) ([][]byte, error) {
	if !b.started {
		lag, err := b.reader.ReadLag(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading partition lag: %w", err)
		}
		b.remaining = lag
		b.started = true
		b.logger.Info("bounded read started", "messages", lag)
	}
	if b.remaining <= 0 {
		return nil, io.EOF
	}

	n := int64(max)
	if n <= 0 || n > b.remaining {
		n = b.remaining
	}
	values := make([][]byte, 0, n)
	for int64(len(values)) < n {
		msg, err := b.reader.FetchMessage(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching message: %w", err)
		}
		values = append(values, msg.Value)
	}
	b.remaining -= n
	b.logger.Debug("batch read", "messages", len(values), "remaining", b.remaining)
	return values, nil
}

func (b *BatchReader) Close() error {
	return b.reader.Close()
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
