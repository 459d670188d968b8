// Package builder turns a stream of per-period timelines into one global
// co-occurrence matrix. Each timeline is scanned with two forward-only
// cursors bounding the day window around the current target event, and every
// (target, context) pair adds its distance weight to the shared accumulator.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/concept"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/cooccur"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/timeline"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/metrics"
)

// TimelineSource is satisfied by *timeline.Iterator.
type TimelineSource interface {
	HasNext() bool
	Next(ctx context.Context) (*timeline.Timeline, error)
}

// State is the lifecycle position of a Builder.
type State int

const (
	StateInitialized State = iota
	StateBuilding
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateBuilding:
		return "building"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config is the window definition. When Weights is empty a table is
// generated with Weighting.
type Config struct {
	WindowSize int
	Context    ContextMode
	Weights    []float64
	Weighting  string
}

// Stats summarises a finished (or failed) build.
type Stats struct {
	Periods      int64
	EmptyPeriods int64
	Events       int64
	Pairs        int64
	Entries      int
	Shards       int
	Duration     time.Duration
}

type Option func(*Builder)

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithShards spreads timelines over n independent accumulators keyed by
// person id and merges them at the end. n <= 1 keeps the sequential scan.
func WithShards(n int) Option {
	return func(b *Builder) {
		if n < 1 {
			n = 1
		}
		b.shards = n
	}
}

// WithProgressEvery logs a progress line every n periods.
func WithProgressEvery(n int64) Option {
	return func(b *Builder) { b.progressEvery = n }
}

// Builder is single use: Build runs once, and later calls return the
// finished matrix (or the original error) without reading any timeline.
type Builder struct {
	index     *concept.Index
	timelines TimelineSource
	weights   WeightTable
	prior     int
	post      int

	shards        int
	progressEvery int64
	metrics       *metrics.Metrics
	logger        *slog.Logger

	state  State
	result *cooccur.Matrix
	err    error
	stats  Stats
}

// Validate reports whether the window definition is usable without reading
// any input.
func (c Config) Validate() error {
	_, _, _, err := c.table()
	return err
}

func (c Config) table() (WeightTable, int, int, error) {
	prior, post, err := WindowBounds(c.WindowSize, c.Context)
	if err != nil {
		return nil, 0, 0, err
	}
	var weights WeightTable
	if len(c.Weights) > 0 {
		weights, err = NewWeightTable(c.Weights, prior, post)
	} else {
		weights, err = DefaultWeights(prior, post, c.Weighting)
	}
	if err != nil {
		return nil, 0, 0, err
	}
	return weights, prior, post, nil
}

// New validates the window configuration against the weight vector. Any
// configuration error is returned here, before a timeline is read.
func New(cfg Config, index *concept.Index, timelines TimelineSource, opts ...Option) (*Builder, error) {
	weights, prior, post, err := cfg.table()
	if err != nil {
		return nil, err
	}

	b := &Builder{
		index:         index,
		timelines:     timelines,
		weights:       weights,
		prior:         prior,
		post:          post,
		shards:        1,
		progressEvery: 100000,
		logger:        slog.Default().With("component", "builder"),
		state:         StateInitialized,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Builder) State() State {
	return b.state
}

func (b *Builder) Stats() Stats {
	return b.stats
}

// Bounds returns the prior and post day reach of the window.
func (b *Builder) Bounds() (prior, post int) {
	return b.prior, b.post
}

// Build consumes every timeline and returns the exported matrix. Any error
// from the timeline source or an unknown concept aborts the whole build.
func (b *Builder) Build(ctx context.Context) (*cooccur.Matrix, error) {
	switch b.state {
	case StateDone:
		return b.result, nil
	case StateFailed:
		return nil, b.err
	case StateBuilding:
		return nil, fmt.Errorf("build already in progress")
	}

	log := logger.FromContext(ctx).With("component", "builder")
	b.state = StateBuilding
	start := time.Now()
	log.Info("build started",
		"vocabulary", b.index.Len(),
		"prior_days", b.prior,
		"post_days", b.post,
		"shards", b.shards,
	)

	var acc *cooccur.Accumulator
	var err error
	if b.shards > 1 {
		acc, err = b.runSharded(ctx)
	} else {
		acc, err = b.runSequential(ctx)
	}
	b.stats.Shards = b.shards
	b.stats.Duration = time.Since(start)
	if err != nil {
		b.state = StateFailed
		b.err = err
		b.metrics.ObserveBuild("failed", 0, b.stats.Duration)
		log.Error("build failed", "error", err, "periods", b.stats.Periods)
		return nil, err
	}

	b.result = acc.Export(b.index.Labels())
	b.stats.Entries = b.result.NNZ()
	b.state = StateDone
	b.metrics.ObserveBuild("done", b.stats.Entries, b.stats.Duration)
	log.Info("build finished",
		"periods", b.stats.Periods,
		"empty_periods", b.stats.EmptyPeriods,
		"events", b.stats.Events,
		"pairs", b.stats.Pairs,
		"entries", b.stats.Entries,
		"duration", b.stats.Duration,
	)
	return b.result, nil
}

func (b *Builder) runSequential(ctx context.Context) (*cooccur.Accumulator, error) {
	acc := cooccur.NewAccumulator(b.index.Len())
	w := newWindow(b.index, b.weights, b.prior, b.post)
	for b.timelines.HasNext() {
		tl, err := b.timelines.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading timeline %d: %w", b.stats.Periods+1, err)
		}
		pairs, err := w.accumulate(acc, tl.Events)
		if err != nil {
			return nil, fmt.Errorf("person %s period %s: %w", tl.Period.PersonID, tl.Period.PeriodID, err)
		}
		b.record(len(tl.Events), pairs)
	}
	return acc, nil
}

func (b *Builder) record(events int, pairs int64) {
	b.stats.Periods++
	if events == 0 {
		b.stats.EmptyPeriods++
	}
	b.stats.Events += int64(events)
	b.stats.Pairs += pairs
	b.metrics.ObserveTimeline(events, pairs)
	if b.progressEvery > 0 && b.stats.Periods%b.progressEvery == 0 {
		b.logger.Debug("build progress",
			"periods", b.stats.Periods,
			"events", b.stats.Events,
			"pairs", b.stats.Pairs,
		)
	}
}
