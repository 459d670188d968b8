package builder

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/cooccur"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/timeline"
)

// shardQueueDepth bounds how many cloned timelines may wait per shard.
const shardQueueDepth = 256

// runSharded reads timelines on one goroutine and hands each to the shard
// owning its person, so all periods of a person land in the same
// accumulator. The shard accumulators are merged in shard order.
func (b *Builder) runSharded(ctx context.Context) (*cooccur.Accumulator, error) {
	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan *timeline.Timeline, b.shards)
	for i := range queues {
		queues[i] = make(chan *timeline.Timeline, shardQueueDepth)
	}
	partials := make([]*cooccur.Accumulator, b.shards)
	pairs := make([]int64, b.shards)

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for b.timelines.HasNext() {
			tl, err := b.timelines.Next(gctx)
			if err != nil {
				return fmt.Errorf("reading timeline %d: %w", b.stats.Periods+1, err)
			}
			b.stats.Periods++
			b.stats.Events += int64(len(tl.Events))
			if len(tl.Events) == 0 {
				b.stats.EmptyPeriods++
				b.metrics.ObserveTimeline(0, 0)
				continue
			}
			shard := shardFor(tl.Period.PersonID, b.shards)
			select {
			case queues[shard] <- tl.Clone():
			case <-gctx.Done():
				return gctx.Err()
			}
			if b.progressEvery > 0 && b.stats.Periods%b.progressEvery == 0 {
				b.logger.Debug("build progress", "periods", b.stats.Periods, "events", b.stats.Events)
			}
		}
		return nil
	})

	for i := 0; i < b.shards; i++ {
		shard := i
		acc := cooccur.NewAccumulator(b.index.Len())
		partials[shard] = acc
		g.Go(func() error {
			w := newWindow(b.index, b.weights, b.prior, b.post)
			for tl := range queues[shard] {
				n, err := w.accumulate(acc, tl.Events)
				if err != nil {
					return fmt.Errorf("shard %d person %s period %s: %w", shard, tl.Period.PersonID, tl.Period.PeriodID, err)
				}
				pairs[shard] += n
				b.metrics.ObserveTimeline(len(tl.Events), n)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := partials[0]
	b.stats.Pairs += pairs[0]
	for i := 1; i < b.shards; i++ {
		if err := merged.Merge(partials[i]); err != nil {
			return nil, fmt.Errorf("merging shard %d: %w", i, err)
		}
		b.stats.Pairs += pairs[i]
		b.logger.Debug("shard merged", "shard_id", i, "entries", partials[i].Len())
	}
	return merged, nil
}

func shardFor(personID string, shards int) int {
	return int(xxhash.Sum64String(personID) % uint64(shards))
}
