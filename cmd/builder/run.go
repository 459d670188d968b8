package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/ancestorcache"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/builder"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/concept"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/cooccur"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/matrixfile"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/source"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/store"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/timeline"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/tracing"
)

// BuildCompleted is published once the matrix file is on disk.
type BuildCompleted struct {
	BuildID    string    `json:"build_id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Dim        int       `json:"dim"`
	Entries    int       `json:"entries"`
	Periods    int64     `json:"periods"`
	Events     int64     `json:"events"`
	WindowSize int       `json:"window_size"`
	Context    string    `json:"context"`
	RollUp     bool      `json:"roll_up"`
	Persisted  bool      `json:"persisted"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

func builderConfig(b config.BuilderConfig) builder.Config {
	return builder.Config{
		WindowSize: b.WindowSize,
		Context:    builder.ContextMode(b.Context),
		Weights:    b.Weights,
		Weighting:  b.Weighting,
	}
}

// validate runs every configuration check that needs no connection.
func validate(cfg *config.Config) error {
	if err := cfg.Builder.Validate(); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}
	if err := builderConfig(cfg.Builder).Validate(); err != nil {
		return err
	}
	if cfg.Builder.Source == "kafka" && cfg.Kafka.Topics.ConceptEvents == "" {
		return fmt.Errorf("%w: kafka source needs kafka.topics.conceptEvents", apperrors.ErrInvalidConfig)
	}
	if cfg.Builder.Notify && cfg.Kafka.Topics.BuildCompleted == "" {
		return fmt.Errorf("%w: notify needs kafka.topics.buildCompleted", apperrors.ErrInvalidConfig)
	}
	return nil
}

// phase runs fn under a child span named name.
func phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, name, "")
	err := fn(ctx)
	span.End(err)
	return err
}

func run(ctx context.Context, cfg *config.Config, buildID uuid.UUID, outPath string) (err error) {
	log := logger.FromContext(ctx)
	if err := validate(cfg); err != nil {
		return err
	}
	ctx, root := tracing.StartSpan(ctx, "build", buildID.String())
	defer func() {
		root.End(err)
		root.Log(log)
	}()

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, checker)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Warn("metrics server shutdown", "error", err)
			}
		}()
	}

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrSourceUnavailable, err)
	}
	defer db.Close()
	checker.Register("postgres", health.PingCheck(db.Ping))

	var cache *ancestorcache.Cache
	if cfg.Builder.RollUp && cfg.Redis.Addr != "" {
		rdb, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("ancestor cache unavailable, loading from postgres", "error", err)
		} else {
			defer rdb.Close()
			checker.Register("redis", health.PingCheck(rdb.Ping))
			cache = ancestorcache.New(rdb, cfg.Redis.CacheTTL)
		}
	}
	if cfg.Builder.Source == "kafka" || cfg.Builder.Notify {
		checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}))
	}
	if err := phase(ctx, "preflight", checker.Preflight); err != nil {
		return err
	}

	st := store.New(db)
	var (
		index    *concept.Index
		periods  []timeline.ObservationPeriod
		iterOpts []timeline.Option
	)
	err = phase(ctx, "load_inputs", func(ctx context.Context) error {
		var err error
		if index, err = st.LoadVocabulary(ctx); err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrSourceUnavailable, err)
		}
		if index.Len() == 0 {
			return fmt.Errorf("%w: vocabulary is empty", apperrors.ErrInvalidInput)
		}
		if periods, err = st.LoadPeriods(ctx); err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrSourceUnavailable, err)
		}
		if cfg.Builder.RollUp {
			ancestors, err := loadAncestors(ctx, cfg, st, cache)
			if err != nil {
				return fmt.Errorf("%w: %w", apperrors.ErrSourceUnavailable, err)
			}
			iterOpts = append(iterOpts, timeline.WithAncestors(ancestors))
		}
		return nil
	})
	if err != nil {
		return err
	}

	records, closeSource := recordSource(cfg, st, m)
	defer closeSource()
	it := timeline.NewIterator(periods, records, iterOpts...)

	b, err := builder.New(builderConfig(cfg.Builder), index, it,
		builder.WithMetrics(m),
		builder.WithShards(cfg.Builder.Shards),
	)
	if err != nil {
		return err
	}
	var matrix *cooccur.Matrix
	err = phase(ctx, "accumulate", func(ctx context.Context) error {
		var err error
		matrix, err = b.Build(ctx)
		return err
	})
	if err != nil {
		return err
	}
	stats := b.Stats()
	iterStats := it.Stats()
	log.Info("timelines assembled",
		"batches", iterStats.BatchesFetched,
		"records", iterStats.RecordsRead,
		"events", iterStats.EventsEmitted,
		"empty_periods", iterStats.EmptyPeriods,
	)

	meta := matrixfile.Meta{
		BuildID:    buildID.String(),
		Name:       cfg.Builder.BuildName,
		WindowSize: cfg.Builder.WindowSize,
		Context:    cfg.Builder.Context,
		RollUp:     cfg.Builder.RollUp,
		CreatedAt:  time.Now().UTC(),
	}
	var path string
	err = phase(ctx, "write", func(context.Context) error {
		var err error
		path, err = writeMatrix(matrix, meta, cfg.Builder.OutputDir, outPath)
		return err
	})
	if err != nil {
		return err
	}
	log.Info("matrix written", "path", path, "entries", matrix.NNZ())

	if cfg.Builder.Persist {
		err := phase(ctx, "persist", func(ctx context.Context) error {
			if err := st.EnsureOutputTables(ctx); err != nil {
				return err
			}
			rec := store.BuildRecord{
				ID:         buildID,
				Name:       cfg.Builder.BuildName,
				WindowSize: cfg.Builder.WindowSize,
				Context:    cfg.Builder.Context,
				RollUp:     cfg.Builder.RollUp,
				CreatedAt:  meta.CreatedAt,
			}
			return st.SaveMatrix(ctx, rec, matrix)
		})
		if err != nil {
			return err
		}
	}

	if cfg.Builder.Notify {
		event := completedEvent(buildID, cfg.Builder, path, matrix, stats)
		notify(ctx, log, cfg.Kafka, event)
	}
	return nil
}

func loadAncestors(ctx context.Context, cfg *config.Config, st *store.Store, cache *ancestorcache.Cache) (concept.AncestorMap, error) {
	if cache == nil {
		return st.LoadAncestors(ctx)
	}
	scope := fmt.Sprintf("%s:%d/%s.%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database, cfg.Postgres.Schema)
	ancestors, hit, err := cache.GetOrLoad(ctx, scope, st.LoadAncestorPairs)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("ancestor map ready", "cached", hit, "concepts", len(ancestors))
	return ancestors, nil
}

// recordSource picks the configured event transport. The returned func
// releases it.
func recordSource(cfg *config.Config, st *store.Store, m *metrics.Metrics) (timeline.RecordSource, func()) {
	if cfg.Builder.Source == "kafka" {
		reader := kafka.NewBatchReader(cfg.Kafka, cfg.Kafka.Topics.ConceptEvents)
		return source.NewKafkaSource(reader, cfg.Builder.PageSize, m), func() {
			if err := reader.Close(); err != nil {
				slog.Warn("closing kafka reader", "error", err)
			}
		}
	}
	src := st.EventSource(cfg.Builder.PageSize,
		store.WithRetry(resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond}),
		store.WithSourceMetrics(m),
	)
	return src, func() {}
}

func writeMatrix(matrix *cooccur.Matrix, meta matrixfile.Meta, outputDir, outPath string) (string, error) {
	if outPath != "" {
		if err := matrixfile.WriteFile(outPath, matrix, meta); err != nil {
			return "", fmt.Errorf("writing matrix: %w", err)
		}
		return outPath, nil
	}
	name, err := matrixfile.NewWriter(outputDir).Write(matrix, meta)
	if err != nil {
		return "", fmt.Errorf("writing matrix: %w", err)
	}
	return filepath.Join(outputDir, name), nil
}

func completedEvent(buildID uuid.UUID, b config.BuilderConfig, path string, matrix *cooccur.Matrix, stats builder.Stats) BuildCompleted {
	return BuildCompleted{
		BuildID:    buildID.String(),
		Name:       b.BuildName,
		Path:       path,
		Dim:        matrix.Dim[0],
		Entries:    matrix.NNZ(),
		Periods:    stats.Periods,
		Events:     stats.Events,
		WindowSize: b.WindowSize,
		Context:    b.Context,
		RollUp:     b.RollUp,
		Persisted:  b.Persist,
		DurationMS: stats.Duration.Milliseconds(),
		FinishedAt: time.Now().UTC(),
	}
}

// notify logs a failed publish instead of returning it.
func notify(ctx context.Context, log *slog.Logger, cfg config.KafkaConfig, event BuildCompleted) {
	producer := kafka.NewProducer(cfg, cfg.Topics.BuildCompleted)
	defer producer.Close()
	err := producer.Publish(ctx, kafka.Event{Key: event.BuildID, Type: "BuildCompleted", Value: event})
	if err != nil {
		log.Error("build notification failed", "topic", cfg.Topics.BuildCompleted, "error", err)
		return
	}
	log.Info("build notification published", "topic", cfg.Topics.BuildCompleted)
}
