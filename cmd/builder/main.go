package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/builder.yaml", "path to config file")
	outPath := flag.String("out", "", "write the matrix to this path instead of builder.outputDir")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(apperrors.ExitConfig)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	buildID := uuid.New()
	ctx = logger.WithBuildID(ctx, buildID.String())

	slog.Info("starting co-occurrence build",
		"build_id", buildID,
		"source", cfg.Builder.Source,
		"window_size", cfg.Builder.WindowSize,
		"context", cfg.Builder.Context,
		"shards", cfg.Builder.Shards,
	)
	err = run(ctx, cfg, buildID, *outPath)
	stop()
	if err != nil {
		logger.FromContext(ctx).Error("build aborted", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
	logger.FromContext(ctx).Info("build complete")
}
