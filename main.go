package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"airbnb-etl/config"
	"airbnb-etl/models"
	"airbnb-etl/pipeline"
	"airbnb-etl/utils"
)

// Runs extract, transform and load in one process, handing data over in
// memory. Each stage writes its own log file.
func main() {
	os.Exit(run())
}

func run() int {
	console := utils.NewLogger(os.Stdout)
	cfg := config.Load()

	env, err := pipeline.NewEnv(cfg, os.Stdout)
	if err != nil {
		console.Error("Invalid configuration: %v", err)
		return 1
	}
	defer env.PushMetrics(console)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console.Info("=== Airbnb ETL pipeline starting ===")
	console.Info("Source: %s / %s | SQLite: %s | mode: %s", cfg.MongoSource(), cfg.MongoDatabase, cfg.SQLitePath, cfg.LoadMode)

	var raw, clean *models.Dataset
	err = env.RunStage(ctx, pipeline.LabelExtract, func(ctx context.Context, l *utils.Logger) error {
		var err error
		raw, err = env.Extract(ctx, l)
		return err
	})
	if err != nil {
		console.Error("Extraction failed: %v", err)
		return 1
	}

	err = env.RunStage(ctx, pipeline.LabelTransform, func(_ context.Context, l *utils.Logger) error {
		var err error
		clean, err = env.Transform(l, raw)
		return err
	})
	if err != nil {
		console.Error("Transformation failed: %v", err)
		return 1
	}

	var v *models.Verification
	err = env.RunStage(ctx, pipeline.LabelLoad, func(ctx context.Context, l *utils.Logger) error {
		var err error
		v, err = env.Load(ctx, l, clean)
		return err
	})
	if err != nil {
		console.Error("Load failed: %v", err)
		return 1
	}

	console.Info("=== Pipeline finished ===")
	console.Info("Listings: %s | Reviews: %s | Orphan reviews: %s | DB: %.2f MB",
		utils.FormatInt(v.Listings.SQLiteRows), utils.FormatInt(v.Reviews.SQLiteRows),
		utils.FormatInt(v.OrphanReviews), v.DatabaseSizeMB)
	if !v.OK() {
		console.Warn("Verification reported findings, see the LOAD log for details")
	}
	return 0
}
