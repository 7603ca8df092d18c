package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"airbnb-etl/config"
	"airbnb-etl/pipeline"
	"airbnb-etl/utils"
)

// Reads the listings and reviews collections from MongoDB and stages them
// for the transform stage.
func main() {
	console := utils.NewLogger(os.Stdout)

	env, err := pipeline.NewEnv(config.Load(), nil)
	if err != nil {
		console.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = env.RunStage(ctx, pipeline.LabelExtract, func(ctx context.Context, l *utils.Logger) error {
		ds, err := env.Extract(ctx, l)
		if err != nil {
			return err
		}
		return env.SaveStaged(l, pipeline.StagedRaw, ds)
	})
	stop()
	env.PushMetrics(console)
	if err != nil {
		os.Exit(1)
	}
}
