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

// Loads the staged clean tables into SQLite and the Excel workbook, then
// verifies the result.
func main() {
	console := utils.NewLogger(os.Stdout)

	env, err := pipeline.NewEnv(config.Load(), nil)
	if err != nil {
		console.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = env.RunStage(ctx, pipeline.LabelLoad, func(ctx context.Context, l *utils.Logger) error {
		clean, err := env.LoadStaged(l, pipeline.StagedClean)
		if err != nil {
			l.Error("[load] run the transform stage first: %v", err)
			return err
		}
		_, err = env.Load(ctx, l, clean)
		return err
	})
	stop()
	env.PushMetrics(console)
	if err != nil {
		os.Exit(1)
	}
}
