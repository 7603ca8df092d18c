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

// Cleans the staged raw tables and stages the result for loading.
func main() {
	console := utils.NewLogger(os.Stdout)

	env, err := pipeline.NewEnv(config.Load(), os.Stdout)
	if err != nil {
		console.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = env.RunStage(ctx, pipeline.LabelTransform, func(_ context.Context, l *utils.Logger) error {
		raw, err := env.LoadStaged(l, pipeline.StagedRaw)
		if err != nil {
			l.Error("[transform] run the extract stage first: %v", err)
			return err
		}
		clean, err := env.Transform(l, raw)
		if err != nil {
			return err
		}
		return env.SaveStaged(l, pipeline.StagedClean, clean)
	})
	stop()
	env.PushMetrics(console)
	if err != nil {
		os.Exit(1)
	}
}
