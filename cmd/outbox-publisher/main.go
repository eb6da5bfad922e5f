package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/storefront-backend/internal/app"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func main() {
	proc := app.StartOrExit("outbox-publisher")
	defer proc.Close(context.Background())

	pubsubClient, err := proc.PubSub(context.Background())
	if err != nil {
		proc.Fatal(context.Background(), "failed to bootstrap pubsub", err)
	}

	eventRegistry, err := outbox.NewEventRegistry(proc.Config.PubSub)
	if err != nil {
		proc.Fatal(context.Background(), "failed to build event registry", err)
	}

	service, err := NewService(ServiceParams{
		Config:        proc.Config,
		Logger:        proc.Logger,
		DB:            proc.DB,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(proc.DB.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(),
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create outbox publisher", err)
	}

	ctx, stop := app.SignalContext()
	defer stop()
	ctx = proc.Logger.WithField(ctx, "env", proc.Config.App.Env)
	proc.Logger.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Fatal(ctx, "outbox publisher stopped unexpectedly", err)
	}
	proc.Logger.Info(ctx, "outbox publisher draining stopped")
}
