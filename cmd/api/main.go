package main

import (
	"context"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/app"
)

func main() {
	proc := app.StartOrExit("api")
	defer proc.Close(context.Background())
	cfg, logg := proc.Config, proc.Logger

	redisClient, err := proc.Redis(context.Background())
	if err != nil {
		proc.Fatal(context.Background(), "failed to bootstrap redis", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	core, err := proc.BuildCore(redisClient, registry)
	if err != nil {
		proc.Fatal(context.Background(), "failed to wire inventory and orders", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:          proc.DB,
			Redis:       redisClient,
			Idempotency: redisClient,
			Orders:      core.Orders,
			Inventory:   core.Inventory,
			Metrics:     registry,
		}),
	}

	ctx, stop := app.SignalContext()
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown incomplete", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		proc.Fatal(ctx, "api server stopped unexpectedly", err)
	}
	<-drained
	logg.Info(ctx, "api server shutting down gracefully")
}
