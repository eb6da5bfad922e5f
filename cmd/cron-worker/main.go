package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/app"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func main() {
	proc := app.StartOrExit("cron-worker")
	defer proc.Close(context.Background())
	cfg, logg := proc.Config, proc.Logger

	redisClient, err := proc.Redis(context.Background())
	if err != nil {
		proc.Fatal(context.Background(), "failed to bootstrap redis", err)
	}

	core, err := proc.BuildCore(redisClient, prometheus.DefaultRegisterer)
	if err != nil {
		proc.Fatal(context.Background(), "failed to wire inventory and orders", err)
	}

	jobs, err := buildJobs(cfg, logg, jobDeps{
		db:         proc.DB,
		inventory:  core.Inventory,
		notifier:   core.Notifier,
		deadLetter: core.DeadLetter,
		ledger:     core.Ledger,
		orders:     core.Orders,
		ordersRepo: core.OrdersRepo,
		outboxRepo: core.OutboxRepo,
		metrics:    core.Metrics,
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create cron jobs", err)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron", cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		proc.Fatal(context.Background(), "failed to create cron lock", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:      logg,
		Registry:    cron.NewRegistry(jobs...),
		Lock:        lock,
		Metrics:     metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Tick:        cfg.Cron.Tick,
		LockRefresh: lock.TTL() / 3,
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create cron service", err)
	}

	ctx, stop := app.SignalContext()
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"jobs": len(jobs),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Fatal(ctx, "cron worker stopped unexpectedly", err)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

type jobDeps struct {
	db         *db.Client
	inventory  inventory.Service
	notifier   *notifications.OutboxNotifier
	deadLetter *inventory.DeadLetter
	ledger     *inventory.LedgerRepository
	orders     orders.Service
	ordersRepo orders.Repository
	outboxRepo *outbox.Repository
	metrics    *metrics.InventoryMetrics
}

func buildJobs(cfg *config.Config, logg *logger.Logger, deps jobDeps) ([]cron.Job, error) {
	lowStock, err := cron.NewLowStockScanJob(cron.LowStockScanJobParams{
		Logger:    logg,
		Inventory: deps.inventory,
		Alerter:   deps.notifier,
		Metrics:   deps.metrics,
		Threshold: cfg.Inventory.LowStockThreshold,
		Interval:  cfg.Cron.LowStockScanEvery,
	})
	if err != nil {
		return nil, err
	}

	reconcile, err := cron.NewAggregateReconcileJob(logg, deps.inventory, cfg.Cron.ReconcileEvery)
	if err != nil {
		return nil, err
	}

	replay, err := cron.NewLedgerReplayJob(cron.LedgerReplayJobParams{
		Logger:     logg,
		DeadLetter: deps.deadLetter,
		Ledger:     deps.ledger,
		Metrics:    deps.metrics,
		BatchSize:  cfg.Inventory.ReplayBatchSize,
	})
	if err != nil {
		return nil, err
	}

	expiry, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger:    logg,
		Reader:    deps.ordersRepo,
		Canceller: deps.orders,
		MaxAge:    cfg.Cron.OrderExpiryAfter,
	})
	if err != nil {
		return nil, err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          deps.db,
		Repository:  deps.outboxRepo,
		Retention:   cfg.Cron.OutboxRetentionDays,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	return []cron.Job{lowStock, reconcile, replay, expiry, retention}, nil
}
