package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Core is the stock and order graph shared by the api and the cron worker.
type Core struct {
	Products   *products.Repository
	Ledger     *inventory.LedgerRepository
	DeadLetter *inventory.DeadLetter
	Inventory  inventory.Service
	Notifier   *notifications.OutboxNotifier
	OrdersRepo orders.Repository
	Orders     orders.Service
	OutboxRepo *outbox.Repository
	Metrics    *metrics.InventoryMetrics
}

// BuildCore wires repositories and services on top of the process database.
// Metrics register on reg; a nil reg disables them.
func (p *Process) BuildCore(rdb *redis.Client, reg prometheus.Registerer) (*Core, error) {
	conn := p.DB.DB()
	core := &Core{
		Products:   products.NewRepository(conn),
		Ledger:     inventory.NewLedgerRepository(conn),
		OrdersRepo: orders.NewRepository(conn),
		OutboxRepo: outbox.NewRepository(conn),
		Metrics:    metrics.NewInventoryMetrics(reg),
	}

	deadLetter, err := inventory.NewDeadLetter(rdb, rdb.QueueKey(p.Config.Inventory.LedgerDeadLetter))
	if err != nil {
		return nil, err
	}
	core.DeadLetter = deadLetter

	accessor, err := inventory.NewAccessor(inventory.AccessorParams{
		Tx:         p.DB,
		Products:   core.Products,
		Ledger:     core.Ledger,
		DeadLetter: deadLetter,
		Metrics:    core.Metrics,
		Logger:     p.Logger,
	})
	if err != nil {
		return nil, err
	}

	core.Inventory, err = inventory.NewService(inventory.ServiceParams{
		Tx:               p.DB,
		Products:         core.Products,
		Ledger:           core.Ledger,
		Accessor:         accessor,
		Logger:           p.Logger,
		DefaultThreshold: p.Config.Inventory.LowStockThreshold,
	})
	if err != nil {
		return nil, err
	}

	core.Notifier, err = notifications.NewOutboxNotifier(p.DB, outbox.NewService(core.OutboxRepo, p.Logger), p.Logger)
	if err != nil {
		return nil, err
	}

	core.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:      core.OrdersRepo,
		Inventory: core.Inventory,
		Notifier:  core.Notifier,
		Metrics:   core.Metrics,
		Logger:    p.Logger,
	})
	if err != nil {
		return nil, err
	}
	return core, nil
}
