package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const defaultLowStockScanInterval = time.Hour

type lowStockReporter interface {
	GetInventoryOverview(ctx context.Context, threshold int) (*inventory.InventoryOverview, error)
}

type lowStockAlerter interface {
	LowStockDetected(ctx context.Context, overview *inventory.InventoryOverview) (bool, error)
}

// LowStockScanJobParams configure the low stock scan.
type LowStockScanJobParams struct {
	Logger    *logger.Logger
	Inventory lowStockReporter
	Alerter   lowStockAlerter
	Metrics   *metrics.InventoryMetrics
	Threshold int
	Interval  time.Duration
}

// NewLowStockScanJob builds the job that refreshes low stock gauges and alerts staff.
func NewLowStockScanJob(params LowStockScanJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultLowStockScanInterval
	}
	return &lowStockScanJob{
		logg:      params.Logger,
		inventory: params.Inventory,
		alerter:   params.Alerter,
		metrics:   params.Metrics,
		threshold: params.Threshold,
		interval:  interval,
	}, nil
}

type lowStockScanJob struct {
	logg      *logger.Logger
	inventory lowStockReporter
	alerter   lowStockAlerter
	metrics   *metrics.InventoryMetrics
	threshold int
	interval  time.Duration
}

func (j *lowStockScanJob) Name() string { return "low-stock-scan" }

func (j *lowStockScanJob) Every() time.Duration { return j.interval }

func (j *lowStockScanJob) Run(ctx context.Context) error {
	overview, err := j.inventory.GetInventoryOverview(ctx, j.threshold)
	if err != nil {
		return fmt.Errorf("low stock overview: %w", err)
	}
	j.metrics.SetLowStock(string(enums.LowStockOut), overview.Summary.OutOfStock)
	j.metrics.SetLowStock(string(enums.LowStockCritical), overview.Summary.Critical)
	j.metrics.SetLowStock(string(enums.LowStockLow), overview.Summary.Low)

	alerted := false
	if j.alerter != nil {
		alerted, err = j.alerter.LowStockDetected(ctx, overview)
		if err != nil {
			return fmt.Errorf("queue low stock alert: %w", err)
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"threshold":    overview.Summary.Threshold,
		"out_of_stock": overview.Summary.OutOfStock,
		"critical":     overview.Summary.Critical,
		"low":          overview.Summary.Low,
		"alerted":      alerted,
	})
	j.logg.Info(logCtx, "low stock scan complete")
	return nil
}
