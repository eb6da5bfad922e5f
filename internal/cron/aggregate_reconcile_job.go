package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultReconcileInterval = 24 * time.Hour

type aggregateReconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

// NewAggregateReconcileJob builds the job that rewrites drifted product aggregates.
func NewAggregateReconcileJob(logg *logger.Logger, reconciler aggregateReconciler, interval time.Duration) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &aggregateReconcileJob{logg: logg, reconciler: reconciler, interval: interval}, nil
}

type aggregateReconcileJob struct {
	logg       *logger.Logger
	reconciler aggregateReconciler
	interval   time.Duration
}

func (j *aggregateReconcileJob) Name() string { return "aggregate-reconcile" }

func (j *aggregateReconcileJob) Every() time.Duration { return j.interval }

func (j *aggregateReconcileJob) Run(ctx context.Context) error {
	fixed, err := j.reconciler.ReconcileAll(ctx)
	if err != nil {
		return fmt.Errorf("reconcile aggregates: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "products_fixed", fixed), "aggregate reconciliation complete")
	return nil
}
