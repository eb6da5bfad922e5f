package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultOrderExpiry      = 72 * time.Hour
	defaultOrderExpiryBatch = 100
	orderExpiryActor        = "order-expiry"
)

type staleOrderReader interface {
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderCanceller interface {
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor string) (*orders.CancelOrderResult, error)
}

// OrderExpiryJobParams configure the unpaid order expiry.
type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	Reader    staleOrderReader
	Canceller orderCanceller
	MaxAge    time.Duration
	BatchSize int
	Interval  time.Duration
}

// NewOrderExpiryJob builds the job that cancels unpaid orders older than MaxAge,
// returning their stock.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("orders service required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultOrderExpiry
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOrderExpiryBatch
	}
	interval := params.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &orderExpiryJob{
		logg:      params.Logger,
		reader:    params.Reader,
		canceller: params.Canceller,
		maxAge:    maxAge,
		batch:     batch,
		interval:  interval,
		now:       time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg      *logger.Logger
	reader    staleOrderReader
	canceller orderCanceller
	maxAge    time.Duration
	batch     int
	interval  time.Duration
	now       func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Every() time.Duration { return j.interval }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	stale, err := j.reader.FindStalePending(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query stale orders: %w", err)
	}

	var errs error
	expired := 0
	for _, order := range stale {
		if _, err := j.canceller.CancelOrder(ctx, order.ID, orderExpiryActor); err != nil {
			// Lost the race to a customer or admin cancel.
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		expired++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(stale),
		"expired": expired,
	})
	j.logg.Info(logCtx, "stale order expiry complete")
	return errs
}
