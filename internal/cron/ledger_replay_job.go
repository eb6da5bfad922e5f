package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const defaultLedgerReplayBatch = 200

type ledgerDeadLetter interface {
	Replay(ctx context.Context, ledger inventory.LedgerWriter, limit int) (int, error)
	Pending(ctx context.Context) (int64, error)
}

// LedgerReplayJobParams configure the ledger dead-letter replay.
type LedgerReplayJobParams struct {
	Logger     *logger.Logger
	DeadLetter ledgerDeadLetter
	Ledger     inventory.LedgerWriter
	Metrics    *metrics.InventoryMetrics
	BatchSize  int
}

// NewLedgerReplayJob builds the job that writes parked ledger entries. It runs every tick.
func NewLedgerReplayJob(params LedgerReplayJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DeadLetter == nil {
		return nil, fmt.Errorf("dead letter queue required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger writer required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultLedgerReplayBatch
	}
	return &ledgerReplayJob{
		logg:       params.Logger,
		deadLetter: params.DeadLetter,
		ledger:     params.Ledger,
		metrics:    params.Metrics,
		batch:      batch,
	}, nil
}

type ledgerReplayJob struct {
	logg       *logger.Logger
	deadLetter ledgerDeadLetter
	ledger     inventory.LedgerWriter
	metrics    *metrics.InventoryMetrics
	batch      int
}

func (j *ledgerReplayJob) Name() string { return "ledger-replay" }

func (j *ledgerReplayJob) Run(ctx context.Context) error {
	pending, err := j.deadLetter.Pending(ctx)
	if err != nil {
		return fmt.Errorf("dead letter length: %w", err)
	}
	if pending == 0 {
		return nil
	}
	written, err := j.deadLetter.Replay(ctx, j.ledger, j.batch)
	j.metrics.AddLedgerReplayed(written)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"pending": pending,
		"written": written,
	})
	if err != nil {
		return fmt.Errorf("replay ledger entries: %w", err)
	}
	j.logg.Info(logCtx, "ledger dead letter replayed")
	return nil
}
