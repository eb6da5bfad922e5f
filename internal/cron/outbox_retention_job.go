package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	outboxRetentionDays  = 14
	outboxMinAttempts    = 5
	outboxDeleteBatch    = 500
	outboxRetentionEvery = 24 * time.Hour
)

// OutboxRetentionJobParams configure pruning of delivered and abandoned outbox
// rows. MinAttempts should match the publisher's terminal attempt count so
// rows still being retried are never removed.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	Retention   int
	MinAttempts int
	BatchSize   int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount, limit int) (int64, error)
}

// NewOutboxRetentionJob builds the daily outbox pruning job.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		retention:   positiveOr(params.Retention, outboxRetentionDays),
		minAttempts: positiveOr(params.MinAttempts, outboxMinAttempts),
		batch:       positiveOr(params.BatchSize, outboxDeleteBatch),
		now:         time.Now,
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxRetentionRepo
	retention   int
	minAttempts int
	batch       int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Every() time.Duration { return outboxRetentionEvery }

// Run deletes in short transactions so the publisher's SKIP LOCKED scans are
// never stuck behind one large delete.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("outbox retention interrupted after %d rows: %w", total, err)
		}
		var deleted int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			deleted, err = j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.minAttempts, j.batch)
			return err
		})
		if err != nil {
			return fmt.Errorf("outbox retention after %d rows: %w", total, err)
		}
		total += deleted
		if deleted < int64(j.batch) {
			break
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   total,
	}), "outbox retention cleanup complete")
	return nil
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
