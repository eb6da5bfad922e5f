package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*outbox.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
}

// Service drains outbox_events to Pub/Sub. Rows that cannot be resolved, or
// that exhaust their attempts, are copied to outbox_dlq and marked terminal.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	dlq              dlqRepository
	publisherFactory publisherFactory
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
	now              func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		publisherFactory: factory,
		batchSize:        positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:      positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval:     time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
		now:              time.Now,
	}, nil
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

// Run polls until ctx is cancelled. Full batches are followed immediately by
// the next fetch; errors back off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	backoff := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		wait := s.pollInterval
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			wait = backoff
		case processed:
			backoff = s.pollInterval
			continue
		default:
			backoff = s.pollInterval
		}

		if err := sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		processed = len(events) > 0
		for _, event := range events {
			if err := s.processEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

// processEvent only returns errors from bookkeeping writes; publish failures
// are recorded on the row.
func (s *Service) processEvent(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonUnroutable, err, s.eventFields(event, outbox.PayloadEnvelope{}, ""))
	}

	topic := resolved.Descriptor.Topic
	fields := s.eventFields(event, resolved.Envelope, topic)
	publishErr := s.publishResolved(ctx, event, resolved)
	if publishErr == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	}

	var nonRetry outbox.NonRetryableError
	if errors.As(publishErr, &nonRetry) {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, publishErr, fields)
	}

	attempt := event.AttemptCount + 1
	fields["attempt_count"] = attempt
	if attempt >= s.maxAttempts {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", publishErr), fields)
	}

	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", publishErr.Error())
	s.logg.Warn(logCtx, "outbox publish failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, publishErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["replayable"] = reason.Replayable()
	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", cause.Error())
	s.logg.Warn(logCtx, "outbox event will not be retried")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publishResolved(ctx context.Context, event models.OutboxEvent, resolved *outbox.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return outbox.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return outbox.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
