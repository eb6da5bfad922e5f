package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// DomainEvent is what producers hand to Emit. Version and OccurredAt default
// to EnvelopeVersion and now.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit queues event inside tx so it commits atomically with the caller's writes.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	switch {
	case tx == nil:
		return errors.New("transaction required")
	case !event.EventType.IsValid():
		return fmt.Errorf("unknown outbox event type %q", event.EventType)
	case !event.AggregateType.IsValid():
		return fmt.Errorf("unknown outbox aggregate type %q", event.AggregateType)
	}

	env, err := newEnvelope(event)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := s.repo.Insert(tx, models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if s.logg != nil && ctx != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":       env.EventID,
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}
