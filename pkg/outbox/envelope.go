package outbox

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is the newest envelope layout this build can read.
const EnvelopeVersion = 1

// ActorRef identifies who produced the event.
type ActorRef struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
}

// SystemActor attributes an event to a background job.
func SystemActor(job string) *ActorRef {
	return &ActorRef{ID: job, Role: "system"}
}

// UserActor returns nil for a blank id so anonymous events carry no actor.
func UserActor(id *string) *ActorRef {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return &ActorRef{ID: strings.TrimSpace(*id)}
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and sent as the message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func newEnvelope(event DomainEvent) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode %s payload: %w", event.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = EnvelopeVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	return env, nil
}

// decodeEnvelope reads raw and fills into from its data section.
func decodeEnvelope(raw json.RawMessage, into any) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version > EnvelopeVersion {
		return env, fmt.Errorf("envelope version %d is newer than supported %d", env.Version, EnvelopeVersion)
	}
	if len(env.Data) == 0 {
		return env, fmt.Errorf("envelope %s has no data", env.EventID)
	}
	if err := json.Unmarshal(env.Data, into); err != nil {
		return env, fmt.Errorf("decode data: %w", err)
	}
	return env, nil
}
