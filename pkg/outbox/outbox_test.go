package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func openOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:outbox_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}, &models.OutboxDLQ{}))
	return conn
}

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders", DomainTopic: "domain"})
	require.NoError(t, err)
	return reg
}

func TestEmitThenResolve(t *testing.T) {
	db := openOutboxDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	orderID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderConfirmationRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{ID: "checkout"},
			Data: payloads.OrderConfirmationRequestedEvent{
				OrderID:       orderID,
				CustomerEmail: "ada@example.com",
				ItemCount:     2,
				Subtotal:      decimal.RequireFromString("19.98"),
			},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var fetchErr error
		rows, fetchErr = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return fetchErr
	}))
	require.Len(t, rows, 1)

	resolved, err := testRegistry(t).Resolve(rows[0])
	require.NoError(t, err)
	assert.Equal(t, "orders", resolved.Descriptor.Topic)
	assert.Equal(t, 1, resolved.Envelope.Version)
	payload, ok := resolved.Payload.(*payloads.OrderConfirmationRequestedEvent)
	require.True(t, ok)
	assert.Equal(t, orderID, payload.OrderID)
	assert.True(t, payload.Subtotal.Equal(decimal.RequireFromString("19.98")))
}

func TestEmitRequiresTransactionAndKnownType(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCancelled}))

	db := openOutboxDB(t)
	err := svc.Emit(context.Background(), db, DomainEvent{EventType: "made_up"})
	require.Error(t, err)
}

func TestMarkFailedThenTerminalStopsFetching(t *testing.T) {
	db := openOutboxDB(t)
	repo := NewRepository(db)
	row := models.OutboxEvent{
		EventType:     enums.EventLowStockDetected,
		AggregateType: enums.AggregateInventory,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"eventId":"e1","data":{}}`),
	}
	require.NoError(t, repo.Insert(db, row))

	var stored models.OutboxEvent
	require.NoError(t, db.First(&stored).Error)

	require.NoError(t, repo.MarkFailedTx(db, stored.ID, errors.New("transient")))
	rows, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)

	require.NoError(t, repo.MarkTerminalTx(db, stored.ID, errors.New("gave up"), 3))
	rows, err = repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeletePublishedBeforeKeepsPendingAndRecentRows(t *testing.T) {
	db := openOutboxDB(t)
	repo := NewRepository(db)
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-48 * time.Hour)
	published := old.Add(time.Hour)

	rows := []models.OutboxEvent{
		{CreatedAt: old, PublishedAt: &published},
		{CreatedAt: old, AttemptCount: 5},
		{CreatedAt: old},
		{CreatedAt: cutoff.Add(time.Hour), PublishedAt: &published},
	}
	for _, row := range rows {
		row.EventType = enums.EventOrderCancelled
		row.AggregateType = enums.AggregateOrder
		row.AggregateID = uuid.New()
		row.Payload = []byte(`{}`)
		require.NoError(t, repo.Insert(db, row))
	}

	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, cutoff, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = repo.DeletePublishedBefore(context.Background(), nil, cutoff, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
}

func TestResolveRejectsUnknownAndMismatched(t *testing.T) {
	reg := testRegistry(t)

	_, err := reg.Resolve(models.OutboxEvent{EventType: "nope", Payload: []byte(`{}`)})
	var nonRetry NonRetryableError
	require.ErrorAs(t, err, &nonRetry)

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventLowStockDetected,
		AggregateType: enums.AggregateOrder,
		Payload:       []byte(`{"data":{}}`),
	})
	require.ErrorAs(t, err, &nonRetry)

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventLowStockDetected,
		AggregateType: enums.AggregateInventory,
		Payload:       []byte(`not json`),
	})
	require.ErrorAs(t, err, &nonRetry)
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "domain"})
	require.Error(t, err)
	_, err = NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	require.Error(t, err)
}

func TestDecodeEnvelopeRejectsNewerVersions(t *testing.T) {
	var data payloads.OrderCancelledEvent
	_, err := decodeEnvelope([]byte(`{"version":2,"eventId":"e1","data":{}}`), &data)
	require.Error(t, err)

	_, err = decodeEnvelope([]byte(`{"version":1,"eventId":"e1"}`), &data)
	require.Error(t, err)

	env, err := decodeEnvelope([]byte(`{"version":1,"eventId":"e1","data":{"released_items":3}}`), &data)
	require.NoError(t, err)
	assert.Equal(t, "e1", env.EventID)
	assert.Equal(t, 3, data.ReleasedItems)
}

func TestActors(t *testing.T) {
	assert.Equal(t, &ActorRef{ID: "reconcile", Role: "system"}, SystemActor("reconcile"))
	blank := "  "
	assert.Nil(t, UserActor(nil))
	assert.Nil(t, UserActor(&blank))
	staff := " staff-7 "
	assert.Equal(t, &ActorRef{ID: "staff-7"}, UserActor(&staff))
}

func TestDLQInsertClipsMessage(t *testing.T) {
	db := openOutboxDB(t)
	long := strings.Repeat("é", maxErrorLength)
	entry := models.OutboxDLQ{
		EventID:       uuid.New(),
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &long,
		FailedAt:      time.Now().UTC(),
	}
	require.NoError(t, NewDLQRepository().InsertTx(db, entry))

	var stored models.OutboxDLQ
	require.NoError(t, db.First(&stored).Error)
	require.NotNil(t, stored.ErrorMessage)
	assert.LessOrEqual(t, len(*stored.ErrorMessage), maxErrorLength)
	assert.True(t, utf8.ValidString(*stored.ErrorMessage))

	entry.ErrorReason = "gave_up"
	assert.Error(t, NewDLQRepository().InsertTx(db, entry))
}
