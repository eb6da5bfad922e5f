package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func deadLetterEntry(productID uuid.UUID) *models.InventoryTransaction {
	return &models.InventoryTransaction{
		ID:               uuid.New(),
		ProductID:        productID,
		TransactionType:  enums.TransactionSale,
		QuantityChange:   -1,
		PreviousQuantity: 4,
		NewQuantity:      3,
		CreatedAt:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestDeadLetterReplayRequeuesFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := uuid.New()

	require.NoError(t, h.deadLetter.Park(ctx, deadLetterEntry(productID)))
	require.NoError(t, h.deadLetter.Park(ctx, deadLetterEntry(productID)))

	written, err := h.deadLetter.Replay(ctx, &failingLedger{err: errors.New("still down")}, 10)
	require.Error(t, err)
	assert.Zero(t, written)
	pending, _ := h.deadLetter.Pending(ctx)
	assert.Equal(t, int64(2), pending)

	written, err = h.deadLetter.Replay(ctx, h.ledger, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	pending, _ = h.deadLetter.Pending(ctx)
	assert.Equal(t, int64(1), pending)
}

func TestDeadLetterReplaySkipsDuplicatesAndGarbage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entry := deadLetterEntry(uuid.New())

	require.NoError(t, h.ledger.Append(ctx, nil, entry))
	require.NoError(t, h.deadLetter.Park(ctx, entry))
	require.NoError(t, h.queue.Push(ctx, "sf:queue:ledger:dead_letter", "{not json"))

	written, err := h.deadLetter.Replay(ctx, h.ledger, 10)
	require.Error(t, err, "garbage payload is reported")
	assert.Zero(t, written)
	pending, _ := h.deadLetter.Pending(ctx)
	assert.Zero(t, pending, "duplicates and garbage are dropped")
	assert.Len(t, h.ledgerEntries(t, entry.ProductID), 1)
}

func TestDeadLetterParkFailureSurfaces(t *testing.T) {
	h := newHarness(t)
	h.queue.pushErr = errors.New("redis down")
	err := h.deadLetter.Park(context.Background(), deadLetterEntry(uuid.New()))
	require.Error(t, err)

	_, err = NewDeadLetter(nil, "k")
	require.Error(t, err)
	_, err = NewDeadLetter(h.queue, "")
	require.Error(t, err)
}
