package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Outcome labels how a placement attempt ended.
type Outcome string

const (
	OutcomeCompleted         Outcome = "completed"
	OutcomeInvalid           Outcome = "invalid"
	OutcomeInsufficientStock Outcome = "insufficient_stock"
	OutcomeReservationFailed Outcome = "reservation_failed"
	OutcomeRollbackFailed    Outcome = "rollback_failed"
	OutcomeError             Outcome = "error"
)

// Rejected reports whether the attempt left no order behind.
func (o Outcome) Rejected() bool {
	return o != OutcomeCompleted && o != OutcomeRollbackFailed
}

// LineItemInput is one requested order line.
type LineItemInput struct {
	ProductID   uuid.UUID       `json:"productId" validate:"required"`
	VariationID *uuid.UUID      `json:"variationId,omitempty"`
	Name        string          `json:"name" validate:"required"`
	Quantity    int             `json:"quantity" validate:"required,min=1"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// PlaceOrderInput carries a customer's order request.
type PlaceOrderInput struct {
	CustomerName    string          `json:"customerName" validate:"required"`
	CustomerEmail   string          `json:"customerEmail" validate:"required,email"`
	ShippingAddress types.Address   `json:"shippingAddress"`
	BillingAddress  types.Address   `json:"billingAddress"`
	Items           []LineItemInput `json:"items" validate:"required,min=1,dive"`
	Notes           *string         `json:"notes,omitempty"`
	Actor           string          `json:"-"`
}

// PlaceOrderResult is returned for a completed placement.
type PlaceOrderResult struct {
	Order    *models.Order
	Outcome  Outcome
	Notified bool
}

// CancelOrderResult describes a cancellation.
type CancelOrderResult struct {
	Order         *models.Order
	ReleasedItems int
	RefundDue     bool
}
