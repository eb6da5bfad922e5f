package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	CustomerName    string              `json:"customerName"`
	CustomerEmail   string              `json:"customerEmail"`
	ShippingAddress types.Address       `json:"shippingAddress"`
	BillingAddress  types.Address       `json:"billingAddress"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentStatus   enums.PaymentStatus `json:"paymentStatus"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	Notes           *string             `json:"notes,omitempty"`
	Items           []lineItemResponse  `json:"items"`
	CanceledAt      *time.Time          `json:"canceledAt,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
}

type lineItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"productId"`
	VariationID *uuid.UUID      `json:"variationId,omitempty"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type cancelResponse struct {
	Order         *orderResponse `json:"order"`
	ReleasedItems int            `json:"releasedItems"`
	RefundDue     bool           `json:"refundDue"`
}

func newOrderResponse(order *models.Order) *orderResponse {
	if order == nil {
		return nil
	}
	items := make([]lineItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, lineItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Name:        item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return &orderResponse{
		ID:              order.ID,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		Status:          order.Status,
		PaymentStatus:   order.PaymentStatus,
		Subtotal:        order.Subtotal,
		Notes:           order.Notes,
		Items:           items,
		CanceledAt:      order.CanceledAt,
		CreatedAt:       order.CreatedAt,
	}
}
