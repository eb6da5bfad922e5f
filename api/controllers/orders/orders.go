package orders

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	checkoutActor = "checkout"
	maxNotesLen   = 2000
)

// Create places an order. A stock shortfall answers 400 with the unavailable
// lines at the top level of the error envelope.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var input internalorders.PlaceOrderInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.Notes != nil {
			notes := validators.SanitizeString(*input.Notes, maxNotesLen)
			input.Notes = &notes
		}
		input.Actor = actorOr(r, checkoutActor)

		result, err := svc.PlaceOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(result.Order))
	}
}

// Detail returns one order with its line items.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// Cancel cancels a pending or confirmed order and returns its stock.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CancelOrder(r.Context(), orderID, actorOr(r, "customer"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cancelResponse{
			Order:         newOrderResponse(result.Order),
			ReleasedItems: result.ReleasedItems,
			RefundDue:     result.RefundDue,
		})
	}
}

func actorOr(r *http.Request, fallback string) string {
	if actor := strings.TrimSpace(middleware.ActorFromContext(r.Context())); actor != "" {
		return actor
	}
	return fallback
}
