package inventory

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalinventory "github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const (
	maxReasonLen     = 500
	maxBulkUpdates   = 500
	maxThreshold     = 10000
	defaultAdminUser = "admin"
)

type availabilityRequest struct {
	Items []internalinventory.CartItem `json:"items" validate:"required,min=1"`
}

type adjustRequest struct {
	ProductID      uuid.UUID  `json:"productId" validate:"required"`
	VariationID    *uuid.UUID `json:"variationId,omitempty"`
	QuantityChange *int       `json:"quantityChange" validate:"required"`
	Reason         string     `json:"reason" validate:"required"`
	Type           string     `json:"type,omitempty"`
	CreatedBy      string     `json:"createdBy,omitempty"`
}

type bulkUpdateRequest struct {
	Updates   []internalinventory.BulkUpdateEntry `json:"updates" validate:"required,min=1"`
	CreatedBy string                              `json:"createdBy,omitempty"`
}

type adjustResponse struct {
	Success          bool                  `json:"success"`
	ProductID        uuid.UUID             `json:"productId"`
	VariationID      *uuid.UUID            `json:"variationId,omitempty"`
	Type             enums.TransactionType `json:"type"`
	QuantityChange   int                   `json:"quantityChange"`
	PreviousQuantity int                   `json:"previousQuantity"`
	NewQuantity      int                   `json:"newQuantity"`
	AvailableUnits   int                   `json:"availableUnits"`
	ReservedUnits    int                   `json:"reservedUnits"`
	StockStatus      enums.StockStatus     `json:"stockStatus"`
	LastRestockedAt  *time.Time            `json:"lastRestockedAt,omitempty"`
	LedgerRecorded   bool                  `json:"ledgerRecorded"`
}

// Availability checks a cart against current stock without mutating it.
func Availability(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		var req availabilityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CheckStockAvailability(r.Context(), req.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Adjust applies a manual stock correction. Reason is mandatory.
func Adjust(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		var req adjustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalinventory.AdjustStockInput{
			ProductID:      req.ProductID,
			VariationID:    req.VariationID,
			QuantityChange: *req.QuantityChange,
			Reason:         validators.SanitizeString(req.Reason, maxReasonLen),
			Actor:          adminActor(r, req.CreatedBy),
		}
		if raw := strings.TrimSpace(req.Type); raw != "" {
			txType, err := enums.ParseTransactionType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction type"))
				return
			}
			input.Type = txType
		}

		mutation, err := svc.AdjustStock(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adjustResponse{
			Success:          true,
			ProductID:        mutation.ProductID,
			VariationID:      mutation.VariationID,
			Type:             mutation.Type,
			QuantityChange:   mutation.Change,
			PreviousQuantity: mutation.Previous,
			NewQuantity:      mutation.New,
			AvailableUnits:   mutation.Aggregate.AvailableUnits,
			ReservedUnits:    mutation.Aggregate.ReservedUnits,
			StockStatus:      mutation.Aggregate.StockStatus,
			LastRestockedAt:  mutation.Aggregate.LastRestockedAt,
			LedgerRecorded:   mutation.LedgerWritten,
		})
	}
}

// BulkUpdate applies signed per-variation deltas. Failed entries are reported
// alongside the successful ones.
func BulkUpdate(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		var req bulkUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(req.Updates) > maxBulkUpdates {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "too many updates").
				WithDetails(map[string]any{"max": maxBulkUpdates}))
			return
		}
		for i := range req.Updates {
			req.Updates[i].Reason = validators.SanitizeString(req.Updates[i].Reason, maxReasonLen)
		}

		result, err := svc.BulkUpdateStock(r.Context(), req.Updates, adminActor(r, req.CreatedBy))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Overview groups low stock items into out of stock, critical and low.
func Overview(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		threshold, err := validators.ParseQueryInt(r, "threshold", 0, 0, maxThreshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		overview, err := svc.GetInventoryOverview(r.Context(), threshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

// LowStock lists flagged products and variations, lowest stock first.
func LowStock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		threshold, err := validators.ParseQueryInt(r, "threshold", 0, 0, maxThreshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.GetLowStockProducts(r.Context(), threshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"items":     items,
			"threshold": svc.ResolveThreshold(threshold),
		})
	}
}

// History pages the ledger of a product, optionally narrowed to a variation.
func History(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		productID, err := validators.ParseQueryUUID(r, "productId", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variationID, err := validators.ParseQueryUUID(r, "variationId", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.GetInventoryHistory(r.Context(), internalinventory.HistoryQuery{
			ProductID:   *productID,
			VariationID: variationID,
			Limit:       limit,
			Cursor:      strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Reconcile re-derives a product's stock aggregate from its variations.
func Reconcile(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		aggregate, err := svc.ReconcileProductAggregate(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"productId":       productID,
			"availableUnits":  aggregate.AvailableUnits,
			"reservedUnits":   aggregate.ReservedUnits,
			"stockStatus":     aggregate.StockStatus,
			"lastRestockedAt": aggregate.LastRestockedAt,
		})
	}
}

// adminActor prefers the authenticated caller over the self-reported createdBy.
func adminActor(r *http.Request, createdBy string) string {
	if actor := strings.TrimSpace(middleware.ActorFromContext(r.Context())); actor != "" {
		return actor
	}
	if createdBy = validators.SanitizeString(createdBy, 128); createdBy != "" {
		return createdBy
	}
	return defaultAdminUser
}
