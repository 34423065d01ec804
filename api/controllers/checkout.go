package controllers

import (
	"net/http"

	"github.com/akbarsho/storefront-backend/api/middleware"
	"github.com/akbarsho/storefront-backend/api/responses"
	"github.com/akbarsho/storefront-backend/api/validators"
	"github.com/akbarsho/storefront-backend/internal/orders"
	"github.com/akbarsho/storefront-backend/internal/registry"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
	"github.com/akbarsho/storefront-backend/pkg/logger"
	"github.com/akbarsho/storefront-backend/pkg/types"
)

type checkoutPayload struct {
	ShippingInfo  types.ShippingInfo `json:"shippingInfo" validate:"required"`
	PaymentMethod string             `json:"paymentMethod" validate:"required,oneof=card bank_transfer cash_on_delivery"`
}

// Checkout snapshots the caller's cart and turns it into an order.
func Checkout(ord orders.Service, reg registry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ord == nil || reg == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		user, ok := middleware.UserFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		var payload checkoutPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		lines, err := reg.List(ctx, user.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if len(lines) == 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
			return
		}

		orderID, err := ord.PlaceOrder(ctx, user, orders.PlaceOrderInput{
			ShippingInfo:  payload.ShippingInfo,
			PaymentMethod: payload.PaymentMethod,
			Lines:         lines,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"orderId": orderID})
	}
}
