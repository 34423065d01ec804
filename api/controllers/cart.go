package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/akbarsho/storefront-backend/api/middleware"
	"github.com/akbarsho/storefront-backend/api/responses"
	"github.com/akbarsho/storefront-backend/api/validators"
	"github.com/akbarsho/storefront-backend/internal/catalog"
	"github.com/akbarsho/storefront-backend/internal/pricing"
	"github.com/akbarsho/storefront-backend/internal/registry"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
	"github.com/akbarsho/storefront-backend/pkg/logger"
)

type addCartItemPayload struct {
	ProductID  string            `json:"productId" validate:"required"`
	Quantity   int64             `json:"quantity" validate:"required,gte=1"`
	Selections map[string]string `json:"selections"`
}

type setQuantityPayload struct {
	Identifier string `json:"identifier" validate:"required"`
	Quantity   int64  `json:"quantity" validate:"gte=0"`
	VariantKey string `json:"variantKey"`
}

// CartList returns the caller's current cart lines.
func CartList(reg registry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reg == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registry unavailable"))
			return
		}
		user, ok := middleware.UserFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		lines, err := reg.List(ctx, user.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": lines})
	}
}

// CartAdd prices the selection server-side and merges the line into the cart.
func CartAdd(reg registry.Service, cat catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reg == nil || cat == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		user, ok := middleware.UserFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		var payload addCartItemPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		product, err := cat.GetProduct(ctx, payload.ProductID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := pricing.ValidateSelections(product, payload.Selections); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		quote := pricing.Resolve(product, payload.Selections)

		line, err := reg.Upsert(ctx, user.ID, registry.Candidate{
			ProductID:  product.ID,
			VariantKey: quote.VariantKey,
			Quantity:   payload.Quantity,
			UnitPrice:  quote.UnitPrice,
			Title:      quote.Label,
			Image:      product.Image,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, line)
	}
}

// CartSetQuantity rewrites a line's quantity; zero removes the line.
func CartSetQuantity(reg registry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reg == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registry unavailable"))
			return
		}
		user, ok := middleware.UserFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		var payload setQuantityPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := reg.SetQuantity(ctx, user.ID, payload.Identifier, payload.Quantity, payload.VariantKey); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

// CartRemove drops one line by id or by productId+variantKey.
func CartRemove(reg registry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reg == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registry unavailable"))
			return
		}
		user, ok := middleware.UserFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		identifier := strings.TrimSpace(chi.URLParam(r, "lineID"))
		if identifier == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "line identifier is required"))
			return
		}
		variantKey := strings.TrimSpace(r.URL.Query().Get("variantKey"))

		if err := reg.Remove(ctx, user.ID, identifier, variantKey); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

// CartClear empties the caller's cart.
func CartClear(reg registry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reg == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registry unavailable"))
			return
		}
		user, ok := middleware.UserFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		if err := reg.Clear(ctx, user.ID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

// CartStream pushes the full line set over server-sent events on every
// confirmed change, starting with the current snapshot.
func CartStream(reg registry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reg == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registry unavailable"))
			return
		}
		user, ok := middleware.UserFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		updates := make(chan []registry.CartLine, 8)
		cancel, err := reg.Subscribe(ctx, user.ID, func(lines []registry.CartLine) {
			// a slow client drops intermediate snapshots, never blocks a write
			select {
			case updates <- lines:
			default:
			}
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer cancel()

		writeSSEHeaders(w)
		for {
			select {
			case <-ctx.Done():
				return
			case lines := <-updates:
				if err := writeSSEEvent(w, flusher, map[string]any{"items": lines}); err != nil {
					return
				}
			}
		}
	}
}

func writeSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
