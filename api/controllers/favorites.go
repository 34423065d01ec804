package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/akbarsho/storefront-backend/api/middleware"
	"github.com/akbarsho/storefront-backend/api/responses"
	"github.com/akbarsho/storefront-backend/api/validators"
	"github.com/akbarsho/storefront-backend/internal/catalog"
	"github.com/akbarsho/storefront-backend/internal/registry"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
	"github.com/akbarsho/storefront-backend/pkg/logger"
)

type addFavoritePayload struct {
	ProductID string `json:"productId" validate:"required"`
}

// FavoritesList returns the caller's favorites in the order they were added.
func FavoritesList(reg registry.Service, logg *logger.Logger) http.HandlerFunc {
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

		favorites, err := reg.ListFavorites(ctx, user.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": favorites})
	}
}

// FavoritesAdd marks a product as favorite, snapshotting its catalog fields.
func FavoritesAdd(reg registry.Service, cat catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reg == nil || cat == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "favorites service unavailable"))
			return
		}
		user, ok := middleware.UserFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		var payload addFavoritePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		product, err := cat.GetProduct(ctx, payload.ProductID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		favorite, err := reg.AddFavorite(ctx, user.ID, registry.Favorite{
			ProductID: product.ID,
			Title:     product.Title,
			Image:     product.Image,
			UnitPrice: product.BasePrice,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, favorite)
	}
}

// FavoritesRemove drops a product from the caller's favorites.
func FavoritesRemove(reg registry.Service, logg *logger.Logger) http.HandlerFunc {
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

		productID := strings.TrimSpace(chi.URLParam(r, "productID"))
		if productID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}

		if err := reg.RemoveFavorite(ctx, user.ID, productID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

// FavoriteStatus reports whether one product is in the caller's favorites.
func FavoriteStatus(reg registry.Service, logg *logger.Logger) http.HandlerFunc {
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

		productID := strings.TrimSpace(chi.URLParam(r, "productID"))
		if productID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}

		isFavorite, err := reg.IsFavorite(ctx, user.ID, productID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"isFavorite": isFavorite})
	}
}

// FavoritesStream pushes the favorite set over server-sent events.
func FavoritesStream(reg registry.Service, logg *logger.Logger) http.HandlerFunc {
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

		updates := make(chan []registry.Favorite, 8)
		cancel, err := reg.SubscribeFavorites(ctx, user.ID, func(favorites []registry.Favorite) {
			select {
			case updates <- favorites:
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
			case favorites := <-updates:
				if err := writeSSEEvent(w, flusher, map[string]any{"items": favorites}); err != nil {
					return
				}
			}
		}
	}
}
