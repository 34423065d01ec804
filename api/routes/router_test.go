package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/akbarsho/storefront-backend/internal/identity"
	"github.com/akbarsho/storefront-backend/internal/orders"
	"github.com/akbarsho/storefront-backend/internal/pricing"
	"github.com/akbarsho/storefront-backend/internal/registry"
	"github.com/akbarsho/storefront-backend/pkg/config"
	"github.com/akbarsho/storefront-backend/pkg/docstore"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
	"github.com/akbarsho/storefront-backend/pkg/logger"
	"github.com/akbarsho/storefront-backend/pkg/metrics"
)

type fixedCatalog struct{}

func (fixedCatalog) ListProducts(ctx context.Context) ([]pricing.Product, error) {
	return []pricing.Product{routerProduct()}, nil
}

func (fixedCatalog) GetProduct(ctx context.Context, productID string) (pricing.Product, error) {
	if productID != "p-1" {
		return pricing.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return routerProduct(), nil
}

func routerProduct() pricing.Product {
	return pricing.Product{
		ID:        "p-1",
		Title:     "Premium Hoodie",
		BasePrice: 1000,
		VariantAxes: []pricing.VariantAxis{
			{Name: "size", Options: []pricing.VariantOption{{Value: "M", PriceDiff: 500}}},
		},
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, data []byte) (string, error) { return "msg", nil }

func newTestRouter(t *testing.T) (http.Handler, config.AuthConfig) {
	t.Helper()

	store := docstore.NewMemoryStore()
	logg := logger.New(logger.Options{ServiceName: "routes-test"})
	authCfg := config.AuthConfig{Mode: config.AuthModeJWT, JWTSecret: "test-secret", JWTIssuer: "storefront"}

	verifier, err := identity.NewJWTVerifier(authCfg, store)
	require.NoError(t, err)

	reg, err := registry.NewService(registry.ServiceParams{Store: store, Logger: logg})
	require.NoError(t, err)

	ord, err := orders.NewService(orders.ServiceParams{
		Store:     store,
		Registry:  reg,
		Publisher: noopPublisher{},
		Logger:    logg,
	})
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	metrics.NewOpMetrics(promReg)

	cfg := &config.Config{}
	cfg.App.Env = "test"

	router := NewRouter(Deps{
		Config:   cfg,
		Logger:   logg,
		Verifier: verifier,
		Registry: reg,
		Catalog:  fixedCatalog{},
		Orders:   ord,
		Gatherer: promReg,
	})
	return router, authCfg
}

func bearerToken(t *testing.T, cfg config.AuthConfig) string {
	t.Helper()
	token, err := identity.MintAccessToken(cfg, time.Now(), identity.User{ID: "user-1", Email: "jo@example.com"}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouterHealthAndPublicRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "test", resp.Header().Get("X-Storefront-Env"))

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/public/ping", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRouterRejectsMissingToken(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRouterCartFlow(t *testing.T) {
	router, authCfg := newTestRouter(t)
	token := bearerToken(t, authCfg)

	body := `{"productId":"p-1","quantity":2,"selections":{"size":"M"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(body))
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", token)

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data struct {
			Items []registry.CartLine `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Len(t, envelope.Data.Items, 1)
	require.EqualValues(t, 1500, envelope.Data.Items[0].UnitPrice)
	require.Equal(t, "size:M", envelope.Data.Items[0].VariantKey)
}

func TestRouterProductsRequireToken(t *testing.T) {
	router, authCfg := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", bearerToken(t, authCfg))

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRouterRequestIDEcho(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
	req.Header.Set("X-Request-Id", "req-123")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "req-123", resp.Header().Get("X-Request-Id"))
}
