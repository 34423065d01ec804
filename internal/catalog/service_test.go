package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akbarsho/storefront-backend/pkg/config"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
	"github.com/akbarsho/storefront-backend/pkg/logger"
)

const productJSON = `{
	"id": 7,
	"title": "Premium Hoodie",
	"price": 10.00,
	"description": "Heavyweight fleece",
	"category": "clothing",
	"image": "https://cdn.example.com/hoodie.png",
	"variants": {
		"sizes": [
			{"value": "S", "priceDiff": 0},
			{"value": "M", "priceDiff": 5.00}
		],
		"colors": [
			{"value": "Black", "priceDiff": 2.00}
		]
	}
}`

func newTestService(t *testing.T, handler http.Handler, cache Cache) (Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewService(ServiceParams{
		Config: config.CatalogConfig{
			BaseURL:  srv.URL,
			Timeout:  5 * time.Second,
			CacheTTL: 5 * time.Minute,
		},
		Cache:  cache,
		Logger: logger.New(logger.Options{ServiceName: "catalog-test"}),
	})
	require.NoError(t, err)
	return svc, srv
}

func TestGetProductNormalizesPricesToCents(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(productJSON))
	}), nil)

	product, err := svc.GetProduct(context.Background(), "7")
	require.NoError(t, err)

	require.Equal(t, "7", product.ID)
	require.EqualValues(t, 1000, product.BasePrice)
	require.Len(t, product.VariantAxes, 2)

	// axes come out sorted: colors then sizes
	require.Equal(t, "color", product.VariantAxes[0].Name)
	require.EqualValues(t, 200, product.VariantAxes[0].Options[0].PriceDiff)
	require.Equal(t, "size", product.VariantAxes[1].Name)
	require.EqualValues(t, 500, product.VariantAxes[1].Options[1].PriceDiff)
}

func TestGetProductNotFound(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), nil)

	_, err := svc.GetProduct(context.Background(), "9999")
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeNotFound, coded.Code())
}

func TestListProductsUsesCache(t *testing.T) {
	var calls int
	cache := newFakeCache()
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[" + productJSON + "]"))
	}), cache)

	first, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)

	require.Equal(t, 1, calls, "second read must come from cache")
	require.Equal(t, first[0].BasePrice, second[0].BasePrice)
}

func TestUpstreamFailureIsDependencyError(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), nil)

	_, err := svc.ListProducts(context.Background())
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeDependency, coded.Code())
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key], nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := value.(string); ok {
		f.data[key] = s
	}
	return nil
}

func (f *fakeCache) CatalogKey(parts ...string) string {
	out := "catalog"
	for _, p := range parts {
		if p != "" {
			out += ":" + p
		}
	}
	return out
}
