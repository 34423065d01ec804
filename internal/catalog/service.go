package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akbarsho/storefront-backend/internal/pricing"
	"github.com/akbarsho/storefront-backend/pkg/config"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
	"github.com/akbarsho/storefront-backend/pkg/logger"
)

// Cache is the slice of the Redis client the catalog needs. A nil-safe noop
// stands in when Redis is not configured.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CatalogKey(parts ...string) string
}

// ServiceParams groups dependencies for the catalog accessor.
type ServiceParams struct {
	Config     config.CatalogConfig
	Cache      Cache
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Service reads products from the upstream catalog API. Prices arrive as
// floating dollars and are normalized to integer cents exactly once, here.
type Service interface {
	ListProducts(ctx context.Context) ([]pricing.Product, error)
	GetProduct(ctx context.Context, productID string) (pricing.Product, error)
}

type service struct {
	cfg    config.CatalogConfig
	cache  Cache
	client *http.Client
	logg   *logger.Logger
}

// NewService builds the catalog accessor.
func NewService(params ServiceParams) (Service, error) {
	if params.Config.BaseURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog base url is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	client := params.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: params.Config.Timeout}
	}
	cache := params.Cache
	if cache == nil {
		cache = noopCache{}
	}
	return &service{
		cfg:    params.Config,
		cache:  cache,
		client: client,
		logg:   params.Logger,
	}, nil
}

// ListProducts returns the full catalog, served from cache when fresh.
func (s *service) ListProducts(ctx context.Context) ([]pricing.Product, error) {
	key := s.cache.CatalogKey("products")
	if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
		var products []pricing.Product
		if err := json.Unmarshal([]byte(cached), &products); err == nil {
			return products, nil
		}
	}

	var upstream []upstreamProduct
	if err := s.fetch(ctx, "/products", &upstream); err != nil {
		return nil, err
	}

	products := make([]pricing.Product, 0, len(upstream))
	for _, up := range upstream {
		product, err := up.normalize()
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	s.cacheSet(ctx, key, products)
	return products, nil
}

// GetProduct returns a single product or a NOT_FOUND error.
func (s *service) GetProduct(ctx context.Context, productID string) (pricing.Product, error) {
	if productID == "" {
		return pricing.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	key := s.cache.CatalogKey("product", productID)
	if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
		var product pricing.Product
		if err := json.Unmarshal([]byte(cached), &product); err == nil {
			return product, nil
		}
	}

	var up upstreamProduct
	if err := s.fetch(ctx, "/products/"+productID, &up); err != nil {
		return pricing.Product{}, err
	}
	product, err := up.normalize()
	if err != nil {
		return pricing.Product{}, err
	}

	s.cacheSet(ctx, key, product)
	return product, nil
}

func (s *service) fetch(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building catalog request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling catalog API")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("catalog API returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading catalog response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding catalog response")
	}
	return nil
}

func (s *service) cacheSet(ctx context.Context, key string, value any) {
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(b), s.cfg.CacheTTL); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "catalog cache write failed")
	}
}

// upstreamProduct mirrors the catalog API wire shape. Prices are decimal
// dollars; variants are an optional map of axis name to options.
type upstreamProduct struct {
	ID          json.Number                  `json:"id"`
	Title       string                       `json:"title"`
	Price       json.Number                  `json:"price"`
	Description string                       `json:"description"`
	Category    string                       `json:"category"`
	Image       string                       `json:"image"`
	Variants    map[string][]upstreamVariant `json:"variants"`
}

type upstreamVariant struct {
	Value     string      `json:"value"`
	PriceDiff json.Number `json:"priceDiff"`
}

func (up upstreamProduct) normalize() (pricing.Product, error) {
	basePrice, err := dollarsToCents(up.Price)
	if err != nil {
		return pricing.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parsing product price")
	}

	axisNames := make([]string, 0, len(up.Variants))
	for name := range up.Variants {
		axisNames = append(axisNames, name)
	}
	sort.Strings(axisNames)

	axes := make([]pricing.VariantAxis, 0, len(axisNames))
	for _, name := range axisNames {
		options := make([]pricing.VariantOption, 0, len(up.Variants[name]))
		for _, v := range up.Variants[name] {
			diff, err := dollarsToCents(v.PriceDiff)
			if err != nil {
				return pricing.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parsing variant price diff")
			}
			options = append(options, pricing.VariantOption{Value: v.Value, PriceDiff: diff})
		}
		axes = append(axes, pricing.VariantAxis{Name: axisName(name), Options: options})
	}

	return pricing.Product{
		ID:          up.ID.String(),
		Title:       up.Title,
		Description: up.Description,
		Image:       up.Image,
		Category:    up.Category,
		BasePrice:   basePrice,
		VariantAxes: axes,
	}, nil
}

// axisName maps the upstream plural axis names onto the singular selection
// keys used in variant keys ("sizes" -> "size").
func axisName(name string) string {
	switch name {
	case "sizes":
		return "size"
	case "colors":
		return "color"
	default:
		return name
	}
}

func dollarsToCents(value json.Number) (int64, error) {
	if value == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(value.String())
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (string, error) { return "", nil }
func (noopCache) Set(context.Context, string, any, time.Duration) error {
	return nil
}
func (noopCache) CatalogKey(parts ...string) string {
	out := "catalog"
	for _, p := range parts {
		if p != "" {
			out += ":" + p
		}
	}
	return out
}
