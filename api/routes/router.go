package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akbarsho/storefront-backend/api/controllers"
	"github.com/akbarsho/storefront-backend/api/middleware"
	"github.com/akbarsho/storefront-backend/internal/catalog"
	"github.com/akbarsho/storefront-backend/internal/identity"
	"github.com/akbarsho/storefront-backend/internal/orders"
	"github.com/akbarsho/storefront-backend/internal/registry"
	"github.com/akbarsho/storefront-backend/pkg/config"
	"github.com/akbarsho/storefront-backend/pkg/logger"
)

type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Verifier identity.Verifier

	Registry registry.Service
	Catalog  catalog.Service
	Orders   orders.Service

	// Pingers are probed by the readiness endpoint, keyed by dependency name.
	Pingers map[string]controllers.Pinger

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(deps.Config))
		r.Get("/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.Pingers))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Verifier, deps.Logger))

		r.Get("/ping", controllers.PrivatePing())
		r.Get("/profile", controllers.Profile(deps.Logger))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartList(deps.Registry, deps.Logger))
			r.Post("/", controllers.CartAdd(deps.Registry, deps.Catalog, deps.Logger))
			r.Patch("/quantity", controllers.CartSetQuantity(deps.Registry, deps.Logger))
			r.Delete("/", controllers.CartClear(deps.Registry, deps.Logger))
			r.Get("/stream", controllers.CartStream(deps.Registry, deps.Logger))
			r.Delete("/{lineID}", controllers.CartRemove(deps.Registry, deps.Logger))
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", controllers.FavoritesList(deps.Registry, deps.Logger))
			r.Post("/", controllers.FavoritesAdd(deps.Registry, deps.Catalog, deps.Logger))
			r.Get("/stream", controllers.FavoritesStream(deps.Registry, deps.Logger))
			r.Get("/{productID}", controllers.FavoriteStatus(deps.Registry, deps.Logger))
			r.Delete("/{productID}", controllers.FavoritesRemove(deps.Registry, deps.Logger))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(deps.Catalog, deps.Logger))
			r.Get("/{productID}", controllers.ProductGet(deps.Catalog, deps.Logger))
			r.Post("/{productID}/quote", controllers.ProductQuote(deps.Catalog, deps.Logger))
		})

		r.Post("/checkout", controllers.Checkout(deps.Orders, deps.Registry, deps.Logger))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(deps.Orders, deps.Logger))
			r.Get("/{orderID}", controllers.OrderGet(deps.Orders, deps.Logger))
		})
	})

	return r
}
