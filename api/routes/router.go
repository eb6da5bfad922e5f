package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	inventorycontrollers "github.com/angelmondragon/storefront-backend/api/controllers/inventory"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Deps are the services and clients the API routes are wired to.
type Deps struct {
	DB          db.Pinger
	Redis       pkgredis.Pinger
	Idempotency pkgredis.IdempotencyStore
	Orders      orders.Service
	Inventory   inventory.Service
	Metrics     prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSAllowedOrigins),
		middleware.Actor(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessChecks(deps)))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.Idempotency, logg, cfg.HTTP.IdempotencyTTL))

		r.Route("/v1", func(r chi.Router) {
			r.Post("/inventory/availability", inventorycontrollers.Availability(deps.Inventory, logg))

			r.Post("/orders", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/orders/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Post("/orders/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Route("/inventory", func(r chi.Router) {
				r.Post("/adjust", inventorycontrollers.Adjust(deps.Inventory, logg))
				r.Post("/bulk-update", inventorycontrollers.BulkUpdate(deps.Inventory, logg))
				r.Get("/overview", inventorycontrollers.Overview(deps.Inventory, logg))
				r.Get("/low-stock", inventorycontrollers.LowStock(deps.Inventory, logg))
				r.Get("/history", inventorycontrollers.History(deps.Inventory, logg))
				r.Post("/products/{productId}/reconcile", inventorycontrollers.Reconcile(deps.Inventory, logg))
			})
			r.Get("/orders/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Post("/orders/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
		})
	})

	return r
}

func readinessChecks(deps Deps) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{}
	if deps.DB != nil {
		checks["db"] = deps.DB
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	return checks
}
