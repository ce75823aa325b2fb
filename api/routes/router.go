package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/courtside-storefront/api/controllers"
	cartcontrollers "github.com/angelmondragon/courtside-storefront/api/controllers/cart"
	"github.com/angelmondragon/courtside-storefront/api/middleware"
	"github.com/angelmondragon/courtside-storefront/pkg/config"
	"github.com/angelmondragon/courtside-storefront/pkg/logger"
	pkgredis "github.com/angelmondragon/courtside-storefront/pkg/redis"
)

// Params carries everything the router wires into controllers.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	Carts    cartcontrollers.Carts
	Resolver controllers.VariantResolver
	// Pingers are checked by /health/ready, keyed by dependency name.
	Pingers  map[string]controllers.Pinger
	Gatherer prometheus.Gatherer

	// Idempotency records Idempotency-Key responses for cart mutations; nil disables it.
	Idempotency pkgredis.IdempotencyStore
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Pingers))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	cartHandlers := cartcontrollers.Handlers{
		Carts:       p.Carts,
		Logger:      logg,
		WaitTimeout: cfg.Cart.WaitTimeout,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products/{slug}/availability", controllers.ProductAvailability(p.Resolver, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.Visitor(cfg.Session, logg))
			idem := middleware.Idempotency(p.Idempotency, cfg.Cart.IdempotencyTTL, logg)
			r.Get("/", cartHandlers.Fetch())
			r.With(idem).Delete("/", cartHandlers.Clear())
			r.Get("/checkout", cartHandlers.Checkout())
			r.With(idem).Post("/lines", cartHandlers.AddLine())
			r.With(idem).Patch("/lines", cartHandlers.UpdateLine())
			r.With(idem).Delete("/lines", cartHandlers.RemoveLine())
		})
	})

	return r
}
