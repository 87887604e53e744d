package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/intellisales-pos/api/controllers"
	cartcontrollers "github.com/angelmondragon/intellisales-pos/api/controllers/cart"
	"github.com/angelmondragon/intellisales-pos/api/middleware"
	"github.com/angelmondragon/intellisales-pos/pkg/config"
	"github.com/angelmondragon/intellisales-pos/pkg/logger"
)

// Dependencies are the collaborators the router wires into handlers.
// Gatherer defaults to the prometheus default registry.
type Dependencies struct {
	Sessions  cartcontrollers.Sessions
	Readiness map[string]controllers.Pinger
	Gatherer  prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	cart := cartcontrollers.Deps{
		Sessions:       deps.Sessions,
		CurrencySymbol: cfg.Cart.CurrencySymbol,
		Logger:         logg,
	}

	r.Route("/api/v1/registers/{registerID}/cart", func(r chi.Router) {
		r.Use(middleware.RegisterContext(logg))

		r.Get("/", cartcontrollers.CartFetch(cart))
		r.Delete("/", cartcontrollers.CartClear(cart))
		r.Post("/new", cartcontrollers.CartNew(cart))
		r.Post("/refresh", cartcontrollers.Refresh(cart))
		r.Delete("/notice", cartcontrollers.NoticeDismiss(cart))

		r.Route("/items", func(r chi.Router) {
			r.Get("/", cartcontrollers.ItemsList(cart))
			r.Post("/", cartcontrollers.ItemAdd(cart))
			r.Patch("/{itemID}", cartcontrollers.ItemUpdate(cart))
			r.Delete("/{itemID}", cartcontrollers.ItemRemove(cart))
		})
		r.Route("/discounts", func(r chi.Router) {
			r.Post("/", cartcontrollers.DiscountApply(cart))
			r.Delete("/{discountID}", cartcontrollers.DiscountRemove(cart))
		})
		r.Put("/customer", cartcontrollers.CustomerSet(cart))
		r.Delete("/customer", cartcontrollers.CustomerRemove(cart))
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", cartcontrollers.PaymentAdd(cart))
			r.Delete("/{paymentID}", cartcontrollers.PaymentRemove(cart))
		})
		r.Put("/tax-config", cartcontrollers.TaxConfigSet(cart))
		r.Patch("/settings", cartcontrollers.SettingsUpdate(cart))
		r.Put("/hold", cartcontrollers.HoldSet(cart))

		r.Get("/payment", cartcontrollers.PaymentFetch(cart))
		r.Get("/receipt", cartcontrollers.ReceiptFetch(cart))
		r.Get("/validation", cartcontrollers.ValidationFetch(cart))
		r.Get("/stats", cartcontrollers.StatsFetch(cart))
	})

	return r
}
