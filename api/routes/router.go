package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/computers-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/computers-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/computers-backend/api/controllers/payments"
	"github.com/angelmondragon/computers-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/computers-backend/internal/checkout"
	"github.com/angelmondragon/computers-backend/internal/orders"
	paypalwebhook "github.com/angelmondragon/computers-backend/internal/webhooks/paypal"
	"github.com/angelmondragon/computers-backend/pkg/config"
	"github.com/angelmondragon/computers-backend/pkg/db"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/computers-backend/pkg/redis"
)

type redisStore interface {
	pkgredis.IdempotencyStore
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	ordersSvc orders.Service,
	checkoutService checkoutsvc.Service,
	paypalCallbacks *paypalwebhook.Service,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	idem := middleware.NewIdempotency(redisClient, cfg.Redis.IdempotencyTTL, logg)
	idempotent, critical := idem.Guard(0), idem.Guard(middleware.OrderCriticalRetention)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisClient,
		}, logg))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/payments/paypal/{orderId}", func(r chi.Router) {
		r.Get("/capture", paymentcontrollers.PayPalCapture(paypalCallbacks, logg))
		r.Get("/cancel", paymentcontrollers.PayPalCancel(paypalCallbacks, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.ActorRoleBuyer, logg))

		r.With(critical).Post("/checkout", ordercontrollers.Checkout(checkoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.ListMine(ordersSvc, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Detail(ordersSvc, logg))
				r.With(critical).Post("/cancel", ordercontrollers.Cancel(ordersSvc, logg))
				r.With(idempotent).Post("/retry-payment", ordercontrollers.RetryPayment(ordersSvc, logg))
				r.Post("/payment-slip", ordercontrollers.SubmitSlip(ordersSvc, logg))
				r.With(idempotent).Post("/refund-request", ordercontrollers.RequestRefund(ordersSvc, logg))
			})
		})
	})

	r.Route("/api/admin/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.ActorRoleAdmin, logg))

		r.Get("/", ordercontrollers.AdminList(ordersSvc, logg))
		r.Get("/statuses", ordercontrollers.AdminStatuses())
		r.Route("/{orderId}", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminDetail(ordersSvc, logg))
			r.Get("/next-statuses", ordercontrollers.AdminNextStatuses(ordersSvc, logg))
			r.Patch("/status", ordercontrollers.UpdateStatus(ordersSvc, logg))

			r.Post("/slip/approve", ordercontrollers.ApproveSlip(ordersSvc, logg))
			r.Post("/slip/reject", ordercontrollers.RejectSlip(ordersSvc, logg))
			r.Post("/slip/revert", ordercontrollers.RevertSlipApproval(ordersSvc, logg))

			r.Post("/ship", ordercontrollers.Ship(ordersSvc, logg))
			r.Patch("/shipping", ordercontrollers.AmendShipping(ordersSvc, logg))

			r.Post("/refund/approve", ordercontrollers.ApproveRefund(ordersSvc, logg))
			r.Post("/refund/reject", ordercontrollers.RejectRefund(ordersSvc, logg))
			r.Post("/refund/force", ordercontrollers.ForceRefund(ordersSvc, logg))
		})
	})

	return r
}
