package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/computers-backend/api/routes"
	"github.com/angelmondragon/computers-backend/internal/address"
	"github.com/angelmondragon/computers-backend/internal/catalog"
	"github.com/angelmondragon/computers-backend/internal/checkout"
	"github.com/angelmondragon/computers-backend/internal/inventory"
	"github.com/angelmondragon/computers-backend/internal/orders"
	"github.com/angelmondragon/computers-backend/internal/payments"
	paypalwebhook "github.com/angelmondragon/computers-backend/internal/webhooks/paypal"
	"github.com/angelmondragon/computers-backend/pkg/config"
	"github.com/angelmondragon/computers-backend/pkg/db"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	"github.com/angelmondragon/computers-backend/pkg/metrics"
	"github.com/angelmondragon/computers-backend/pkg/migrate"
	"github.com/angelmondragon/computers-backend/pkg/outbox"
	"github.com/angelmondragon/computers-backend/pkg/paypal"
	"github.com/angelmondragon/computers-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(registry)

	gateway := newGateway(ctx, cfg.PayPal, logg, orderMetrics)

	locker, err := orders.NewRedisLocker(redisClient, cfg.Redis.OrderLockTTL)
	if err != nil {
		return err
	}

	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      dbClient,
		Ledger:  inventory.NewLedger(conn),
		Gateway: gateway,
		Outbox:  emitter,
		Locker:  locker,
		Metrics: orderMetrics,
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:        dbClient,
		Addresses: address.NewService(conn),
		Catalog:   catalog.NewRepository(conn),
		Stock:     inventory.NewLedger(conn),
		Orders:    orders.NewRepository(conn),
		Payments:  ordersSvc,
		Outbox:    emitter,
		Config:    cfg.Checkout,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	guard, err := paypalwebhook.NewCallbackGuard(redisClient, cfg.Redis.CallbackGuardTTL)
	if err != nil {
		return err
	}
	callbacks, err := paypalwebhook.NewService(paypalwebhook.ServiceParams{
		Orders:      ordersSvc,
		Guard:       guard,
		FrontendURL: cfg.App.FrontendURL,
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"paypal_mode": cfg.PayPal.Environment(),
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, ordersSvc, checkoutSvc, callbacks, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(serverCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newGateway falls back to a gateway that rejects every call when PayPal credentials are absent,
// so bank-transfer flows keep working in local environments.
func newGateway(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger, m *metrics.OrderMetrics) payments.Gateway {
	client, err := paypal.NewClient(cfg)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "reason", err.Error()), "paypal gateway disabled")
		return payments.Unconfigured{}
	}
	return payments.NewPayPalGateway(client, cfg, logg, m)
}
