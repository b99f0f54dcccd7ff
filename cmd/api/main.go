package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/httpx"
	"github.com/joao-fontenele/storefront/internal/idempotency"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/users"
)

const serviceName = "storefront-api"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.SlogLevel()}))
	slog.SetDefault(logger)

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, cfg.Telemetry)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	tokens, err := auth.NewTokens(cfg.Auth)
	if err != nil {
		logger.Error("failed to configure auth", "error", err)
		os.Exit(1)
	}

	dispatcher, closeDispatcher, err := newDispatcher(cfg, logger)
	if err != nil {
		logger.Error("failed to configure notifications", "error", err)
		os.Exit(1)
	}
	defer closeDispatcher()

	var idempotencyStore idempotency.Store
	if cfg.Redis.Enabled() {
		store, err := idempotency.NewRedisStore(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = store.Close() }()
		idempotencyStore = store
	} else {
		logger.Warn("REDIS_URL not set, Idempotency-Key headers are ignored")
	}

	productRepo := catalog.NewRepository(db)
	orderRepo := orders.NewOrderRepository(db, cfg.Checkout.NumberStrategy)
	cartRepo := cart.NewRepository(db)
	userRepo := users.NewRepository(db)

	svc, err := checkout.NewService(checkout.Params{
		UnitOfWork:            checkout.NewSQLUnitOfWork(db, productRepo, orderRepo, cartRepo),
		Users:                 userRepo,
		Dispatcher:            dispatcher,
		Logger:                logger,
		MaxAllocationAttempts: cfg.Checkout.MaxAllocationAttempts,
		NotifyTimeout:         cfg.Checkout.NotifyTimeout,
	})
	if err != nil {
		logger.Error("failed to create checkout service", "error", err)
		os.Exit(1)
	}

	mux := routes(routeDeps{
		db:          db,
		tokens:      tokens,
		metrics:     metricsHandler,
		idempotency: idempotency.Middleware(idempotencyStore, cfg.Redis.IdempotencyTTL, logger),
		login:       users.NewHandler(userRepo, tokens, logger),
		catalog:     catalog.NewHandler(productRepo, logger),
		cart:        cart.NewHandler(cartRepo, productRepo, logger),
		checkout:    checkout.NewHandler(svc, logger),
		orders:      orders.NewHandler(orderRepo, logger),
	})

	server := &http.Server{
		Addr: ":" + cfg.App.Port,
		Handler: otelhttp.NewHandler(mux, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting storefront api", "port", cfg.App.Port, "number_strategy", cfg.Checkout.NumberStrategy)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// notifications still in flight were started by committed orders
	svc.Wait()
}

// newDispatcher picks kafka when brokers are configured, then in-process
// mail, then a dispatcher that only logs.
func newDispatcher(cfg *config.Config, logger *slog.Logger) (checkout.Dispatcher, func(), error) {
	if cfg.Kafka.Enabled() {
		producer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, messaging.WithWriteTimeout(cfg.Checkout.NotifyTimeout))
		logger.Info("order notifications go through kafka", "topic", cfg.Kafka.Topic)
		return notify.NewKafkaDispatcher(producer), func() { _ = producer.Close() }, nil
	}

	if cfg.Mail.Enabled() {
		mailer, err := email.NewMailer(cfg.Mail, logger)
		if err != nil {
			return nil, nil, err
		}
		sender := notify.NewSender(mailer, cfg.Mail.AdminRecipient, cfg.Mail.AttachPDF, logger)
		logger.Info("order notifications are mailed in process", "recipient", cfg.Mail.AdminRecipient)
		return notify.NewDirectDispatcher(sender), func() {}, nil
	}

	logger.Warn("neither KAFKA_BROKERS nor EMAIL_HOST set, order notifications are disabled")
	return notify.NewNopDispatcher(logger), func() {}, nil
}

type routeDeps struct {
	db          *sql.DB
	tokens      *auth.Tokens
	metrics     http.Handler
	idempotency func(http.Handler) http.Handler
	login       *users.Handler
	catalog     *catalog.Handler
	cart        *cart.Handler
	checkout    *checkout.Handler
	orders      *orders.Handler
}

func routes(d routeDeps) *http.ServeMux {
	anyRole := []domain.Role{domain.RoleAdmin, domain.RoleStoreOwner}
	storeOwner := []domain.Role{domain.RoleStoreOwner}
	admin := []domain.Role{domain.RoleAdmin}

	protect := func(h http.Handler, roles []domain.Role) http.Handler {
		return d.tokens.Middleware(auth.RequireRole(roles...)(h))
	}
	route := func(h http.HandlerFunc, roles []domain.Role) http.Handler {
		return protect(telemetry.WithHTTPRoute(h), roles)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", d.metrics)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.db.PingContext(r.Context()); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /auth/login", telemetry.WithHTTPRoute(d.login.HandleLogin))

	mux.Handle("GET /products", route(d.catalog.HandleList, anyRole))
	mux.Handle("GET /products/{id}", route(d.catalog.HandleGet, anyRole))

	mux.Handle("GET /cart", route(d.cart.HandleGet, storeOwner))
	mux.Handle("POST /cart/items", route(d.cart.HandleAdd, storeOwner))
	mux.Handle("PATCH /cart/items", route(d.cart.HandleUpdate, storeOwner))
	mux.Handle("DELETE /cart/items/{productId}", route(d.cart.HandleRemove, storeOwner))

	mux.Handle("POST /checkout", protect(d.idempotency(telemetry.WithHTTPRoute(d.checkout.HandleCheckout)), storeOwner))

	mux.Handle("GET /orders", route(d.orders.HandleListOwn, anyRole))
	mux.Handle("GET /orders/{id}", route(d.orders.HandleGet, anyRole))
	mux.Handle("GET /admin/orders", route(d.orders.HandleList, admin))
	mux.Handle("PATCH /admin/orders/{id}/status", route(d.orders.HandleUpdateStatus, admin))

	return mux
}
