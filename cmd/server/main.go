package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/Skotchmaster/revoshop/internal/auth"
	"github.com/Skotchmaster/revoshop/internal/cart"
	"github.com/Skotchmaster/revoshop/internal/checkout"
	"github.com/Skotchmaster/revoshop/internal/config"
	"github.com/Skotchmaster/revoshop/internal/db"
	"github.com/Skotchmaster/revoshop/internal/events"
	"github.com/Skotchmaster/revoshop/internal/handlers"
	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/middleware/cartid"
	"github.com/Skotchmaster/revoshop/internal/middleware/csrf"
	"github.com/Skotchmaster/revoshop/internal/registry"
	"github.com/Skotchmaster/revoshop/internal/search"
	"github.com/Skotchmaster/revoshop/internal/shopapi"
	"github.com/Skotchmaster/revoshop/internal/telemetry"
	httpserver "github.com/Skotchmaster/revoshop/internal/transport/http"
	"github.com/Skotchmaster/revoshop/internal/validation"
	"github.com/Skotchmaster/revoshop/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
	ctx := logging.IntoContext(context.Background(), logger)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Error("telemetry_init_error", "error", err)
	}

	gdb, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db_init_error", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}

	authRepo := &auth.GormRepo{DB: gdb}
	users, err := auth.LoadSeedUsers(cfg.UsersFile)
	if err != nil {
		logger.Error("seed_users_error", "file", cfg.UsersFile, "error", err)
		os.Exit(1)
	}
	if err := auth.SeedUsers(ctx, authRepo, users); err != nil {
		logger.Error("seed_users_error", "error", err)
		os.Exit(1)
	}

	var pingers []httpserver.Pinger
	carts, closeCarts, err := cartStorage(ctx, cfg, gdb)
	if err != nil {
		logger.Error("cart_storage_init_error", "backend", cfg.CartBackend, "error", err)
		os.Exit(1)
	}
	if p, ok := carts.(httpserver.Pinger); ok {
		pingers = append(pingers, p)
	}

	publisher, err := eventPublisher(cfg)
	if err != nil {
		logger.Error("events_init_error", "backend", cfg.EventsBackend, "error", err)
		os.Exit(1)
	}

	opts := []registry.Option{registry.WithObserver(events.ProductEvents{Publisher: publisher})}
	var searcher search.Searcher
	if cfg.ESURL != "" {
		esClient, err := search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Error("es_init_error", "error", err)
			os.Exit(1)
		}
		index := search.NewIndex(esClient, cfg.ESIndex)
		opts = append(opts, registry.WithObserver(index))
		searcher = index
	}
	reg := registry.New(opts...)
	if searcher == nil {
		searcher = search.Fallback{Registry: reg}
	}

	shop, err := shopapi.New(cfg.ShopAPIURL, cfg.ShopAPITimeout)
	if err != nil {
		logger.Error("shopapi_init_error", "url", cfg.ShopAPIURL, "error", err)
		os.Exit(1)
	}

	renderer, err := view.New()
	if err != nil {
		logger.Error("templates_init_error", "error", err)
		os.Exit(1)
	}

	authSvc := &auth.Service{Repo: authRepo, Secret: []byte(cfg.SessionSecret), TTL: cfg.SessionTTL, Publisher: publisher}
	checkoutSvc := &checkout.Service{DB: gdb, Publisher: publisher, Validator: validation.New()}

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.Secure = cfg.CookieSecure

	base := handlers.Base{Carts: carts}
	deps := &httpserver.Deps{
		DB:           gdb,
		Pingers:      pingers,
		Renderer:     renderer,
		CartID:       cartid.New([]byte(cfg.CartSecret), cfg.CartTTL, cfg.CookieSecure),
		Sessions:     authSvc,
		CSRF:         csrfCfg,
		SecureCookie: cfg.CookieSecure,

		ProductsAPI: &handlers.ProductsAPIHandler{Registry: reg, Search: searcher},
		Storefront:  &handlers.StorefrontHandler{Base: base, Shop: shop},
		Cart:        &handlers.CartHandler{Base: base, Shop: shop},
		Checkout:    &handlers.CheckoutHandler{Base: base, Checkout: checkoutSvc},
		Admin:       &handlers.AdminHandler{Base: base, Shop: shop},
		Auth:        &handlers.AuthHandler{Base: base, Auth: authSvc, SecureCookie: cfg.CookieSecure},
	}

	e := echo.New()
	e.HideBanner = true
	httpserver.Use(e, deps, logger)
	httpserver.Register(e, deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      otelhttp.NewHandler(e, cfg.ServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	go func() {
		<-quit
		logger.Warn("force_exit")
		os.Exit(1)
	}()

	logger.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Error("events_close_error", "error", err)
	}
	if err := closeCarts(); err != nil {
		logger.Error("cart_storage_close_error", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("telemetry_shutdown_error", "error", err)
	}

	logger.Info("shutdown_complete")
}

func cartStorage(ctx context.Context, cfg *config.Config, gdb *gorm.DB) (cart.Storage, func() error, error) {
	noop := func() error { return nil }
	switch cfg.CartBackend {
	case "redis":
		s, err := cart.NewRedisStorage(ctx, cfg.RedisURL, cfg.CartTTL)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case "memory":
		return cart.NewMemoryStorage(), noop, nil
	default:
		return cart.NewGormStorage(gdb), noop, nil
	}
}

func eventPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokers)
	case "rabbitmq":
		return events.NewRabbitPublisher(cfg.RabbitMQURL)
	default:
		return events.Noop{}, nil
	}
}
