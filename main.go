package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"b2b-storefront/cart"
	"b2b-storefront/catalog"
	"b2b-storefront/checkout"
	"b2b-storefront/config"
	"b2b-storefront/consumers"
	"b2b-storefront/controllers"
	"b2b-storefront/database"
	"b2b-storefront/delivery"
	"b2b-storefront/events"
	"b2b-storefront/logging"
	"b2b-storefront/orders"
	"b2b-storefront/pricing"
	"b2b-storefront/rabbitmq"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogLevel, !cfg.Production())
	if err != nil {
		log.Fatalf("Logger initialization failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Fatal("database initialization failed", zap.Error(err))
	}
	defer db.CloseDB()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	hub := events.NewHub()
	hub.OnDrop(func(ev events.Event) {
		logger.Debug("slow subscriber missed event", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
	})

	repo := orders.NewSQLRepository(db)
	products := catalog.NewSQLCatalog(db)

	// Without a broker events go straight to local subscribers; with one they
	// travel through the exchange and come back to every instance's hub.
	var publisher events.Publisher = hub
	var scheduler checkout.Scheduler
	if cfg.RabbitMQURL != "" {
		rmq, err := rabbitmq.NewRabbitMQ(cfg, logger)
		if err != nil {
			logger.Fatal("rabbitmq initialization failed", zap.Error(err))
		}
		defer rmq.Close()

		if err := rmq.SetupQueues(); err != nil {
			logger.Fatal("failed to setup rabbitmq queues", zap.Error(err))
		}
		instanceQueue, err := rmq.BindInstanceQueue()
		if err != nil {
			logger.Fatal("failed to bind instance queue", zap.Error(err))
		}
		consumer := consumers.NewOrderConsumer(rmq.Channel, cfg, hub, rmq, repo, logger)
		if err := consumer.Start(ctx, instanceQueue); err != nil {
			logger.Fatal("failed to start order consumer", zap.Error(err))
		}
		publisher = rmq
		scheduler = rmq
	} else {
		logger.Info("RABBITMQ_URL not set, events stay in process")
	}

	carts := cart.NewService(cart.NewSQLBackend(db), publisher)
	loc := cfg.Location()

	workflow := checkout.NewWorkflow(
		products,
		carts,
		repo,
		pricing.NewEngine(cfg.DiscountRate),
		delivery.NewScheduler(loc, cfg.CutoffHour),
		publisher,
		logger,
		checkout.Options{Minimum: cfg.OrderMinimum, IdempotencyTTL: cfg.IdempotencyTTL},
	)
	if scheduler != nil {
		workflow.WithScheduler(scheduler)
	}
	registry := orders.NewRegistry(repo, publisher, logger)

	router := controllers.SetupRouter(controllers.Handlers{
		Products: controllers.NewProductController(products, logger),
		Cart:     controllers.NewCartController(carts, workflow, logger),
		Orders:   controllers.NewOrderController(workflow, registry, loc, logger),
		Events:   controllers.NewEventController(hub, logger),
	}, cfg.JWTSecret, logger)

	// No write timeout: the event stream is long-lived.
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("storefront starting", zap.String("addr", cfg.HTTPAddr), zap.String("db_driver", cfg.DBDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server shutdown complete")
}
