package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-engine/internal/cache"
	"github.com/fjod/go_cart/cart-engine/internal/catalog"
	"github.com/fjod/go_cart/cart-engine/internal/config"
	"github.com/fjod/go_cart/cart-engine/internal/discount"
	"github.com/fjod/go_cart/cart-engine/internal/events"
	h "github.com/fjod/go_cart/cart-engine/internal/http"
	"github.com/fjod/go_cart/cart-engine/internal/lock"
	l "github.com/fjod/go_cart/cart-engine/internal/logger"
	"github.com/fjod/go_cart/cart-engine/internal/poller"
	"github.com/fjod/go_cart/cart-engine/internal/publisher"
	"github.com/fjod/go_cart/cart-engine/internal/repository"
	s "github.com/fjod/go_cart/cart-engine/internal/service"
	"github.com/fjod/go_cart/cart-engine/internal/stock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := l.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catalog and cart rules
	catalogDB, err := catalog.NewSQLiteRepository(cfg.Catalog.DBPath)
	if err != nil {
		logger.Fatal("Failed to open catalog", zap.Error(err))
	}
	defer catalogDB.Close()
	if err := catalogDB.RunMigrations(); err != nil {
		logger.Fatal("Failed to run catalog migrations", zap.Error(err))
	}
	products := catalog.NewBreakerCatalog(catalogDB, catalog.BreakerSettings{
		ConsecutiveFailures: uint32(cfg.Catalog.BreakerFailures),
		OpenTimeout:         cfg.Catalog.BreakerTimeout,
	}, logger)
	rules := discount.NewEngine(catalogDB, discount.NewStandardPredicate(), logger)

	// Cart storage
	var repo repository.CartRepository
	switch cfg.Storage.Backend {
	case "mongo":
		mongoDB, err := repository.Connect(ctx, repository.MongoConfig{
			URI:      cfg.Storage.MongoURI,
			Database: cfg.Storage.MongoDBName,
		})
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer mongoDB.Client().Disconnect(context.Background())
		repo = repository.NewMongoRepository(mongoDB)
		if err := repository.CreateIndexes(ctx, repo); err != nil {
			logger.Fatal("Failed to create cart indexes", zap.Error(err))
		}
		logger.Info("Connected to MongoDB", zap.String("uri", cfg.Storage.MongoURI))
	default:
		repo = repository.NewMemoryRepository()
		logger.Warn("Using in-memory cart store, carts are lost on restart")
	}

	// Redis backs the snapshot cache and, optionally, the cart lock
	var snapshots cache.SnapshotCache = cache.Noop{}
	var redisClient *redis.Client
	if cfg.Storage.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("Redis connection failed", zap.Error(err))
		}
		snapshots = cache.NewRedisCache(redisClient)
		logger.Info("Redis ping succeeded", zap.String("addr", cfg.Storage.RedisAddr))
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Lock.Backend == "redis" {
		locker = lock.NewRedisLocker(redisClient, cfg.Lock.TTL, logger)
	}

	// Events
	bus := events.NewBus(logger)
	defer bus.Close()

	if len(cfg.KafkaBrokers) > 0 {
		pub := publisher.NewEventPublisher(bus.Subscribe(256), logger, cfg.KafkaBrokers...)
		defer pub.Close()
		go pub.Run(ctx)

		checkoutPoller := poller.NewPoller(repo, snapshots, logger, cfg.KafkaBrokers...)
		defer checkoutPoller.Close()
		go checkoutPoller.Run(ctx)
		logger.Info("Kafka wired", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	service := s.NewCartService(s.Dependencies{
		Catalog:         products,
		Rules:           rules,
		Repo:            repo,
		Locker:          locker,
		Cache:           snapshots,
		Events:          bus,
		Stock:           stock.NewChecker(cfg.Cart.AllowOutOfStockOrders),
		Logger:          logger,
		MaxLineQuantity: cfg.Cart.MaxLineQuantity,
	})

	cartHandler := h.NewCartHandler(service, cfg.Server.RequestTimeout, logger)
	router := h.NewRouter(cartHandler, h.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		ValidateToken:  h.MockTokenValidator,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      otelhttp.NewHandler(router, "cart-engine"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Cart engine listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down cart engine...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("Cart engine stopped")
}
