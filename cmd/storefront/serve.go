package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/db"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/identity"
	"github.com/fjod/go_cart/storefront/internal/logging"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func runMigrate(cfg *Config) error {
	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.RunMigrations(conn, cfg.MigrationsPath); err != nil {
		return err
	}
	log.Printf("migrations applied to %s", cfg.DBPath)
	return nil
}

func runServe(ctx context.Context, cfg *Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.RunMigrations(conn, cfg.MigrationsPath); err != nil {
		return err
	}
	logger.Info("database ready", slog.String("path", cfg.DBPath))

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		logger.Info("redis ping succeeded", slog.String("addr", cfg.RedisAddr))
	}

	store, closeStore, err := openStore(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	products := catalog.NewService(catalogSource(cfg, conn), productCache(redisClient), logger)

	toaster := notify.NewToaster(cfg.ToastTTL, logger)
	defer toaster.Close()

	engine := service.NewCartService(store, toaster, logger)
	defer engine.Close()

	provider := identity.NewProvider(identity.NewSQLiteAccounts(conn), logger)
	stopWatch := provider.Watch(engine.OnIdentityChange)
	defer stopWatch()
	if err := provider.Settle(ctx, cfg.RestoreUID); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(store, logger, cfg.KafkaBrokers...)
		defer func() {
			cancel()
			p.Close()
		}()
		go p.Run(runCtx)
		logger.Info("checkout poller started", slog.Any("brokers", cfg.KafkaBrokers))
	}

	router := h.NewRouter(h.Handlers{
		Cart:          h.NewCartHandler(engine, products, toaster, logger, cfg.RequestTimeout),
		Products:      h.NewProductHandler(products, logger, cfg.RequestTimeout),
		Auth:          h.NewAuthHandler(provider, logger, cfg.RequestTimeout),
		Notifications: h.NewNotificationHandler(toaster),
	}, logger, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("storefront starting", slog.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

type indexer interface {
	CreateIndexes(ctx context.Context) error
}

func openStore(ctx context.Context, cfg *Config, redisClient *redis.Client, logger *slog.Logger) (repository.CartStore, func(), error) {
	if cfg.StoreBackend != "mongo" {
		logger.Info("using in-memory cart store")
		return repository.NewMemoryStore(), func() {}, nil
	}

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	closeFn := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(disconnectCtx); err != nil {
			logger.Error("mongo disconnect failed", slog.Any("error", err))
		}
	}

	store := repository.NewMongoRepository(mongoDB, repository.NewRedisFeed(redisClient, logger), logger)
	if ix, ok := store.(indexer); ok {
		if err := ix.CreateIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	logger.Info("connected to MongoDB", slog.String("uri", cfg.MongoURI))
	return store, closeFn, nil
}

func catalogSource(cfg *Config, conn *sql.DB) catalog.Source {
	if cfg.CatalogSource == "http" {
		client := &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		return catalog.NewHTTPSource(cfg.CatalogURL, client)
	}
	return catalog.NewRepository(conn)
}

func productCache(client *redis.Client) catalog.ProductCache {
	if client == nil {
		return nil
	}
	return catalog.NewRedisCache(client)
}
