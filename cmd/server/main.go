package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-engine/config"
	"order-engine/internal/api"
	"order-engine/internal/broker"
	"order-engine/internal/redisclient"
	"order-engine/internal/service"
	"order-engine/internal/store"
	"order-engine/internal/util"
	"order-engine/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order engine",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port))

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ProductCacheTTL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	var events service.EventPublisher
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		events = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))
	}

	ledger := service.NewStockLedger(db, events, redisClient)
	svc := api.Services{
		Validator: service.NewCartValidator(db),
		Builder: service.NewOrderBuilder(db, ledger, events, redisClient, redisClient, service.BuilderConfig{
			OrderNumberPrefix: cfg.Business.OrderNumberPrefix,
			Timeout:           cfg.Business.PlaceOrderTimeout,
			CheckoutLockTTL:   cfg.Business.CheckoutLockTTL,
			MaxAttempts:       cfg.Business.PlaceOrderAttempts,
		}),
		Orders:   service.NewOrderStateMachine(db, ledger, events, redisClient),
		Ledger:   ledger,
		Guard:    service.NewCatalogGuard(db, ledger, events, redisClient),
		Products: service.NewProductReader(db, redisClient),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var cacheWorker *worker.CacheWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		cacheWorker = worker.NewCacheWorker(consumer, redisClient)
		go func() {
			if err := cacheWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Cache worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(svc, map[string]api.ReadinessCheck{
		"database": db.Ping,
		"redis":    redisClient.Ping,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if cacheWorker != nil {
		cacheWorker.Stop()
	}

	logger.Info("Server exited")
}
