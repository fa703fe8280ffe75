package worker

import (
	"context"

	"order-engine/internal/broker"
	"order-engine/internal/models"
	"order-engine/internal/service"
	"order-engine/internal/util"

	"go.uber.org/zap"
)

// CacheWorker evicts product snapshots for every committed stock or catalog
// change it sees on the event stream, including ones made by other processes.
type CacheWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	cache        service.ProductCache
	logger       *zap.Logger
}

// NewCacheWorker creates a new cache worker
func NewCacheWorker(consumer *broker.Consumer, cache service.ProductCache) *CacheWorker {
	w := &CacheWorker{
		consumer: consumer,
		cache:    cache,
		logger:   util.GetLogger(),
	}
	w.eventHandler = NewCacheEventHandler(cache)
	return w
}

// NewCacheEventHandler wires cache eviction to the stock and product events.
func NewCacheEventHandler(cache service.ProductCache) *broker.EventHandler {
	handler := broker.NewEventHandler()

	evict := func(ctx context.Context, productID int64) error {
		if err := cache.InvalidateProduct(ctx, productID); err != nil {
			return err
		}
		util.CacheEvictionsTotal.WithLabelValues("remote").Inc()
		return nil
	}

	handler.OnStockChanged(func(ctx context.Context, event *models.StockChangedEvent) error {
		return evict(ctx, event.ProductID)
	})
	handler.OnProductRemoved(func(ctx context.Context, event *models.ProductRemovedEvent) error {
		return evict(ctx, event.ProductID)
	})
	return handler
}

// Start starts the worker
func (w *CacheWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cache worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CacheWorker) Stop() error {
	w.logger.Info("Stopping cache worker")
	return w.consumer.Close()
}
