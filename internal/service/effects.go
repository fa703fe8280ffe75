package service

import (
	"context"
	"time"

	"order-engine/internal/models"
	"order-engine/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// effects collects what a transaction changed so that events and cache
// evictions only happen once it has committed.
type effects struct {
	events    []func(ctx context.Context, p EventPublisher) error
	products  []int64
	movements []string
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func (fx *effects) touch(productID int64) {
	for _, id := range fx.products {
		if id == productID {
			return
		}
	}
	fx.products = append(fx.products, productID)
}

func (fx *effects) stockChanged(p *models.Product, kind string, delta int) {
	fx.touch(p.ID)
	fx.movements = append(fx.movements, kind)
	event := &models.StockChangedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeStockChanged),
		ProductID:  p.ID,
		Kind:       kind,
		Delta:      delta,
		StockCount: p.StockCount,
		InStock:    p.InStock,
	}
	fx.events = append(fx.events, func(ctx context.Context, pub EventPublisher) error {
		return pub.PublishStockChanged(ctx, event)
	})
}

func (fx *effects) emit(fn func(ctx context.Context, p EventPublisher) error) {
	fx.events = append(fx.events, fn)
}

// notifier delivers committed effects. Delivery failures are logged and never
// undo the committed change.
type notifier struct {
	events EventPublisher
	cache  ProductCache
	logger *zap.Logger
}

func newNotifier(events EventPublisher, cache ProductCache) notifier {
	return notifier{
		events: events,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

func (n notifier) flush(ctx context.Context, fx *effects) {
	for _, kind := range fx.movements {
		util.StockMovementsTotal.WithLabelValues(kind).Inc()
	}

	if n.cache != nil {
		for _, id := range fx.products {
			if err := n.cache.InvalidateProduct(ctx, id); err != nil {
				n.logger.Warn("Failed to evict product cache",
					zap.Int64("product_id", id),
					zap.Error(err))
				continue
			}
			util.CacheEvictionsTotal.WithLabelValues("local").Inc()
		}
	}

	if n.events == nil {
		return
	}
	for _, publish := range fx.events {
		if err := publish(ctx, n.events); err != nil {
			n.logger.Error("Failed to publish event", zap.Error(err))
		}
	}
}
