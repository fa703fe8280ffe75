package service

import (
	"context"
	"time"

	"order-engine/internal/models"
)

// EventPublisher publishes committed domain changes.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishPaymentStatusChanged(ctx context.Context, event *models.PaymentStatusChangedEvent) error
	PublishStockChanged(ctx context.Context, event *models.StockChangedEvent) error
	PublishProductRemoved(ctx context.Context, event *models.ProductRemovedEvent) error
}

// ProductCache is the display cache that must be evicted after product writes.
type ProductCache interface {
	InvalidateProduct(ctx context.Context, productID int64) error
}

// CheckoutLocker guards against the same user submitting checkout twice at once.
type CheckoutLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}
