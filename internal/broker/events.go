package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"order-engine/internal/models"
	"order-engine/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventWriter writes one keyed event.
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	writer EventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(writer EventWriter) *EventPublisher {
	return &EventPublisher{writer: writer}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

func productKey(productID int64) string {
	return fmt.Sprintf("product-%d", productID)
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.writer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.writer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPaymentStatusChanged publishes PaymentStatusChanged event
func (ep *EventPublisher) PublishPaymentStatusChanged(ctx context.Context, event *models.PaymentStatusChangedEvent) error {
	return ep.writer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishStockChanged publishes StockChanged event
func (ep *EventPublisher) PublishStockChanged(ctx context.Context, event *models.StockChangedEvent) error {
	return ep.writer.PublishEvent(ctx, productKey(event.ProductID), event)
}

// PublishProductRemoved publishes ProductDeleted or ProductDeactivated event
func (ep *EventPublisher) PublishProductRemoved(ctx context.Context, event *models.ProductRemovedEvent) error {
	return ep.writer.PublishEvent(ctx, productKey(event.ProductID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onStockChanged   func(context.Context, *models.StockChangedEvent) error
	onProductRemoved func(context.Context, *models.ProductRemovedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnStockChanged registers a handler for StockChanged events
func (eh *EventHandler) OnStockChanged(handler func(context.Context, *models.StockChangedEvent) error) {
	eh.onStockChanged = handler
}

// OnProductRemoved registers a handler for ProductDeleted and ProductDeactivated events
func (eh *EventHandler) OnProductRemoved(handler func(context.Context, *models.ProductRemovedEvent) error) {
	eh.onProductRemoved = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) (err error) {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		util.EventsConsumedTotal.WithLabelValues("unknown", "malformed").Inc()
		// Unreadable messages are dropped so they do not block the partition.
		eh.logger.Warn("Dropping malformed event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		util.EventsConsumedTotal.WithLabelValues(baseEvent.EventType, status).Inc()
	}()

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeStockChanged:
		if eh.onStockChanged != nil {
			var event models.StockChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockChanged event: %w", err)
			}
			return eh.onStockChanged(ctx, &event)
		}

	case models.EventTypeProductDeleted, models.EventTypeProductDeactivated:
		if eh.onProductRemoved != nil {
			var event models.ProductRemovedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onProductRemoved(ctx, &event)
		}
	}

	return nil
}
