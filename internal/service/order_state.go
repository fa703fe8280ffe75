package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"order-engine/internal/models"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	trackFulfillment = "fulfillment"
	trackPayment     = "payment"
)

// OrderStateMachine governs the fulfillment and payment status of placed orders.
//
// Stock is taken exactly once, when the order is placed. Delivery journals a
// net-zero consumption movement per line; cancellation returns the units.
type OrderStateMachine struct {
	repo   store.Repository
	ledger *StockLedger
	notify notifier
	logger *zap.Logger
}

// NewOrderStateMachine creates a new order state machine
func NewOrderStateMachine(
	repo store.Repository,
	ledger *StockLedger,
	events EventPublisher,
	cache ProductCache,
) *OrderStateMachine {
	return &OrderStateMachine{
		repo:   repo,
		ledger: ledger,
		notify: newNotifier(events, cache),
		logger: util.GetLogger(),
	}
}

// GetOrder retrieves an order with its items
func (m *OrderStateMachine) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderStateMachine.GetOrder", attribute.Int64("order_id", orderID))
	defer span.End()

	order, err := m.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	return order, nil
}

// UpdateOrderStatus moves an order's fulfillment status. Requesting the
// current status is a successful no-op.
func (m *OrderStateMachine) UpdateOrderStatus(
	ctx context.Context,
	orderID int64,
	target models.OrderStatus,
) (order *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderStateMachine.UpdateOrderStatus",
		attribute.Int64("order_id", orderID),
		attribute.String("target", target.String()))
	defer func() { util.EndSpan(span, err) }()

	if !target.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown order status %q", target)}
	}

	fx := &effects{}
	var previous models.OrderStatus
	err = m.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}

		previous = o.Status
		if o.Status == target {
			order = o
			return nil
		}
		if !o.Status.CanTransitionTo(target) {
			return &InvalidTransitionError{
				OrderID: orderID,
				Track:   trackFulfillment,
				From:    o.Status.String(),
				To:      target.String(),
			}
		}

		if err := m.applyStockEffects(ctx, tx, fx, o, target); err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, o.ID, target); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		o.Status = target
		o.UpdatedAt = time.Now().UTC()
		event := &models.OrderStatusChangedEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderStatusChanged),
			OrderID:   o.ID,
			Previous:  previous,
			Current:   target,
		}
		fx.emit(func(ctx context.Context, p EventPublisher) error {
			return p.PublishOrderStatusChanged(ctx, event)
		})
		order = o
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			util.OrderTransitionsRejected.WithLabelValues(trackFulfillment).Inc()
		}
		return nil, err
	}

	m.notify.flush(ctx, fx)
	if previous != target {
		util.OrderTransitionsTotal.WithLabelValues(trackFulfillment, target.String()).Inc()
		m.logger.Info("Order status updated",
			zap.Int64("order_id", orderID),
			zap.String("from", previous.String()),
			zap.String("to", target.String()))
	}
	return order, nil
}

// UpdatePaymentStatus moves an order's payment status. Requesting the current
// status is a successful no-op.
func (m *OrderStateMachine) UpdatePaymentStatus(
	ctx context.Context,
	orderID int64,
	target models.PaymentStatus,
) (order *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderStateMachine.UpdatePaymentStatus",
		attribute.Int64("order_id", orderID),
		attribute.String("target", target.String()))
	defer func() { util.EndSpan(span, err) }()

	if !target.Valid() {
		return nil, &ValidationError{Field: "payment_status", Message: fmt.Sprintf("unknown payment status %q", target)}
	}

	fx := &effects{}
	var previous models.PaymentStatus
	err = m.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}

		previous = o.PaymentStatus
		if o.PaymentStatus == target {
			order = o
			return nil
		}
		if !o.PaymentStatus.CanTransitionTo(target) {
			return &InvalidTransitionError{
				OrderID: orderID,
				Track:   trackPayment,
				From:    o.PaymentStatus.String(),
				To:      target.String(),
			}
		}

		if err := tx.UpdatePaymentStatus(ctx, o.ID, target); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}

		o.PaymentStatus = target
		o.UpdatedAt = time.Now().UTC()
		event := &models.PaymentStatusChangedEvent{
			BaseEvent: newBaseEvent(models.EventTypePaymentStatusChanged),
			OrderID:   o.ID,
			Previous:  previous,
			Current:   target,
		}
		fx.emit(func(ctx context.Context, p EventPublisher) error {
			return p.PublishPaymentStatusChanged(ctx, event)
		})
		order = o
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			util.OrderTransitionsRejected.WithLabelValues(trackPayment).Inc()
		}
		return nil, err
	}

	m.notify.flush(ctx, fx)
	if previous != target {
		util.OrderTransitionsTotal.WithLabelValues(trackPayment, target.String()).Inc()
		m.logger.Info("Payment status updated",
			zap.Int64("order_id", orderID),
			zap.String("from", previous.String()),
			zap.String("to", target.String()))
	}
	return order, nil
}

// applyStockEffects runs the ledger side of entering DELIVERED or CANCELLED.
// Both states are terminal, so this runs at most once per order.
func (m *OrderStateMachine) applyStockEffects(
	ctx context.Context,
	tx store.Tx,
	fx *effects,
	o *models.Order,
	target models.OrderStatus,
) error {
	if target != models.OrderStatusDelivered && target != models.OrderStatusCancelled {
		return nil
	}
	if len(o.Items) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to lock products: %w", err)
	}

	for _, item := range o.Items {
		product, ok := products[item.ProductID]
		if !ok {
			m.logger.Warn("Order line references a removed product",
				zap.Int64("order_id", o.ID),
				zap.Int64("product_id", item.ProductID))
			continue
		}

		switch target {
		case models.OrderStatusDelivered:
			if err := m.ledger.consume(ctx, tx, product, o.ID); err != nil {
				return err
			}
		case models.OrderStatusCancelled:
			if !product.Active {
				// deactivated products stay at zero stock
				continue
			}
			orderID := o.ID
			if err := m.ledger.apply(ctx, tx, fx, product, item.Quantity, models.MovementRelease, &orderID); err != nil {
				return err
			}
		}
	}
	return nil
}
