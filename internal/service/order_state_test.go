package service

import (
	"context"
	"errors"
	"testing"

	"order-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placedOrder(t *testing.T, env *testEnv, stock, quantity int) (*models.Order, models.Product) {
	t.Helper()
	p := env.store.SeedProduct("Tea", "3.50", stock)
	env.store.AddCartItem(1, p.ID, quantity)
	order, err := env.place(1)
	require.NoError(t, err)
	env.events.reset()
	return order, p
}

func TestUpdateOrderStatusForward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, _ := placedOrder(t, env, 5, 1)

	updated, err := env.orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, updated.Status)

	// Skipping ahead is allowed.
	updated, err = env.orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)

	assert.Equal(t, 2, env.events.count(models.EventTypeOrderStatusChanged))
}

func TestUpdateOrderStatusIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, p := placedOrder(t, env, 5, 2)

	first, err := env.orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	second, err := env.orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusDelivered, first.Status)
	assert.Equal(t, models.OrderStatusDelivered, second.Status)
	assert.Equal(t, 1, env.events.count(models.EventTypeOrderStatusChanged))
	assert.Equal(t, 3, env.stock(t, p.ID))
	assert.Equal(t, []string{models.MovementReserve, models.MovementConsume}, movementKinds(t, env, p.ID))
}

func TestDeliveryDoesNotDecrementAgain(t *testing.T) {
	env := newTestEnv(t)
	order, p := placedOrder(t, env, 5, 2)
	require.Equal(t, 3, env.stock(t, p.ID))

	_, err := env.orders.UpdateOrderStatus(context.Background(), order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)

	assert.Equal(t, 3, env.stock(t, p.ID))
	movements, err := env.store.GetStockMovements(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, models.MovementConsume, movements[1].Kind)
	assert.Equal(t, 0, movements[1].Delta)
	assert.Equal(t, 3, movements[1].Balance)
	require.NotNil(t, movements[1].OrderID)
	assert.Equal(t, order.ID, *movements[1].OrderID)
}

func TestCancellationReturnsStock(t *testing.T) {
	env := newTestEnv(t)
	order, p := placedOrder(t, env, 5, 2)

	updated, err := env.orders.UpdateOrderStatus(context.Background(), order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)

	assert.Equal(t, 5, env.stock(t, p.ID))
	assert.Equal(t, []string{models.MovementReserve, models.MovementRelease}, movementKinds(t, env, p.ID))
	assert.Equal(t, 1, env.events.count(models.EventTypeStockChanged))
}

func TestCancellationKeepsDeactivatedProductsEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, p := placedOrder(t, env, 5, 2)

	result, err := env.guard.DeleteProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, ActionDeactivated, result.Action)

	_, err = env.orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	qty, active, err := env.ledger.GetAvailable(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)
	assert.False(t, active)
}

func TestIllegalTransitionsLeaveOrderUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, p := placedOrder(t, env, 5, 1)

	_, err := env.orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusShipped)
	require.NoError(t, err)

	_, err = env.orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusConfirmed)
	var transitionErr *InvalidTransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, "fulfillment", transitionErr.Track)
	assert.Equal(t, "SHIPPED", transitionErr.From)
	assert.Equal(t, "CONFIRMED", transitionErr.To)

	_, err = env.orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)

	_, err = env.orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, stored.Status)
	assert.Equal(t, 4, env.stock(t, p.ID))
}

func TestUpdateOrderStatusRejectsUnknownValues(t *testing.T) {
	env := newTestEnv(t)
	order, _ := placedOrder(t, env, 5, 1)

	_, err := env.orders.UpdateOrderStatus(context.Background(), order.ID, models.OrderStatus("LOST"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.orders.UpdatePaymentStatus(context.Background(), order.ID, models.PaymentStatus("MAYBE"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orders.UpdateOrderStatus(context.Background(), 404, models.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.orders.UpdatePaymentStatus(context.Background(), 404, models.PaymentStatusPaid)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.orders.GetOrder(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentTrack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, _ := placedOrder(t, env, 5, 1)

	updated, err := env.orders.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, models.OrderStatusPending, updated.Status)

	_, err = env.orders.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusPaid)
	require.NoError(t, err)

	_, err = env.orders.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusFailed)
	var transitionErr *InvalidTransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, "payment", transitionErr.Track)

	updated, err = env.orders.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, updated.PaymentStatus)

	_, err = env.orders.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusPaid)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, 2, env.events.count(models.EventTypePaymentStatusChanged))
}

func TestPaymentFailedIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, _ := placedOrder(t, env, 5, 1)

	_, err := env.orders.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusFailed)
	require.NoError(t, err)

	_, err = env.orders.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusPaid)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
