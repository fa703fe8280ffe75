package store

import (
	"context"

	"order-engine/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, order_number, user_id, status, payment_method, payment_status,
	total_amount, shipping_address, notes, idempotency_key, created_at, updated_at`

const orderItemColumns = `id, order_id, product_id, product_name, quantity, price`

// GetOrder retrieves an order with its items
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return loadOrder(ctx, s.db, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
}

// GetOrderByIdempotencyKey retrieves a user's order by idempotency key
func (t *pgTx) GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Order, error) {
	return loadOrder(ctx, t.tx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 AND idempotency_key = $2", userID, key)
}

// LockOrder retrieves an order with its items and locks the order row
func (t *pgTx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	return loadOrder(ctx, t.tx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
}

// CreateOrder creates a new order
func (t *pgTx) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_number, user_id, status, payment_method, payment_status,
			total_amount, shipping_address, notes, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.UserID, order.Status, order.PaymentMethod, order.PaymentStatus,
		order.TotalAmount, order.ShippingAddress, order.Notes, order.IdempotencyKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	return mapError(err)
}

// CreateOrderItem creates a new order item
func (t *pgTx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return t.tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.Price)
}

// UpdateOrderStatus updates order status
func (t *pgTx) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	return t.execOne(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
}

// UpdatePaymentStatus updates payment status
func (t *pgTx) UpdatePaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) error {
	return t.execOne(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
}

func loadOrder(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*models.Order, error) {
	var order models.Order
	if err := sqlx.GetContext(ctx, q, &order, query, args...); err != nil {
		return nil, mapError(err)
	}

	items := []models.OrderItem{}
	err := sqlx.SelectContext(ctx, q, &items,
		"SELECT "+orderItemColumns+" FROM order_items WHERE order_id = $1 ORDER BY id", order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}
