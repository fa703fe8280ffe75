package store

import (
	"context"

	"order-engine/internal/models"
)

// Repository is the persistence boundary the engine runs against.
type Repository interface {
	// RunInTx runs fn inside one transaction. fn's error, or ctx being done,
	// rolls back every write made through tx.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	GetStockMovements(ctx context.Context, productID int64) ([]models.StockMovement, error)
}

// ReferenceCheck answers whether anything historical or live still points at a product.
type ReferenceCheck interface {
	IsProductReferenced(ctx context.Context, productID int64) (bool, error)
}

// Tx is the set of writes and locking reads available inside a transaction.
type Tx interface {
	ReferenceCheck

	// LockProducts returns the requested rows locked for update, keyed by id.
	// Rows are locked in ascending id order. Missing ids are absent from the map.
	LockProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
	SaveStock(ctx context.Context, productID int64, stockCount int, inStock bool) error
	UpdateProductFlags(ctx context.Context, productID int64, active, featured bool) error
	DeleteProduct(ctx context.Context, productID int64) error
	RecordMovement(ctx context.Context, m *models.StockMovement) error

	LockCartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	DeleteCartItems(ctx context.Context, userID int64, ids []int64) error

	GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error
	UpdatePaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) error
}
