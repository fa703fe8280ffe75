package memstore

import (
	"context"
	"time"

	"order-engine/internal/models"
	"order-engine/internal/store"
)

type tx struct {
	st *state
}

var _ store.Tx = (*tx)(nil)

func (t *tx) IsProductReferenced(ctx context.Context, productID int64) (bool, error) {
	for _, item := range t.st.items {
		if item.ProductID == productID {
			return true, nil
		}
	}
	for _, item := range t.st.cart {
		if item.ProductID == productID {
			return true, nil
		}
	}
	for _, r := range t.st.reviews {
		if r.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) LockProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	products := make(map[int64]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			products[id] = &p
		}
	}
	return products, nil
}

func (t *tx) SaveStock(ctx context.Context, productID int64, stockCount int, inStock bool) error {
	p, ok := t.st.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.StockCount = stockCount
	p.InStock = inStock
	p.UpdatedAt = time.Now().UTC()
	t.st.products[productID] = p
	return nil
}

func (t *tx) UpdateProductFlags(ctx context.Context, productID int64, active, featured bool) error {
	p, ok := t.st.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.Active = active
	p.Featured = featured
	p.UpdatedAt = time.Now().UTC()
	t.st.products[productID] = p
	return nil
}

func (t *tx) DeleteProduct(ctx context.Context, productID int64) error {
	if _, ok := t.st.products[productID]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.products, productID)

	kept := t.st.movements[:0]
	for _, m := range t.st.movements {
		if m.ProductID != productID {
			kept = append(kept, m)
		}
	}
	t.st.movements = kept
	return nil
}

func (t *tx) RecordMovement(ctx context.Context, m *models.StockMovement) error {
	m.ID = t.st.nextID()
	m.CreatedAt = time.Now().UTC()
	t.st.movements = append(t.st.movements, *m)
	return nil
}

func (t *tx) LockCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	return t.st.cartItems(userID), nil
}

func (t *tx) DeleteCartItems(ctx context.Context, userID int64, ids []int64) error {
	for _, id := range ids {
		if item, ok := t.st.cart[id]; ok && item.UserID == userID {
			delete(t.st.cart, id)
		}
	}
	return nil
}

func (t *tx) GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Order, error) {
	for id, o := range t.st.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return t.st.order(id)
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) CreateOrder(ctx context.Context, order *models.Order) error {
	for _, o := range t.st.orders {
		if o.OrderNumber == order.OrderNumber {
			return store.ErrDuplicate
		}
		if order.IdempotencyKey != nil && o.IdempotencyKey != nil &&
			o.UserID == order.UserID && *o.IdempotencyKey == *order.IdempotencyKey {
			return store.ErrDuplicate
		}
	}

	now := time.Now().UTC()
	order.ID = t.st.nextID()
	order.CreatedAt, order.UpdatedAt = now, now

	row := *order
	row.Items = nil
	t.st.orders[order.ID] = row
	return nil
}

func (t *tx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	if _, ok := t.st.orders[item.OrderID]; !ok {
		return store.ErrNotFound
	}
	item.ID = t.st.nextID()
	t.st.items[item.ID] = *item
	return nil
}

func (t *tx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	return t.st.order(id)
}

func (t *tx) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	t.st.orders[orderID] = o
	return nil
}

func (t *tx) UpdatePaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.PaymentStatus = status
	o.UpdatedAt = time.Now().UTC()
	t.st.orders[orderID] = o
	return nil
}
