package store

import (
	"context"
	"fmt"

	"order-engine/internal/models"

	"github.com/jmoiron/sqlx"
)

// pgTx implements Tx on top of a sqlx transaction.
type pgTx struct {
	tx *sqlx.Tx
}

// IsProductReferenced reports whether any order line, cart line or review points at the product.
func (t *pgTx) IsProductReferenced(ctx context.Context, productID int64) (bool, error) {
	var referenced bool
	err := t.tx.GetContext(ctx, &referenced, `
		SELECT EXISTS(SELECT 1 FROM order_items WHERE product_id = $1)
			OR EXISTS(SELECT 1 FROM cart_items WHERE product_id = $1)
			OR EXISTS(SELECT 1 FROM reviews WHERE product_id = $1)`, productID)
	return referenced, err
}

// LockProducts locks product rows (FOR UPDATE) in ascending id order
func (t *pgTx) LockProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	products := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	query, args, err := sqlx.In(
		"SELECT "+productColumns+" FROM products WHERE id IN (?) ORDER BY id FOR UPDATE", ids)
	if err != nil {
		return nil, err
	}
	query = t.tx.Rebind(query)

	var rows []models.Product
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	for i := range rows {
		products[rows[i].ID] = &rows[i]
	}
	return products, nil
}

func (t *pgTx) SaveStock(ctx context.Context, productID int64, stockCount int, inStock bool) error {
	return t.execOne(ctx,
		"UPDATE products SET stock_count = $1, in_stock = $2, updated_at = NOW() WHERE id = $3",
		stockCount, inStock, productID)
}

func (t *pgTx) UpdateProductFlags(ctx context.Context, productID int64, active, featured bool) error {
	return t.execOne(ctx,
		"UPDATE products SET active = $1, featured = $2, updated_at = NOW() WHERE id = $3",
		active, featured, productID)
}

func (t *pgTx) DeleteProduct(ctx context.Context, productID int64) error {
	return t.execOne(ctx, "DELETE FROM products WHERE id = $1", productID)
}

// RecordMovement appends a row to the stock journal
func (t *pgTx) RecordMovement(ctx context.Context, m *models.StockMovement) error {
	query := `
		INSERT INTO stock_movements (product_id, order_id, kind, delta, balance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return t.tx.QueryRowxContext(ctx, query,
		m.ProductID, m.OrderID, m.Kind, m.Delta, m.Balance).Scan(&m.ID, &m.CreatedAt)
}

// LockCartItems locks a user's cart rows for the rest of the transaction
func (t *pgTx) LockCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := t.tx.SelectContext(ctx, &items,
		"SELECT "+cartColumns+" FROM cart_items WHERE user_id = $1 ORDER BY id FOR UPDATE", userID)
	return items, err
}

func (t *pgTx) DeleteCartItems(ctx context.Context, userID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In("DELETE FROM cart_items WHERE user_id = ? AND id IN (?)", userID, ids)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, t.tx.Rebind(query), args...)
	return err
}

// execOne runs a statement that must touch exactly one row.
func (t *pgTx) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if n > 1 {
		return fmt.Errorf("expected one row, affected %d", n)
	}
	return nil
}
