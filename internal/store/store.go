package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-engine/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const productColumns = `id, name, price, original_price, stock_count, in_stock, category_id,
	user_type, featured, active, tags, created_at, updated_at`

const cartColumns = `id, user_id, product_id, quantity, created_at, updated_at`

const movementColumns = `id, product_id, order_id, kind, delta, balance, created_at`

// uniqueViolation is the postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

type Store struct {
	db *sqlx.DB
}

var _ Repository = (*Store)(nil)

// NewStore creates a new database store
func NewStore(databaseURL string, maxOpenConns, maxIdleConns int) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunInTx runs fn inside a single database transaction. The transaction is
// rolled back unless fn returns nil and the commit succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err)
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetCartItems retrieves a user's cart
func (s *Store) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT "+cartColumns+" FROM cart_items WHERE user_id = $1 ORDER BY id", userID)
	return items, err
}

// GetStockMovements retrieves the stock journal of a product, oldest first
func (s *Store) GetStockMovements(ctx context.Context, productID int64) ([]models.StockMovement, error) {
	movements := []models.StockMovement{}
	err := s.db.SelectContext(ctx, &movements,
		"SELECT "+movementColumns+" FROM stock_movements WHERE product_id = $1 ORDER BY id", productID)
	return movements, err
}

// mapError translates driver errors into the package sentinels.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}
