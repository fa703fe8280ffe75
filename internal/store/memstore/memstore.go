// Package memstore is an in-memory implementation of the store interfaces.
//
// Transactions are serializable: RunInTx holds a single mutex for the whole
// callback and works on a copy of the data that is swapped in only on success.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"order-engine/internal/models"
	"order-engine/internal/store"

	"github.com/shopspring/decimal"
)

type state struct {
	products  map[int64]models.Product
	cart      map[int64]models.CartItem
	orders    map[int64]models.Order
	items     map[int64]models.OrderItem
	reviews   map[int64]models.Review
	movements []models.StockMovement
	seq       int64
}

func newState() *state {
	return &state{
		products: make(map[int64]models.Product),
		cart:     make(map[int64]models.CartItem),
		orders:   make(map[int64]models.Order),
		items:    make(map[int64]models.OrderItem),
		reviews:  make(map[int64]models.Review),
	}
}

func (s *state) clone() *state {
	c := &state{
		products:  make(map[int64]models.Product, len(s.products)),
		cart:      make(map[int64]models.CartItem, len(s.cart)),
		orders:    make(map[int64]models.Order, len(s.orders)),
		items:     make(map[int64]models.OrderItem, len(s.items)),
		reviews:   make(map[int64]models.Review, len(s.reviews)),
		movements: append([]models.StockMovement(nil), s.movements...),
		seq:       s.seq,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.cart {
		c.cart[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	return c
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *state) order(id int64) (*models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o.Items = s.orderItems(id)
	return &o, nil
}

func (s *state) orderItems(orderID int64) []models.OrderItem {
	var items []models.OrderItem
	for _, item := range s.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (s *state) cartItems(userID int64) []models.CartItem {
	items := []models.CartItem{}
	for _, item := range s.cart {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// Store is a Repository backed by maps.
type Store struct {
	mu   sync.Mutex
	data *state
}

var _ store.Repository = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{data: newState()}
}

// RunInTx implements store.Repository.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.data.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

// GetProduct implements store.Repository.
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

// GetProductsByIDs implements store.Repository.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := []models.Product{}
	for _, id := range ids {
		if p, ok := s.data.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// GetCartItems implements store.Repository.
func (s *Store) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.cartItems(userID), nil
}

// GetOrder implements store.Repository.
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.order(id)
}

// GetStockMovements implements store.Repository.
func (s *Store) GetStockMovements(ctx context.Context, productID int64) ([]models.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	movements := []models.StockMovement{}
	for _, m := range s.data.movements {
		if m.ProductID == productID {
			movements = append(movements, m)
		}
	}
	return movements, nil
}

// AddProduct inserts p as given, assigning an id when p.ID is zero.
func (s *Store) AddProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if p.ID == 0 {
		p.ID = s.data.nextID()
	} else if p.ID > s.data.seq {
		s.data.seq = p.ID
	}
	p.CreatedAt, p.UpdatedAt = now, now
	s.data.products[p.ID] = p
	return p
}

// SeedProduct inserts an active product with the given price and stock.
func (s *Store) SeedProduct(name, price string, stock int) models.Product {
	return s.AddProduct(models.Product{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		StockCount: stock,
		InStock:    models.DeriveInStock(stock),
		UserType:   models.UserTypeConsumer,
		Active:     true,
	})
}

// AddCartItem puts quantity units of a product in a user's cart. An existing
// line for the same product has its quantity replaced.
func (s *Store) AddCartItem(userID, productID int64, quantity int) models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for id, item := range s.data.cart {
		if item.UserID == userID && item.ProductID == productID {
			item.Quantity = quantity
			item.UpdatedAt = now
			s.data.cart[id] = item
			return item
		}
	}

	item := models.CartItem{
		ID:        s.data.nextID(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.data.cart[item.ID] = item
	return item
}

// AddReview attaches a review to a product.
func (s *Store) AddReview(productID, userID int64, rating int, comment string) models.Review {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := models.Review{
		ID:        s.data.nextID(),
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	s.data.reviews[r.ID] = r
	return r
}

// OrderCount returns the number of orders placed by a user.
func (s *Store) OrderCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, o := range s.data.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n
}
