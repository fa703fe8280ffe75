package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// UserType tags which audience a product is listed for.
type UserType string

const (
	UserTypeConsumer UserType = "CONSUMER"
	UserTypeBusiness UserType = "BUSINESS"
)

// PaymentMethodCOD is the only payment method the storefront supports.
const PaymentMethodCOD = "COD"

// Product represents a product in the catalog
type Product struct {
	ID            int64            `db:"id" json:"id"`
	Name          string           `db:"name" json:"name"`
	Price         decimal.Decimal  `db:"price" json:"price"`
	OriginalPrice *decimal.Decimal `db:"original_price" json:"original_price,omitempty"`
	StockCount    int              `db:"stock_count" json:"stock_count"`
	InStock       bool             `db:"in_stock" json:"in_stock"`
	CategoryID    int64            `db:"category_id" json:"category_id"`
	UserType      UserType         `db:"user_type" json:"user_type"`
	Featured      bool             `db:"featured" json:"featured"`
	Active        bool             `db:"active" json:"active"`
	Tags          pq.StringArray   `db:"tags" json:"tags"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// Sellable reports whether the product can currently be reserved at all.
func (p *Product) Sellable() bool {
	return p.Active && p.InStock
}

// DeriveInStock is the single place the in-stock flag is computed from a stock count.
func DeriveInStock(stockCount int) bool {
	return stockCount > 0
}

// CartItem is one line of a user's cart
type CartItem struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ShippingAddress is the address snapshot embedded in an order
type ShippingAddress struct {
	FullName   string `json:"full_name" validate:"required,max=200"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2,omitempty" validate:"max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state,omitempty" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

// Value stores the address as JSONB.
func (a ShippingAddress) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan reads the address back from a JSONB column.
func (a *ShippingAddress) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = ShippingAddress{}
		return nil
	default:
		return errors.New("unsupported shipping address column type")
	}
}

// Order represents a customer order
type Order struct {
	ID              int64           `db:"id" json:"id"`
	OrderNumber     string          `db:"order_number" json:"order_number"`
	UserID          int64           `db:"user_id" json:"user_id"`
	Status          OrderStatus     `db:"status" json:"status"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	PaymentStatus   PaymentStatus   `db:"payment_status" json:"payment_status"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	ShippingAddress ShippingAddress `db:"shipping_address" json:"shipping_address"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	IdempotencyKey  *string         `db:"idempotency_key" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem represents items in an order
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Price       decimal.Decimal `db:"price" json:"price"`
}

// LineTotal is the extended price of the line.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Review only matters to the engine as a reference to a product.
type Review struct {
	ID        int64     `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Stock movement kinds
const (
	MovementReserve    = "reserve"
	MovementRelease    = "release"
	MovementAdjust     = "adjust"
	MovementConsume    = "consume"
	MovementDeactivate = "deactivate"
)

// StockMovement is an append-only journal row written with every ledger mutation
type StockMovement struct {
	ID        int64     `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	OrderID   *int64    `db:"order_id" json:"order_id,omitempty"`
	Kind      string    `db:"kind" json:"kind"`
	Delta     int       `db:"delta" json:"delta"`
	Balance   int       `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
