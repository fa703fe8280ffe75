package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced          = "ORDER_PLACED"
	EventTypeOrderStatusChanged   = "ORDER_STATUS_CHANGED"
	EventTypePaymentStatusChanged = "PAYMENT_STATUS_CHANGED"
	EventTypeStockChanged         = "STOCK_CHANGED"
	EventTypeProductDeactivated   = "PRODUCT_DEACTIVATED"
	EventTypeProductDeleted       = "PRODUCT_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when the order builder commits an order
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published after a fulfillment transition
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID  int64       `json:"order_id"`
	Previous OrderStatus `json:"previous"`
	Current  OrderStatus `json:"current"`
}

// PaymentStatusChangedEvent published after a payment transition
type PaymentStatusChangedEvent struct {
	BaseEvent
	OrderID  int64         `json:"order_id"`
	Previous PaymentStatus `json:"previous"`
	Current  PaymentStatus `json:"current"`
}

// StockChangedEvent published after any committed ledger mutation
type StockChangedEvent struct {
	BaseEvent
	ProductID  int64  `json:"product_id"`
	Kind       string `json:"kind"`
	Delta      int    `json:"delta"`
	StockCount int    `json:"stock_count"`
	InStock    bool   `json:"in_stock"`
}

// ProductRemovedEvent published when the catalog guard deletes or deactivates a product
type ProductRemovedEvent struct {
	BaseEvent
	ProductID int64 `json:"product_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
