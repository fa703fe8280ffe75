package models

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// fulfillment progression; CANCELLED sits outside it
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusConfirmed:  1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

func (s OrderStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the fixed fulfillment values.
func (s OrderStatus) Valid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := orderStatusRank[s]
	return ok
}

// Terminal reports whether no further fulfillment transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether an admin may move an order from s to target.
// Forward jumps along the progression are allowed, cancellation is allowed from
// any non-terminal state, and requesting the current state is always allowed.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if !s.Valid() || !target.Valid() {
		return false
	}
	if s == target {
		return true
	}
	if s.Terminal() {
		return false
	}
	if target == OrderStatusCancelled {
		return true
	}
	return orderStatusRank[target] > orderStatusRank[s]
}

// PaymentStatus is the money-collected state of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:  {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:     {PaymentStatusRefunded},
	PaymentStatusFailed:   {},
	PaymentStatusRefunded: {},
}

func (s PaymentStatus) String() string {
	return string(s)
}

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// CanTransitionTo reports whether the payment track allows moving from s to target.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	if !s.Valid() || !target.Valid() {
		return false
	}
	if s == target {
		return true
	}
	for _, next := range paymentTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}
