package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrOutOfStock         = errors.New("out of stock")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
)

// ValidationError is malformed input rejected before any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError names the entity that no longer exists.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ShortageReason says why a line could not be reserved.
type ShortageReason string

const (
	ShortageInsufficient ShortageReason = "insufficient_stock"
	ShortageOutOfStock   ShortageReason = "out_of_stock"
	ShortageInactive     ShortageReason = "inactive"
	ShortageNotFound     ShortageReason = "not_found"
)

// StockShortage describes one product that could not cover its requested quantity.
type StockShortage struct {
	ProductID int64          `json:"product_id"`
	Requested int            `json:"requested"`
	Available int            `json:"available"`
	Reason    ShortageReason `json:"reason"`
}

// InsufficientStockError is returned when one or more reservations fail.
// Nothing is reserved when it is returned.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("product %d: %s (requested %d, available %d)",
			s.ProductID, s.Reason, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Is(target error) bool {
	switch target {
	case ErrInsufficientStock:
		return true
	case ErrOutOfStock:
		return e.has(ShortageOutOfStock) || e.has(ShortageInactive)
	case ErrNotFound:
		return e.has(ShortageNotFound)
	}
	return false
}

func (e *InsufficientStockError) has(reason ShortageReason) bool {
	for _, s := range e.Shortages {
		if s.Reason == reason {
			return true
		}
	}
	return false
}

// EmptyCartError is returned when checkout is attempted with nothing to order.
type EmptyCartError struct {
	UserID int64
}

func (e *EmptyCartError) Error() string {
	return fmt.Sprintf("cart is empty for user %d", e.UserID)
}

func (e *EmptyCartError) Is(target error) bool {
	return target == ErrEmptyCart
}

// InvalidTransitionError is an illegal state machine move. The order is untouched.
type InvalidTransitionError struct {
	OrderID int64
	Track   string
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition for order %d: %s -> %s", e.Track, e.OrderID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ErrorKind maps an engine error to a stable machine-readable kind.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrCheckoutInProgress):
		return "checkout_in_progress"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
