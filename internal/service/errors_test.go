package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"order-engine/internal/store"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", &ValidationError{Field: "user_id", Message: "required"}, "validation"},
		{"not found", &NotFoundError{Entity: "order", ID: 1}, "not_found"},
		{"empty cart", &EmptyCartError{UserID: 1}, "empty_cart"},
		{"insufficient", &InsufficientStockError{Shortages: []StockShortage{{ProductID: 1, Reason: ShortageInsufficient}}}, "insufficient_stock"},
		{"missing product in checkout", &InsufficientStockError{Shortages: []StockShortage{{ProductID: 1, Reason: ShortageNotFound}}}, "insufficient_stock"},
		{"transition", &InvalidTransitionError{Track: trackPayment}, "invalid_transition"},
		{"lock held", fmt.Errorf("user 3: %w", ErrCheckoutInProgress), "checkout_in_progress"},
		{"wrapped", fmt.Errorf("outer: %w", &NotFoundError{Entity: "product", ID: 2}), "not_found"},
		{"internal", errors.New("connection reset"), "internal"},
		{"cancelled", context.Canceled, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}

func TestInsufficientStockErrorMatching(t *testing.T) {
	err := &InsufficientStockError{Shortages: []StockShortage{
		{ProductID: 1, Requested: 3, Available: 1, Reason: ShortageInsufficient},
		{ProductID: 2, Requested: 1, Reason: ShortageInactive},
	}}

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "product 1: insufficient_stock (requested 3, available 1)")
	assert.Contains(t, err.Error(), "product 2: inactive")
}

func TestNotFoundTranslation(t *testing.T) {
	err := notFound(fmt.Errorf("query: %w", store.ErrNotFound), "order", 7)

	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, "order", nf.Entity)
	assert.Equal(t, int64(7), nf.ID)

	other := errors.New("boom")
	assert.Same(t, other, notFound(other, "order", 7))
}
