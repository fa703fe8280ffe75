package service

import (
	"context"
	"fmt"

	"order-engine/internal/models"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Verdict is the result of checking one cart line against current stock.
type Verdict string

const (
	VerdictOK           Verdict = "OK"
	VerdictExceedsStock Verdict = "EXCEEDS_STOCK"
	VerdictOutOfStock   Verdict = "OUT_OF_STOCK"
	VerdictInactive     Verdict = "INACTIVE"
	VerdictNotFound     Verdict = "NOT_FOUND"
)

// LineVerdict is the verdict for one cart line.
type LineVerdict struct {
	CartItemID int64           `json:"cart_item_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	Verdict    Verdict         `json:"verdict"`
	Available  int             `json:"available"`
	Product    *models.Product `json:"product,omitempty"`
}

// CartValidation is the per-line result for a whole cart.
type CartValidation struct {
	UserID int64         `json:"user_id"`
	Lines  []LineVerdict `json:"lines"`
}

// HasBlockingIssues reports whether any line would stop checkout.
func (v *CartValidation) HasBlockingIssues() bool {
	for _, line := range v.Lines {
		if line.Verdict != VerdictOK {
			return true
		}
	}
	return false
}

// CartValidator checks cart lines against the stock ledger. Its answer is
// advisory; the order builder re-checks under lock.
type CartValidator struct {
	repo   store.Repository
	logger *zap.Logger
}

// NewCartValidator creates a new cart validator
func NewCartValidator(repo store.Repository) *CartValidator {
	return &CartValidator{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

// ValidateCart returns a verdict for every line in the user's cart.
func (v *CartValidator) ValidateCart(ctx context.Context, userID int64) (*CartValidation, error) {
	ctx, span := util.StartSpan(ctx, "CartValidator.ValidateCart", attribute.Int64("user_id", userID))
	defer span.End()

	if userID <= 0 {
		return nil, &ValidationError{Field: "user_id", Message: "must be positive"}
	}

	items, err := v.repo.GetCartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	productIDs := make([]int64, len(items))
	for i, item := range items {
		productIDs[i] = item.ProductID
	}

	products, err := v.repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}

	result := &CartValidation{UserID: userID, Lines: make([]LineVerdict, 0, len(items))}
	for _, item := range items {
		result.Lines = append(result.Lines, JudgeLine(item, productMap[item.ProductID]))
	}

	if result.HasBlockingIssues() {
		v.logger.Debug("Cart has blocking issues", zap.Int64("user_id", userID))
	}
	return result, nil
}

// JudgeLine applies the same rule the ledger uses for reservations to a single cart line.
func JudgeLine(item models.CartItem, product *models.Product) LineVerdict {
	line := LineVerdict{
		CartItemID: item.ID,
		ProductID:  item.ProductID,
		Quantity:   item.Quantity,
		Product:    product,
		Verdict:    VerdictOK,
	}
	if product != nil {
		line.Available = product.StockCount
	}

	shortage := checkReservation(item.ProductID, product, item.Quantity)
	if shortage == nil {
		return line
	}

	switch shortage.Reason {
	case ShortageNotFound:
		line.Verdict = VerdictNotFound
	case ShortageInactive:
		line.Verdict = VerdictInactive
		line.Available = 0
	case ShortageOutOfStock:
		line.Verdict = VerdictOutOfStock
		line.Available = 0
	case ShortageInsufficient:
		line.Verdict = VerdictExceedsStock
	}
	return line
}
