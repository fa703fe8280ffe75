package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"order-engine/internal/models"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxStockCount matches the INTEGER stock_count column.
const maxStockCount = math.MaxInt32

// StockLedger owns the authoritative per-product quantity and in-stock flag.
// Every write goes through apply, which is the only code that derives InStock.
type StockLedger struct {
	repo   store.Repository
	notify notifier
	logger *zap.Logger
}

// NewStockLedger creates a new stock ledger
func NewStockLedger(repo store.Repository, events EventPublisher, cache ProductCache) *StockLedger {
	return &StockLedger{
		repo:   repo,
		notify: newNotifier(events, cache),
		logger: util.GetLogger(),
	}
}

// GetAvailable returns the current stock count and whether the product can be sold.
func (l *StockLedger) GetAvailable(ctx context.Context, productID int64) (int, bool, error) {
	ctx, span := util.StartSpan(ctx, "StockLedger.GetAvailable", attribute.Int64("product_id", productID))
	defer span.End()

	product, err := l.repo.GetProduct(ctx, productID)
	if err != nil {
		return 0, false, notFound(err, "product", productID)
	}
	return product.StockCount, product.Sellable(), nil
}

// TryReserve atomically takes quantity units out of a product's stock.
func (l *StockLedger) TryReserve(ctx context.Context, productID int64, quantity int) (err error) {
	ctx, span := util.StartSpan(ctx, "StockLedger.TryReserve",
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", quantity))
	defer func() { util.EndSpan(span, err) }()

	if quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: "must be positive"}
	}

	fx := &effects{}
	err = l.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		products, err := tx.LockProducts(ctx, []int64{productID})
		if err != nil {
			return fmt.Errorf("failed to lock product %d: %w", productID, err)
		}

		product, ok := products[productID]
		if !ok {
			return &NotFoundError{Entity: "product", ID: productID}
		}
		if shortage := checkReservation(productID, product, quantity); shortage != nil {
			return &InsufficientStockError{Shortages: []StockShortage{*shortage}}
		}
		return l.apply(ctx, tx, fx, product, -quantity, models.MovementReserve, nil)
	})
	if err != nil {
		recordShortages(err)
		return err
	}

	l.notify.flush(ctx, fx)
	return nil
}

// Release puts quantity units back into a product's stock.
func (l *StockLedger) Release(ctx context.Context, productID int64, quantity int) (*models.Product, error) {
	if quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Message: "must be positive"}
	}
	return l.mutate(ctx, "StockLedger.Release", productID, func(p *models.Product) (int, string) {
		return quantity, models.MovementRelease
	})
}

// Adjust applies a relative correction. The result is clamped at zero.
func (l *StockLedger) Adjust(ctx context.Context, productID int64, delta int) (*models.Product, error) {
	if delta > maxStockCount || delta < -maxStockCount {
		return nil, &ValidationError{Field: "delta", Message: "out of range"}
	}
	return l.mutate(ctx, "StockLedger.Adjust", productID, func(p *models.Product) (int, string) {
		return delta, models.MovementAdjust
	})
}

// SetAbsolute sets the stock count to quantity.
func (l *StockLedger) SetAbsolute(ctx context.Context, productID int64, quantity int) (*models.Product, error) {
	if quantity < 0 {
		return nil, &ValidationError{Field: "stock_count", Message: "cannot be negative"}
	}
	if quantity > maxStockCount {
		return nil, &ValidationError{Field: "stock_count", Message: fmt.Sprintf("cannot exceed %d", maxStockCount)}
	}
	return l.mutate(ctx, "StockLedger.SetAbsolute", productID, func(p *models.Product) (int, string) {
		return quantity - p.StockCount, models.MovementAdjust
	})
}

// mutate runs a single-product stock change in its own transaction.
func (l *StockLedger) mutate(
	ctx context.Context,
	spanName string,
	productID int64,
	deltaFor func(p *models.Product) (int, string),
) (product *models.Product, err error) {
	ctx, span := util.StartSpan(ctx, spanName, attribute.Int64("product_id", productID))
	defer func() { util.EndSpan(span, err) }()

	fx := &effects{}
	err = l.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		products, err := tx.LockProducts(ctx, []int64{productID})
		if err != nil {
			return fmt.Errorf("failed to lock product %d: %w", productID, err)
		}
		p, ok := products[productID]
		if !ok {
			return &NotFoundError{Entity: "product", ID: productID}
		}

		delta, kind := deltaFor(p)
		if err := l.apply(ctx, tx, fx, p, delta, kind, nil); err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.notify.flush(ctx, fx)
	l.logger.Info("Stock updated",
		zap.Int64("product_id", product.ID),
		zap.Int("stock_count", product.StockCount),
		zap.Bool("in_stock", product.InStock))
	return product, nil
}

// apply writes a stock change for a locked product row and journals it.
func (l *StockLedger) apply(
	ctx context.Context,
	tx store.Tx,
	fx *effects,
	p *models.Product,
	delta int,
	kind string,
	orderID *int64,
) error {
	if delta > maxStockCount-p.StockCount {
		return &ValidationError{Field: "stock_count", Message: fmt.Sprintf("cannot exceed %d", maxStockCount)}
	}
	next := p.StockCount + delta
	if next < 0 {
		next = 0
	}
	applied := next - p.StockCount
	inStock := models.DeriveInStock(next)

	if err := tx.SaveStock(ctx, p.ID, next, inStock); err != nil {
		return fmt.Errorf("failed to save stock for product %d: %w", p.ID, err)
	}

	movement := &models.StockMovement{
		ProductID: p.ID,
		OrderID:   orderID,
		Kind:      kind,
		Delta:     applied,
		Balance:   next,
	}
	if err := tx.RecordMovement(ctx, movement); err != nil {
		return fmt.Errorf("failed to record stock movement: %w", err)
	}

	p.StockCount = next
	p.InStock = inStock
	fx.stockChanged(p, kind, applied)
	return nil
}

// consume journals the delivery of units that were already taken at reservation.
func (l *StockLedger) consume(ctx context.Context, tx store.Tx, p *models.Product, orderID int64) error {
	movement := &models.StockMovement{
		ProductID: p.ID,
		OrderID:   &orderID,
		Kind:      models.MovementConsume,
		Balance:   p.StockCount,
	}
	if err := tx.RecordMovement(ctx, movement); err != nil {
		return fmt.Errorf("failed to record consumption: %w", err)
	}
	return nil
}

// checkReservation returns nil if quantity units of p can be reserved.
func checkReservation(productID int64, p *models.Product, quantity int) *StockShortage {
	shortage := &StockShortage{ProductID: productID, Requested: quantity}
	switch {
	case p == nil:
		shortage.Reason = ShortageNotFound
	case !p.Active:
		shortage.Reason = ShortageInactive
	case !p.InStock || p.StockCount == 0:
		shortage.Reason = ShortageOutOfStock
	case p.StockCount < quantity:
		shortage.Reason = ShortageInsufficient
		shortage.Available = p.StockCount
	default:
		return nil
	}
	return shortage
}

func recordShortages(err error) {
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		util.StockReservationsFailed.WithLabelValues("error").Inc()
		return
	}
	for _, s := range stockErr.Shortages {
		util.StockReservationsFailed.WithLabelValues(string(s.Reason)).Inc()
	}
}

func notFound(err error, entity string, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}
