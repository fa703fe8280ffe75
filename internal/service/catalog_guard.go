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

// Product removal outcomes.
const (
	ActionDeleted     = "deleted"
	ActionDeactivated = "deactivated"
)

// DeleteResult reports what a product removal request actually did.
type DeleteResult struct {
	Action  string          `json:"action"`
	Product *models.Product `json:"product,omitempty"`
	Message string          `json:"message"`
}

// CatalogGuard removes products without breaking order, cart or review history.
type CatalogGuard struct {
	repo   store.Repository
	ledger *StockLedger
	notify notifier
	logger *zap.Logger
}

// NewCatalogGuard creates a new catalog guard
func NewCatalogGuard(repo store.Repository, ledger *StockLedger, events EventPublisher, cache ProductCache) *CatalogGuard {
	return &CatalogGuard{
		repo:   repo,
		ledger: ledger,
		notify: newNotifier(events, cache),
		logger: util.GetLogger(),
	}
}

// DeleteProduct hard-deletes an unreferenced product and deactivates a
// referenced one. The product row stays locked from the reference check to
// the write, so no checkout can start using it in between.
func (g *CatalogGuard) DeleteProduct(ctx context.Context, productID int64) (result *DeleteResult, err error) {
	ctx, span := util.StartSpan(ctx, "CatalogGuard.DeleteProduct", attribute.Int64("product_id", productID))
	defer func() { util.EndSpan(span, err) }()

	fx := &effects{}
	err = g.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		products, err := tx.LockProducts(ctx, []int64{productID})
		if err != nil {
			return fmt.Errorf("failed to lock product %d: %w", productID, err)
		}
		product, ok := products[productID]
		if !ok {
			return &NotFoundError{Entity: "product", ID: productID}
		}

		referenced, err := tx.IsProductReferenced(ctx, productID)
		if err != nil {
			return fmt.Errorf("failed to check product references: %w", err)
		}

		if !referenced {
			if err := tx.DeleteProduct(ctx, productID); err != nil {
				return fmt.Errorf("failed to delete product: %w", err)
			}
			fx.touch(productID)
			fx.emit(productRemovedEvent(models.EventTypeProductDeleted, productID))
			result = &DeleteResult{
				Action:  ActionDeleted,
				Message: "Product deleted",
			}
			return nil
		}

		if err := g.ledger.apply(ctx, tx, fx, product, -product.StockCount, models.MovementDeactivate, nil); err != nil {
			return err
		}
		if err := tx.UpdateProductFlags(ctx, productID, false, false); err != nil {
			return fmt.Errorf("failed to deactivate product: %w", err)
		}
		product.Active = false
		product.Featured = false

		fx.emit(productRemovedEvent(models.EventTypeProductDeactivated, productID))
		result = &DeleteResult{
			Action:  ActionDeactivated,
			Product: product,
			Message: "Product is referenced by existing orders, carts or reviews and has been deactivated instead of deleted",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.notify.flush(ctx, fx)
	util.ProductsRemovedTotal.WithLabelValues(result.Action).Inc()
	g.logger.Info("Product removed",
		zap.Int64("product_id", productID),
		zap.String("action", result.Action))
	return result, nil
}

func productRemovedEvent(eventType string, productID int64) func(ctx context.Context, p EventPublisher) error {
	event := &models.ProductRemovedEvent{
		BaseEvent: newBaseEvent(eventType),
		ProductID: productID,
	}
	return func(ctx context.Context, p EventPublisher) error {
		return p.PublishProductRemoved(ctx, event)
	}
}
