package service

import (
	"context"

	"order-engine/internal/models"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProductSnapshots is a read-through cache of product rows for display.
type ProductSnapshots interface {
	GetProduct(ctx context.Context, productID int64) (*models.Product, bool, error)
	SetProduct(ctx context.Context, product *models.Product) error
}

// ProductReader serves product details for catalog display. Nothing that
// decides stock reads through it.
type ProductReader struct {
	repo      store.Repository
	snapshots ProductSnapshots
	logger    *zap.Logger
}

// NewProductReader creates a new product reader. snapshots may be nil.
func NewProductReader(repo store.Repository, snapshots ProductSnapshots) *ProductReader {
	return &ProductReader{
		repo:      repo,
		snapshots: snapshots,
		logger:    util.GetLogger(),
	}
}

// GetProduct returns the cached snapshot if there is one, otherwise the stored row.
// A miss that races a committed write can cache the older row; it is served
// until the snapshot TTL expires or the next eviction for that product.
func (r *ProductReader) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductReader.GetProduct", attribute.Int64("product_id", productID))
	defer span.End()

	if r.snapshots != nil {
		product, ok, err := r.snapshots.GetProduct(ctx, productID)
		if err != nil {
			r.logger.Warn("Product cache read failed", zap.Int64("product_id", productID), zap.Error(err))
		} else if ok {
			util.ProductCacheLookups.WithLabelValues("hit").Inc()
			return product, nil
		}
	}

	product, err := r.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product", productID)
	}

	if r.snapshots != nil {
		util.ProductCacheLookups.WithLabelValues("miss").Inc()
		if err := r.snapshots.SetProduct(ctx, product); err != nil {
			r.logger.Warn("Product cache write failed", zap.Int64("product_id", productID), zap.Error(err))
		}
	}
	return product, nil
}
