package service

import (
	"context"
	"errors"
	"testing"

	"order-engine/internal/models"
	"order-engine/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSnapshots struct {
	products map[int64]models.Product
	readErr  error
	writes   int
}

func (s *mapSnapshots) GetProduct(ctx context.Context, productID int64) (*models.Product, bool, error) {
	if s.readErr != nil {
		return nil, false, s.readErr
	}
	p, ok := s.products[productID]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (s *mapSnapshots) SetProduct(ctx context.Context, product *models.Product) error {
	s.writes++
	s.products[product.ID] = *product
	return nil
}

func TestProductReaderCachesAside(t *testing.T) {
	st := memstore.New()
	p := st.SeedProduct("Kettle", "25.00", 4)
	snapshots := &mapSnapshots{products: map[int64]models.Product{}}
	reader := NewProductReader(st, snapshots)

	got, err := reader.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kettle", got.Name)
	assert.Equal(t, 1, snapshots.writes)

	// Served from the snapshot even though the row changed underneath.
	st.AddProduct(models.Product{ID: p.ID, Name: "Kettle v2", Active: true})
	got, err = reader.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kettle", got.Name)
	assert.Equal(t, 1, snapshots.writes)
}

func TestProductReaderFallsBackOnCacheErrors(t *testing.T) {
	st := memstore.New()
	p := st.SeedProduct("Kettle", "25.00", 4)
	snapshots := &mapSnapshots{products: map[int64]models.Product{}, readErr: errors.New("redis down")}
	reader := NewProductReader(st, snapshots)

	got, err := reader.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestProductReaderNotFound(t *testing.T) {
	reader := NewProductReader(memstore.New(), nil)

	_, err := reader.GetProduct(context.Background(), 12)
	assert.ErrorIs(t, err, ErrNotFound)
}
