package service

import (
	"context"
	"testing"

	"order-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const userID = 10

	plenty := env.store.SeedProduct("Pen", "1.20", 50)
	scarce := env.store.SeedProduct("Notebook", "4.00", 2)
	empty := env.store.SeedProduct("Stapler", "9.00", 0)
	retired := env.store.AddProduct(models.Product{Name: "Fax paper", StockCount: 9, InStock: true})

	env.store.AddCartItem(userID, plenty.ID, 3)
	env.store.AddCartItem(userID, scarce.ID, 5)
	env.store.AddCartItem(userID, empty.ID, 1)
	env.store.AddCartItem(userID, retired.ID, 1)
	env.store.AddCartItem(userID, 9999, 1)

	result, err := env.validator.ValidateCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, result.Lines, 5)
	assert.True(t, result.HasBlockingIssues())

	verdicts := map[int64]LineVerdict{}
	for _, line := range result.Lines {
		verdicts[line.ProductID] = line
	}

	assert.Equal(t, VerdictOK, verdicts[plenty.ID].Verdict)
	assert.Equal(t, 50, verdicts[plenty.ID].Available)

	assert.Equal(t, VerdictExceedsStock, verdicts[scarce.ID].Verdict)
	assert.Equal(t, 2, verdicts[scarce.ID].Available)
	assert.Equal(t, 5, verdicts[scarce.ID].Quantity)

	assert.Equal(t, VerdictOutOfStock, verdicts[empty.ID].Verdict)
	assert.Equal(t, VerdictInactive, verdicts[retired.ID].Verdict)
	assert.Equal(t, 0, verdicts[retired.ID].Available)

	assert.Equal(t, VerdictNotFound, verdicts[9999].Verdict)
	assert.Nil(t, verdicts[9999].Product)
}

func TestValidateCartAllClear(t *testing.T) {
	env := newTestEnv(t)
	p := env.store.SeedProduct("Pen", "1.20", 3)
	env.store.AddCartItem(1, p.ID, 3)

	result, err := env.validator.ValidateCart(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, result.HasBlockingIssues())
}

func TestValidateCartEmptyAndInvalidUser(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.validator.ValidateCart(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, result.Lines)
	assert.False(t, result.HasBlockingIssues())

	_, err = env.validator.ValidateCart(context.Background(), 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidatorDoesNotMutate(t *testing.T) {
	env := newTestEnv(t)
	p := env.store.SeedProduct("Notebook", "4.00", 2)
	env.store.AddCartItem(1, p.ID, 5)

	_, err := env.validator.ValidateCart(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 2, env.stock(t, p.ID))
	items, err := env.store.GetCartItems(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}
