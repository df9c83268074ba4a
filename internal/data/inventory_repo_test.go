package data

import (
	"context"
	"testing"

	"order-service/internal/data/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryRepo(t *testing.T) {
	d := newTestData(t)
	repo := NewInventoryRepo(d, testLogger)
	ctx := context.Background()

	item := &model.CatalogItem{Name: "Rasam Premix", Price: decimal.RequireFromString("120.00"), Stock: 3}
	require.NoError(t, d.db.Create(item).Error)

	stock := func() int {
		var m model.CatalogItem
		require.NoError(t, d.db.First(&m, item.ID).Error)
		return m.Stock
	}

	found, err := repo.Decrement(ctx, item.ID, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, stock())

	found, err = repo.Decrement(ctx, item.ID, 5)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0, stock(), "stock floors at zero")

	found, err = repo.Decrement(ctx, item.ID, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0, stock())

	found, err = repo.Increment(ctx, item.ID, 4)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 4, stock())

	found, err = repo.Decrement(ctx, 9999, 1)
	require.NoError(t, err)
	assert.False(t, found)
}
