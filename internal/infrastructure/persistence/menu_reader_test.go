package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/deliverysync/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormMenuReader_Snapshot(t *testing.T) {
	db := setupDeliveryTestDB(t)
	ctx := context.Background()

	rows := []models.MenuItemModel{
		{ID: "b-burger", RestaurantID: "r1", Name: "Burger", Category: "Mains", Price: decimal.RequireFromString("12.50"), InStock: true},
		{ID: "a-fries", RestaurantID: "r1", Name: "Fries", Category: "Sides", Price: decimal.RequireFromString("3.25"), InStock: true},
		{ID: "c-shake", RestaurantID: "r1", Name: "Shake", Price: decimal.RequireFromString("5"), InStock: true},
		{ID: "other", RestaurantID: "r2", Name: "Salad", Price: decimal.RequireFromString("9"), InStock: true},
	}
	require.NoError(t, db.Create(&rows).Error)
	// stock flags default to true in the schema, so flip it after insert
	require.NoError(t, db.Model(&models.MenuItemModel{}).Where("id = ?", "a-fries").Update("in_stock", false).Error)
	require.NoError(t, db.Delete(&models.MenuItemModel{}, "id = ?", "c-shake").Error)

	takenAt := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	reader := NewGormMenuReader(db)
	reader.now = func() time.Time { return takenAt }

	snap, err := reader.Snapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", snap.RestaurantID)
	assert.Equal(t, takenAt, snap.TakenAt)

	require.Len(t, snap.Items, 2, "soft-deleted and foreign items are excluded")
	assert.Equal(t, "a-fries", snap.Items[0].ID)
	assert.False(t, snap.Items[0].InStock)
	assert.True(t, decimal.RequireFromString("3.25").Equal(snap.Items[0].Price))
	assert.Equal(t, "b-burger", snap.Items[1].ID)
	assert.Equal(t, "Mains", snap.Items[1].Category)
}

func TestGormMenuReader_EmptyMenu(t *testing.T) {
	reader := NewGormMenuReader(setupDeliveryTestDB(t))

	snap, err := reader.Snapshot(context.Background(), "r1")
	require.NoError(t, err)
	assert.NotNil(t, snap.Items)
	assert.Empty(t, snap.Items)
}
