package persistence

import (
	"context"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMenuReader implements delivery.MenuReader over the menu domain's table
type GormMenuReader struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormMenuReader creates a new GormMenuReader
func NewGormMenuReader(db *gorm.DB) *GormMenuReader {
	return &GormMenuReader{db: db, now: time.Now}
}

// Snapshot reads every live menu item of a restaurant
func (r *GormMenuReader) Snapshot(ctx context.Context, restaurantID string) (*delivery.MenuSnapshot, error) {
	var rows []models.MenuItemModel
	err := forRestaurant(r.db.WithContext(ctx), restaurantID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]delivery.MenuItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToDomain())
	}
	return &delivery.MenuSnapshot{
		RestaurantID: restaurantID,
		Items:        items,
		TakenAt:      r.now(),
	}, nil
}

var _ delivery.MenuReader = (*GormMenuReader)(nil)
