package persistence

import (
	"context"
	"errors"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSyncStateRepository implements delivery.SyncStateRepository using GORM
type GormSyncStateRepository struct {
	db *gorm.DB
}

// NewGormSyncStateRepository creates a new GormSyncStateRepository
func NewGormSyncStateRepository(db *gorm.DB) *GormSyncStateRepository {
	return &GormSyncStateRepository{db: db}
}

// Find returns the state for a key, or nil when nothing has been synced
func (r *GormSyncStateRepository) Find(ctx context.Context, restaurantID string, platform delivery.Platform) (*delivery.SyncState, error) {
	var model models.SyncStateModel
	err := forRestaurant(r.db.WithContext(ctx), restaurantID).
		Where("platform = ?", platform).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save inserts or replaces the state for a key
func (r *GormSyncStateRepository) Save(ctx context.Context, state *delivery.SyncState) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "restaurant_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{"items", "updated_at"}),
		}).
		Create(models.SyncStateModelFromDomain(state)).Error
}

var _ delivery.SyncStateRepository = (*GormSyncStateRepository)(nil)
