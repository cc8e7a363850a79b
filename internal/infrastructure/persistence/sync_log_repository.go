package persistence

import (
	"context"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSyncLogRepository implements delivery.SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Create appends a sync log
func (r *GormSyncLogRepository) Create(ctx context.Context, log *delivery.SyncLog) error {
	return r.db.WithContext(ctx).Create(models.SyncLogModelFromDomain(log)).Error
}

// List returns one page of a restaurant's sync logs, newest first, and the total count
func (r *GormSyncLogRepository) List(ctx context.Context, filter delivery.SyncLogFilter) ([]delivery.SyncLog, int64, error) {
	filter.Normalize()

	query := forRestaurant(r.db.WithContext(ctx).Model(&models.SyncLogModel{}), filter.RestaurantID)
	if filter.Platform != "" {
		query = query.Where("platform = ?", filter.Platform)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SyncLogModel
	err := query.
		Order("started_at DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	logs := make([]delivery.SyncLog, 0, len(rows))
	for i := range rows {
		logs = append(logs, rows[i].ToDomain())
	}
	return logs, total, nil
}

var _ delivery.SyncLogRepository = (*GormSyncLogRepository)(nil)
