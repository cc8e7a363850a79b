package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSessionRepository implements delivery.SessionRepository using GORM
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GormSessionRepository
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// Upsert inserts the session or replaces every column of the existing row for
// the key, so a new login supersedes the old blob atomically.
func (r *GormSessionRepository) Upsert(ctx context.Context, session *delivery.Session) error {
	model := models.SessionModelFromDomain(session)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "restaurant_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"id", "session_blob", "created_at", "last_used_at", "last_validated_at", "revoked",
			}),
		}).
		Create(model).Error
}

// FindByKey returns the session for a key
func (r *GormSessionRepository) FindByKey(ctx context.Context, restaurantID string, platform delivery.Platform) (*delivery.Session, error) {
	var model models.SessionModel
	err := forRestaurant(r.db.WithContext(ctx), restaurantID).
		Where("platform = ?", platform).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, delivery.NewNotFoundError("session", restaurantID, platform)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Exists reports whether the key has a stored session, valid or not
func (r *GormSessionRepository) Exists(ctx context.Context, restaurantID string, platform delivery.Platform) (bool, error) {
	var count int64
	err := forRestaurant(r.db.WithContext(ctx).Model(&models.SessionModel{}), restaurantID).
		Where("platform = ?", platform).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByRestaurant returns every session of a restaurant without blobs
func (r *GormSessionRepository) FindByRestaurant(ctx context.Context, restaurantID string) ([]delivery.Session, error) {
	var rows []models.SessionModel
	err := forRestaurant(r.db.WithContext(ctx), restaurantID).
		Omit("session_blob").
		Order("platform").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	sessions := make([]delivery.Session, 0, len(rows))
	for i := range rows {
		sessions = append(sessions, *rows[i].ToDomain())
	}
	return sessions, nil
}

// Touch records that the session was just used for a sync
func (r *GormSessionRepository) Touch(ctx context.Context, restaurantID string, platform delivery.Platform, usedAt time.Time) error {
	return r.update(ctx, restaurantID, platform, map[string]any{"last_used_at": usedAt.UTC()})
}

// MarkValidated records a successful liveness check
func (r *GormSessionRepository) MarkValidated(ctx context.Context, restaurantID string, platform delivery.Platform, at time.Time) error {
	return r.update(ctx, restaurantID, platform, map[string]any{"last_validated_at": at.UTC()})
}

// Revoke marks a session the portal rejected. The row is kept so status
// reports "revoked" until the session is re-initialized or deleted.
func (r *GormSessionRepository) Revoke(ctx context.Context, restaurantID string, platform delivery.Platform) error {
	return r.update(ctx, restaurantID, platform, map[string]any{"revoked": true})
}

func (r *GormSessionRepository) update(ctx context.Context, restaurantID string, platform delivery.Platform, values map[string]any) error {
	result := forRestaurant(r.db.WithContext(ctx).Model(&models.SessionModel{}), restaurantID).
		Where("platform = ?", platform).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return delivery.NewNotFoundError("session", restaurantID, platform)
	}
	return nil
}

// Delete removes the session for a key
func (r *GormSessionRepository) Delete(ctx context.Context, restaurantID string, platform delivery.Platform) (bool, error) {
	result := forRestaurant(r.db.WithContext(ctx), restaurantID).
		Where("platform = ?", platform).
		Delete(&models.SessionModel{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteCreatedBefore removes sessions created before cutoff and returns how
// many rows were removed. An empty restaurantID sweeps all restaurants.
func (r *GormSessionRepository) DeleteCreatedBefore(ctx context.Context, restaurantID string, cutoff time.Time) (int64, error) {
	query := r.db.WithContext(ctx)
	if restaurantID != "" {
		query = forRestaurant(query, restaurantID)
	}
	result := query.
		Where("created_at < ?", cutoff.UTC()).
		Delete(&models.SessionModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

var _ delivery.SessionRepository = (*GormSessionRepository)(nil)
