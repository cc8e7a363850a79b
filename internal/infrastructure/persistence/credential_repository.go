package persistence

import (
	"context"
	"errors"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCredentialRepository implements delivery.CredentialRepository using GORM
type GormCredentialRepository struct {
	db *gorm.DB
}

// NewGormCredentialRepository creates a new GormCredentialRepository
func NewGormCredentialRepository(db *gorm.DB) *GormCredentialRepository {
	return &GormCredentialRepository{db: db}
}

// Create inserts a credential. The unique (restaurant_id, platform) index
// decides conflicts; there is no read before the write.
func (r *GormCredentialRepository) Create(ctx context.Context, cred *delivery.Credential) error {
	model := models.CredentialModelFromDomain(cred)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "restaurant_id"}, {Name: "platform"}},
			DoNothing: true,
		}).
		Create(model)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return delivery.NewCredentialConflictError(cred.Platform)
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return delivery.NewCredentialConflictError(cred.Platform)
	}
	return nil
}

// FindByKey returns the credential for a restaurant and platform
func (r *GormCredentialRepository) FindByKey(ctx context.Context, restaurantID string, platform delivery.Platform) (*delivery.Credential, error) {
	var model models.CredentialModel
	err := forRestaurant(r.db.WithContext(ctx), restaurantID).
		Where("platform = ?", platform).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, delivery.NewNotFoundError("credentials", restaurantID, platform)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByRestaurant returns every credential of a restaurant ordered by platform
func (r *GormCredentialRepository) FindByRestaurant(ctx context.Context, restaurantID string) ([]delivery.Credential, error) {
	return r.find(forRestaurant(r.db.WithContext(ctx), restaurantID))
}

// FindActiveByRestaurant returns the credentials syncAll targets
func (r *GormCredentialRepository) FindActiveByRestaurant(ctx context.Context, restaurantID string) ([]delivery.Credential, error) {
	return r.find(forRestaurant(r.db.WithContext(ctx), restaurantID).Where("is_active = ?", true))
}

// FindAutoSync returns active credentials across restaurants whose sync
// config enables scheduled sync. The JSON column is filtered in Go so the
// query stays portable between postgres and sqlite.
func (r *GormCredentialRepository) FindAutoSync(ctx context.Context) ([]delivery.Credential, error) {
	all, err := r.find(r.db.WithContext(ctx).Where("is_active = ? AND sync_config IS NOT NULL", true))
	if err != nil {
		return nil, err
	}
	creds := make([]delivery.Credential, 0, len(all))
	for _, c := range all {
		if c.SyncConfig != nil && c.SyncConfig.AutoSync {
			creds = append(creds, c)
		}
	}
	return creds, nil
}

func (r *GormCredentialRepository) find(query *gorm.DB) ([]delivery.Credential, error) {
	var rows []models.CredentialModel
	if err := query.Order("restaurant_id, platform").Find(&rows).Error; err != nil {
		return nil, err
	}
	creds := make([]delivery.Credential, 0, len(rows))
	for i := range rows {
		creds = append(creds, *rows[i].ToDomain())
	}
	return creds, nil
}

// Update writes every mutable column of an existing credential
func (r *GormCredentialRepository) Update(ctx context.Context, cred *delivery.Credential) error {
	model := models.CredentialModelFromDomain(cred)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("restaurant_id = ? AND platform = ?", cred.RestaurantID, cred.Platform).
		Select("username", "encrypted_password", "portal_url", "sync_config", "is_active", "updated_at").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return delivery.NewNotFoundError("credentials", cred.RestaurantID, cred.Platform)
	}
	return nil
}

// Delete removes a credential
func (r *GormCredentialRepository) Delete(ctx context.Context, restaurantID string, platform delivery.Platform) error {
	result := forRestaurant(r.db.WithContext(ctx), restaurantID).
		Where("platform = ?", platform).
		Delete(&models.CredentialModel{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return delivery.NewNotFoundError("credentials", restaurantID, platform)
	}
	return nil
}

var _ delivery.CredentialRepository = (*GormCredentialRepository)(nil)
