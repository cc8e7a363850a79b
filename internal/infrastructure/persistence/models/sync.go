package models

import (
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/google/uuid"
)

// SyncLogModel is the persistence model for delivery.SyncLog. Rows are never updated.
type SyncLogModel struct {
	ID           uuid.UUID           `gorm:"type:uuid;primary_key"`
	RestaurantID string              `gorm:"type:varchar(64);not null;index:idx_delivery_sync_logs_restaurant,priority:1"`
	Platform     delivery.Platform   `gorm:"type:varchar(20);not null"`
	SyncType     delivery.SyncType   `gorm:"type:varchar(20);not null"`
	Status       delivery.SyncStatus `gorm:"type:varchar(20);not null"`
	ItemsSynced  int                 `gorm:"not null;default:0"`
	ItemsFailed  int                 `gorm:"not null;default:0"`
	Errors       []string            `gorm:"serializer:json;type:text"`
	ArtifactKey  string              `gorm:"type:varchar(500)"`
	StartedAt    time.Time           `gorm:"not null;index:idx_delivery_sync_logs_restaurant,priority:2"`
	CompletedAt  time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "delivery_sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLog
func (m *SyncLogModel) ToDomain() delivery.SyncLog {
	errs := m.Errors
	if errs == nil {
		errs = []string{}
	}
	return delivery.SyncLog{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		Platform:     m.Platform,
		SyncType:     m.SyncType,
		Status:       m.Status,
		ItemsSynced:  m.ItemsSynced,
		ItemsFailed:  m.ItemsFailed,
		Errors:       errs,
		ArtifactKey:  m.ArtifactKey,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}
}

// SyncLogModelFromDomain creates a persistence model from a domain SyncLog
func SyncLogModelFromDomain(l *delivery.SyncLog) *SyncLogModel {
	return &SyncLogModel{
		ID:           l.ID,
		RestaurantID: l.RestaurantID,
		Platform:     l.Platform,
		SyncType:     l.SyncType,
		Status:       l.Status,
		ItemsSynced:  l.ItemsSynced,
		ItemsFailed:  l.ItemsFailed,
		Errors:       l.Errors,
		ArtifactKey:  l.ArtifactKey,
		StartedAt:    utc(l.StartedAt),
		CompletedAt:  utc(l.CompletedAt),
	}
}

// SyncStateModel stores the last pushed portal state per key
type SyncStateModel struct {
	RestaurantID string                         `gorm:"type:varchar(64);primaryKey"`
	Platform     delivery.Platform              `gorm:"type:varchar(20);primaryKey"`
	Items        map[string]delivery.SyncedItem `gorm:"serializer:json;type:text;not null"`
	UpdatedAt    time.Time                      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncStateModel) TableName() string {
	return "delivery_sync_states"
}

// ToDomain converts the persistence model to a domain SyncState
func (m *SyncStateModel) ToDomain() *delivery.SyncState {
	items := m.Items
	if items == nil {
		items = make(map[string]delivery.SyncedItem)
	}
	return &delivery.SyncState{
		RestaurantID: m.RestaurantID,
		Platform:     m.Platform,
		Items:        items,
		UpdatedAt:    m.UpdatedAt,
	}
}

// SyncStateModelFromDomain creates a persistence model from a domain SyncState
func SyncStateModelFromDomain(s *delivery.SyncState) *SyncStateModel {
	return &SyncStateModel{
		RestaurantID: s.RestaurantID,
		Platform:     s.Platform,
		Items:        s.Items,
		UpdatedAt:    utc(s.UpdatedAt),
	}
}
