package models

import (
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/google/uuid"
)

// SessionModel is the persistence model for delivery.Session. Blob is opaque
// to everything but the platform driver.
type SessionModel struct {
	ID              uuid.UUID         `gorm:"type:uuid;primary_key"`
	RestaurantID    string            `gorm:"type:varchar(64);not null;uniqueIndex:idx_delivery_sessions_key,priority:1"`
	Platform        delivery.Platform `gorm:"type:varchar(20);not null;uniqueIndex:idx_delivery_sessions_key,priority:2"`
	Blob            []byte            `gorm:"column:session_blob;not null"`
	CreatedAt       time.Time         `gorm:"not null;index"`
	LastUsedAt      time.Time         `gorm:"not null"`
	LastValidatedAt *time.Time
	Revoked         bool `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (SessionModel) TableName() string {
	return "delivery_sessions"
}

// ToDomain converts the persistence model to a domain Session
func (m *SessionModel) ToDomain() *delivery.Session {
	return &delivery.Session{
		ID:              m.ID,
		RestaurantID:    m.RestaurantID,
		Platform:        m.Platform,
		Blob:            m.Blob,
		CreatedAt:       m.CreatedAt,
		LastUsedAt:      m.LastUsedAt,
		LastValidatedAt: m.LastValidatedAt,
		Revoked:         m.Revoked,
	}
}

// SessionModelFromDomain creates a persistence model from a domain Session
func SessionModelFromDomain(s *delivery.Session) *SessionModel {
	return &SessionModel{
		ID:              s.ID,
		RestaurantID:    s.RestaurantID,
		Platform:        s.Platform,
		Blob:            s.Blob,
		CreatedAt:       utc(s.CreatedAt),
		LastUsedAt:      utc(s.LastUsedAt),
		LastValidatedAt: utcPtr(s.LastValidatedAt),
		Revoked:         s.Revoked,
	}
}
