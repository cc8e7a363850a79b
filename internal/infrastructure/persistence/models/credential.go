package models

import (
	"github.com/deliverysync/backend/internal/domain/delivery"
)

// CredentialModel is the persistence model for delivery.Credential.
// EncryptedPassword holds the sealed value only.
type CredentialModel struct {
	BaseModel
	RestaurantID      string               `gorm:"type:varchar(64);not null;uniqueIndex:idx_delivery_credentials_key,priority:1"`
	Platform          delivery.Platform    `gorm:"type:varchar(20);not null;uniqueIndex:idx_delivery_credentials_key,priority:2"`
	Username          string               `gorm:"type:varchar(255);not null"`
	EncryptedPassword string               `gorm:"type:text;not null"`
	PortalURL         string               `gorm:"type:varchar(500)"`
	SyncConfig        *delivery.SyncConfig `gorm:"serializer:json;type:text"`
	IsActive          bool                 `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (CredentialModel) TableName() string {
	return "delivery_credentials"
}

// ToDomain converts the persistence model to a domain Credential
func (m *CredentialModel) ToDomain() *delivery.Credential {
	return &delivery.Credential{
		ID:                m.ID,
		RestaurantID:      m.RestaurantID,
		Platform:          m.Platform,
		Username:          m.Username,
		EncryptedPassword: m.EncryptedPassword,
		PortalURL:         m.PortalURL,
		SyncConfig:        m.SyncConfig,
		IsActive:          m.IsActive,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// CredentialModelFromDomain creates a persistence model from a domain Credential
func CredentialModelFromDomain(c *delivery.Credential) *CredentialModel {
	return &CredentialModel{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: utc(c.CreatedAt),
			UpdatedAt: utc(c.UpdatedAt),
		},
		RestaurantID:      c.RestaurantID,
		Platform:          c.Platform,
		Username:          c.Username,
		EncryptedPassword: c.EncryptedPassword,
		PortalURL:         c.PortalURL,
		SyncConfig:        c.SyncConfig,
		IsActive:          c.IsActive,
	}
}
