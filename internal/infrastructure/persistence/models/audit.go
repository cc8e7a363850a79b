package models

import (
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/google/uuid"
)

// AuditLogModel is one row of the append-only audit trail
type AuditLogModel struct {
	ID           uuid.UUID            `gorm:"type:uuid;primary_key"`
	RestaurantID string               `gorm:"type:varchar(64);not null;index:idx_audit_logs_restaurant,priority:1"`
	Platform     string               `gorm:"type:varchar(20)"`
	Action       delivery.AuditAction `gorm:"type:varchar(50);not null"`
	Outcome      string               `gorm:"type:varchar(20);not null"`
	Detail       map[string]any       `gorm:"serializer:json;type:text"`
	RequestID    string               `gorm:"type:varchar(64)"`
	CreatedAt    time.Time            `gorm:"not null;index:idx_audit_logs_restaurant,priority:2"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// AuditLogModelFromEntry creates a persistence model from an audit entry
func AuditLogModelFromEntry(e delivery.AuditEntry, requestID string) *AuditLogModel {
	return &AuditLogModel{
		ID:           uuid.New(),
		RestaurantID: e.RestaurantID,
		Platform:     string(e.Platform),
		Action:       e.Action,
		Outcome:      e.Outcome,
		Detail:       e.Detail,
		RequestID:    requestID,
		CreatedAt:    utc(e.At),
	}
}
