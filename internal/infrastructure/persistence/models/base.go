package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for mutable records
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// utc normalizes timestamps so sqlite text comparisons order correctly
func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// All returns every model owned or read by this service, in migration order
func All() []any {
	return []any{
		&CredentialModel{},
		&SessionModel{},
		&SyncLogModel{},
		&SyncStateModel{},
		&AuditLogModel{},
		&MenuItemModel{},
	}
}
