package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/logger"
	"github.com/deliverysync/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormAuditLogger_Record(t *testing.T) {
	db := setupDeliveryTestDB(t)
	audit := NewGormAuditLogger(db)

	ctx := logger.WithRequestID(context.Background(), "req-7")
	err := audit.Record(ctx, delivery.AuditEntry{
		RestaurantID: "r1",
		Platform:     delivery.PlatformDoorDash,
		Action:       delivery.AuditCredentialsSaved,
		Outcome:      delivery.AuditOutcomeSuccess,
		Detail:       map[string]any{"username": "owner@example.com"},
		At:           time.Now(),
	})
	require.NoError(t, err)

	var rows []models.AuditLogModel
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "r1", rows[0].RestaurantID)
	assert.Equal(t, "doordash", rows[0].Platform)
	assert.Equal(t, delivery.AuditCredentialsSaved, rows[0].Action)
	assert.Equal(t, "req-7", rows[0].RequestID)
	assert.Equal(t, "owner@example.com", rows[0].Detail["username"])
}
