package persistence

import (
	"context"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/logger"
	"github.com/deliverysync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditLogger implements delivery.AuditLogger by appending rows to audit_logs
type GormAuditLogger struct {
	db *gorm.DB
}

// NewGormAuditLogger creates a new GormAuditLogger
func NewGormAuditLogger(db *gorm.DB) *GormAuditLogger {
	return &GormAuditLogger{db: db}
}

// Record appends an entry, tagging it with the request ID carried by ctx
func (a *GormAuditLogger) Record(ctx context.Context, entry delivery.AuditEntry) error {
	return a.db.WithContext(ctx).
		Create(models.AuditLogModelFromEntry(entry, logger.GetRequestID(ctx))).Error
}

var _ delivery.AuditLogger = (*GormAuditLogger)(nil)
