package delivery

import (
	"context"
	"time"
)

// AuditAction names a mutating action
type AuditAction string

const (
	AuditCredentialsSaved   AuditAction = "credentials.save"
	AuditCredentialsUpdated AuditAction = "credentials.update"
	AuditCredentialsDeleted AuditAction = "credentials.delete"
	AuditCredentialsTested  AuditAction = "credentials.test"
	AuditSessionInit        AuditAction = "session.init"
	AuditSessionTest        AuditAction = "session.test"
	AuditSessionDelete      AuditAction = "session.delete"
	AuditSessionCleanup     AuditAction = "session.cleanup"
	AuditSyncPlatform       AuditAction = "sync.platform"
	AuditSyncAll            AuditAction = "sync.all"
)

// Audit outcomes
const (
	AuditOutcomeSuccess = "success"
	AuditOutcomeFailure = "failure"
)

// AuditEntry is one append-only audit record. Detail must never carry
// passwords or session blobs.
type AuditEntry struct {
	RestaurantID string
	Platform     Platform
	Action       AuditAction
	Outcome      string
	Detail       map[string]any
	At           time.Time
}

// AuditLogger is the append-only audit sink
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry) error
}
