// Package delivery implements the delivery-platform automation use cases:
// the credential vault, the browser session manager and the sync orchestrator.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/logger"
	"github.com/deliverysync/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DriverRegistry resolves the driver for a platform
type DriverRegistry interface {
	Get(platform delivery.Platform) (delivery.PlatformDriver, error)
}

// Config holds the time budgets and retry policy of the automation services
type Config struct {
	// LoginWait bounds how long InitSession waits for a human to log in
	LoginWait    time.Duration
	PollInterval time.Duration
	TestTimeout  time.Duration
	ProbeTimeout time.Duration
	SyncTimeout  time.Duration
	// MaxAgeDays is the age cutoff used by the scheduled session cleanup
	MaxAgeDays  int
	Concurrency int
	Retry       delivery.RetryPolicy
}

// DefaultConfig returns the budgets used when none are configured
func DefaultConfig() Config {
	return Config{
		LoginWait:    5 * time.Minute,
		PollInterval: 2 * time.Second,
		TestTimeout:  45 * time.Second,
		ProbeTimeout: 60 * time.Second,
		SyncTimeout:  10 * time.Minute,
		MaxAgeDays:   30,
		Concurrency:  2,
		Retry:        delivery.DefaultRetryPolicy(),
	}
}

// LockTTL covers the longest operation budget so a crashed holder cannot
// block a key forever, while a live holder never loses its lock mid-operation.
func (c Config) LockTTL() time.Duration {
	longest := max(c.LoginWait, c.TestTimeout, c.ProbeTimeout, c.SyncTimeout)
	return longest + time.Minute
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LoginWait <= 0 {
		c.LoginWait = d.LoginWait
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.TestTimeout <= 0 {
		c.TestTimeout = d.TestTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = d.SyncTimeout
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = d.MaxAgeDays
	}
	if c.Concurrency < 1 {
		c.Concurrency = d.Concurrency
	}
	if c.Retry.MaxAttempts < 1 {
		c.Retry = d.Retry
	}
	return c
}

// Dependencies are the collaborators shared by the automation services.
// Audit, Artifacts, Metrics, Logger and Now are optional.
type Dependencies struct {
	Credentials delivery.CredentialRepository
	Sessions    delivery.SessionRepository
	SyncLogs    delivery.SyncLogRepository
	SyncStates  delivery.SyncStateRepository
	Menu        delivery.MenuReader
	Drivers     DriverRegistry
	Browser     delivery.BrowserRuntime
	Locker      delivery.KeyLocker
	Cipher      delivery.PasswordCipher
	Audit       delivery.AuditLogger
	Artifacts   delivery.ArtifactStore
	Metrics     *telemetry.SyncMetrics
	Logger      *zap.Logger
	Now         func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Audit == nil {
		d.Audit = nopAudit{}
	}
	return d
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, delivery.AuditEntry) error { return nil }

// ActionResult is the {success, message} reply of session and probe operations
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionTestResult is the reply of TestSession
type SessionTestResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// keyLock acquires the per-(restaurant, platform) lock shared by init, test,
// sync and delete.
type keyLock struct {
	locker  delivery.KeyLocker
	ttl     time.Duration
	metrics *telemetry.SyncMetrics
}

func (k keyLock) acquire(ctx context.Context, restaurantID string, platform delivery.Platform, operation string) (func(), error) {
	release, acquired, err := k.locker.TryLock(ctx, delivery.LockKey(restaurantID, platform), k.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", operation, err)
	}
	if !acquired {
		k.metrics.RecordLockContention(ctx, platform.String(), operation)
		return nil, delivery.NewOperationInProgressError(restaurantID, platform)
	}
	return release, nil
}

// audit records an entry. Sink failures are logged, never returned.
func audit(ctx context.Context, sink delivery.AuditLogger, entry delivery.AuditEntry) {
	if err := sink.Record(ctx, entry); err != nil {
		logger.L(ctx).Error("Failed to write audit entry",
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
	}
}

// scoped stamps the restaurant and platform on every entry logged under ctx
func scoped(ctx context.Context, restaurantID string, platform delivery.Platform) context.Context {
	return logger.WithScope(ctx, logger.Scope{RestaurantID: restaurantID, Platform: platform.String()})
}

// contextLogger prefers the request-scoped logger and falls back to the
// service logger for background runs
func contextLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	return logger.LOr(ctx, fallback)
}

func outcomeOf(err error) string {
	if err != nil {
		return delivery.AuditOutcomeFailure
	}
	return delivery.AuditOutcomeSuccess
}

func requireRestaurant(restaurantID string) error {
	if restaurantID == "" {
		return delivery.ErrAuthContext
	}
	return nil
}

func requirePlatform(platform delivery.Platform) error {
	if !platform.IsValid() {
		return delivery.NewValidationError("unsupported platform %q", platform)
	}
	return nil
}

// errorDetail is the audit-safe description of a failure
func errorDetail(err error) map[string]any {
	if err == nil {
		return nil
	}
	detail := map[string]any{"message": delivery.UserMessage(err)}
	if kind := delivery.KindOf(err); kind != "" {
		detail["error_kind"] = string(kind)
	}
	return detail
}

// budgetError turns expiry of the operation budget into a TimeoutError while
// leaving caller cancellation intact. A bare context.DeadlineExceeded from the
// driver is converted too.
func budgetError(parent, opCtx context.Context, platform delivery.Platform, operation string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		var de *delivery.Error
		if !errors.As(err, &de) || de.Kind != delivery.KindTimeout {
			return delivery.NewTimeoutError(platform, operation)
		}
	}
	return err
}
