package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// SyncMetrics holds the delivery automation instruments. A nil *SyncMetrics
// records nothing, so callers need no enabled checks.
type SyncMetrics struct {
	syncRuns        *Counter
	syncItems       *Counter
	syncDuration    *Histogram
	sessionOps      *Counter
	lockContention  *Counter
	portalErrors    *Counter
	sessionsCleaned *Counter
}

// NewSyncMetrics creates the delivery instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   SyncMetrics
		err error
	)
	if m.syncRuns, err = NewCounter(meter, "delivery_sync_runs_total",
		"Menu sync runs by platform, sync type and status", "{run}"); err != nil {
		return nil, err
	}
	if m.syncItems, err = NewCounter(meter, "delivery_sync_items_total",
		"Menu items pushed to portals by outcome", "{item}"); err != nil {
		return nil, err
	}
	if m.syncDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "delivery_sync_duration_seconds",
		Description: "Wall time of one platform sync including browser startup",
		Unit:        "s",
		Boundaries:  PortalDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.sessionOps, err = NewCounter(meter, "delivery_session_operations_total",
		"Session init and test operations by outcome", "{operation}"); err != nil {
		return nil, err
	}
	if m.lockContention, err = NewCounter(meter, "delivery_lock_contention_total",
		"Operations rejected because another one held the key", "{operation}"); err != nil {
		return nil, err
	}
	if m.portalErrors, err = NewCounter(meter, "delivery_portal_errors_total",
		"Portal failures by error kind", "{error}"); err != nil {
		return nil, err
	}
	if m.sessionsCleaned, err = NewCounter(meter, "delivery_sessions_cleaned_total",
		"Sessions removed by the expiry janitor", "{session}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordSync records one finished platform sync
func (m *SyncMetrics) RecordSync(ctx context.Context, platform, syncType, status string, synced, failed int, d time.Duration) {
	if m == nil {
		return
	}
	m.syncRuns.Inc(ctx, AttrPlatform.String(platform), AttrSyncType.String(syncType), AttrStatus.String(status))
	if synced > 0 {
		m.syncItems.Add(ctx, int64(synced), AttrPlatform.String(platform), AttrStatus.String("success"))
	}
	if failed > 0 {
		m.syncItems.Add(ctx, int64(failed), AttrPlatform.String(platform), AttrStatus.String("failed"))
	}
	m.syncDuration.RecordDuration(ctx, d, AttrPlatform.String(platform), AttrSyncType.String(syncType))
}

// RecordSessionOp records a session init or test
func (m *SyncMetrics) RecordSessionOp(ctx context.Context, platform, operation string, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	m.sessionOps.Inc(ctx, AttrPlatform.String(platform), AttrOperation.String(operation), AttrStatus.String(status))
}

// RecordLockContention records an operation rejected by a held key
func (m *SyncMetrics) RecordLockContention(ctx context.Context, platform, operation string) {
	if m == nil {
		return
	}
	m.lockContention.Inc(ctx, AttrPlatform.String(platform), AttrOperation.String(operation))
}

// RecordPortalError records a classified portal failure
func (m *SyncMetrics) RecordPortalError(ctx context.Context, platform, kind string) {
	if m == nil {
		return
	}
	m.portalErrors.Inc(ctx, AttrPlatform.String(platform), AttrErrorKind.String(kind))
}

// RecordSessionsCleaned records janitor deletions
func (m *SyncMetrics) RecordSessionsCleaned(ctx context.Context, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsCleaned.Add(ctx, n)
}
