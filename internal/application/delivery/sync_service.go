package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/storage"
	"github.com/deliverysync/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SyncService is the sync orchestrator. It pushes the restaurant's menu to
// portals through their drivers, one platform at a time or fanned out with
// bounded concurrency.
type SyncService struct {
	credentials delivery.CredentialRepository
	sessions    delivery.SessionRepository
	logs        delivery.SyncLogRepository
	states      delivery.SyncStateRepository
	menu        delivery.MenuReader
	drivers     DriverRegistry
	browser     delivery.BrowserRuntime
	artifacts   delivery.ArtifactStore
	lock        keyLock
	audit       delivery.AuditLogger
	metrics     *telemetry.SyncMetrics
	config      Config
	logger      *zap.Logger
	now         func() time.Time
}

// NewSyncService creates a new SyncService. deps.Artifacts may be nil, in
// which case failure screenshots are not kept.
func NewSyncService(deps Dependencies, cfg Config) *SyncService {
	deps = deps.withDefaults()
	cfg = cfg.withDefaults()
	return &SyncService{
		credentials: deps.Credentials,
		sessions:    deps.Sessions,
		logs:        deps.SyncLogs,
		states:      deps.SyncStates,
		menu:        deps.Menu,
		drivers:     deps.Drivers,
		browser:     deps.Browser,
		artifacts:   deps.Artifacts,
		lock:        keyLock{locker: deps.Locker, ttl: cfg.LockTTL(), metrics: deps.Metrics},
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		config:      cfg,
		logger:      deps.Logger,
		now:         deps.Now,
	}
}

// SyncMenuToPlatform pushes the menu to one platform. It never logs in: a
// missing, expired or rejected session yields {success: false} and a failed
// sync log. Failures of the whole run (navigation, network, timeout) are
// logged as failed and returned as errors.
func (s *SyncService) SyncMenuToPlatform(ctx context.Context, restaurantID string, platform delivery.Platform, syncType delivery.SyncType) (*delivery.SyncOutcome, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	if !syncType.IsValid() {
		return nil, delivery.NewValidationError("unsupported sync type %q", syncType)
	}
	drv, err := s.drivers.Get(platform)
	if err != nil {
		return nil, err
	}

	release, err := s.lock.acquire(ctx, restaurantID, platform, opSync)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, span := telemetry.StartServiceSpan(ctx, "delivery_sync", "sync_platform",
		telemetry.WithAttribute(telemetry.SpanAttrRestaurantID, restaurantID),
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, platform.String()),
		telemetry.WithAttribute(telemetry.SpanAttrSyncType, syncType.String()),
	)
	defer span.End()
	ctx = scoped(ctx, restaurantID, platform)

	run := &syncRun{
		restaurantID: restaurantID,
		platform:     platform,
		syncType:     syncType,
		driver:       drv,
		log:          delivery.NewSyncLog(restaurantID, platform, syncType, s.now()),
	}

	outcome, err := s.execute(ctx, run)
	s.finish(ctx, run, outcome, err)

	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemsSynced, outcome.ItemsSynced,
		telemetry.SpanAttrItemsFailed, outcome.ItemsFailed,
	)
	if outcome.Success {
		telemetry.SetOK(span)
	}
	return outcome, nil
}

// syncRun carries the state of one SyncMenuToPlatform call
type syncRun struct {
	restaurantID string
	platform     delivery.Platform
	syncType     delivery.SyncType
	driver       delivery.PlatformDriver
	log          *delivery.SyncLog
}

func (s *SyncService) execute(ctx context.Context, run *syncRun) (*delivery.SyncOutcome, error) {
	session, err := s.sessions.FindByKey(ctx, run.restaurantID, run.platform)
	if errors.Is(err, delivery.ErrNotFound) {
		return s.rejectSession(ctx, run, "not found", false)
	}
	if err != nil {
		return nil, err
	}
	if now := s.now(); !session.IsValid(now) {
		return s.rejectSession(ctx, run, "is "+string(session.State(now)), false)
	}

	snapshot, err := s.menu.Snapshot(ctx, run.restaurantID)
	if err != nil {
		return nil, fmt.Errorf("read menu: %w", err)
	}
	syncConfig, err := s.syncConfig(ctx, run)
	if err != nil {
		return nil, err
	}
	state, err := s.states.Find(ctx, run.restaurantID, run.platform)
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}

	changes := delivery.PlanChanges(state, snapshot, run.syncType, syncConfig)
	if len(changes) == 0 {
		result := &delivery.SyncResult{Errors: []string{}, Details: []delivery.ItemResult{}}
		return s.complete(ctx, run, nil, result, "nothing changed since the last sync")
	}

	syncCtx, cancel := context.WithTimeout(ctx, s.config.SyncTimeout)
	defer cancel()

	page, closePage, err := s.browser.Open(syncCtx, delivery.PageOptions{})
	if err != nil {
		return nil, budgetError(ctx, syncCtx, run.platform, "menu sync", err)
	}
	defer closePage()

	ok, err := run.driver.ValidateSession(syncCtx, page, session.Blob)
	if err == nil && !ok {
		return s.rejectSession(ctx, run, "was rejected by the portal", true)
	}
	if err != nil {
		if errors.Is(err, delivery.ErrSessionInvalid) {
			return s.rejectSession(ctx, run, "was rejected by the portal", true)
		}
		s.captureFailure(ctx, run, page, err)
		return nil, budgetError(ctx, syncCtx, run.platform, "menu sync", err)
	}

	result, err := run.driver.SyncMenu(syncCtx, page, session.Blob, delivery.SyncRequest{
		RestaurantID: run.restaurantID,
		SyncType:     run.syncType,
		Changes:      changes,
		Retry:        s.config.Retry,
	})
	if err != nil {
		if errors.Is(err, delivery.ErrSessionInvalid) {
			return s.rejectSession(ctx, run, "was rejected by the portal", true)
		}
		s.captureFailure(ctx, run, page, err)
		return nil, budgetError(ctx, syncCtx, run.platform, "menu sync", err)
	}
	if result.ItemsFailed > 0 {
		s.captureFailure(ctx, run, page, nil)
	}

	// the portal has changed; bookkeeping below never fails the run
	outcome, err := s.complete(ctx, run, changes, result, "")
	if err != nil {
		return nil, err
	}
	if err := s.recordState(ctx, run, state, changes, result); err != nil {
		contextLogger(ctx, s.logger).Warn("Sync state not advanced", zap.Error(err))
	}
	if err := s.sessions.Touch(ctx, run.restaurantID, run.platform, s.now()); err != nil {
		contextLogger(ctx, s.logger).Warn("Session last-used time not updated", zap.Error(err))
	}
	return outcome, nil
}

// syncConfig returns the item mapping of the key's credential. A session can
// exist without stored credentials, in which case local names are used.
func (s *SyncService) syncConfig(ctx context.Context, run *syncRun) (*delivery.SyncConfig, error) {
	cred, err := s.credentials.FindByKey(ctx, run.restaurantID, run.platform)
	if errors.Is(err, delivery.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return cred.SyncConfig, nil
}

// rejectSession ends the run without touching the portal. revoke marks the
// stored session so later runs fail fast.
func (s *SyncService) rejectSession(ctx context.Context, run *syncRun, reason string, revoke bool) (*delivery.SyncOutcome, error) {
	if revoke {
		if err := s.sessions.Revoke(ctx, run.restaurantID, run.platform); err != nil {
			return nil, fmt.Errorf("revoke session: %w", err)
		}
	}
	message := delivery.NewSessionInvalidError(run.platform, reason).Message
	run.log.Fail(message, s.now())
	if err := s.logs.Create(ctx, run.log); err != nil {
		return nil, fmt.Errorf("write sync log: %w", err)
	}
	outcome := delivery.FailedOutcome(run.platform, run.syncType, message)
	outcome.SyncLogID = &run.log.ID
	return &outcome, nil
}

func (s *SyncService) complete(ctx context.Context, run *syncRun, changes []delivery.ItemChange, result *delivery.SyncResult, message string) (*delivery.SyncOutcome, error) {
	run.log.Complete(result, s.now())
	if err := s.logs.Create(ctx, run.log); err != nil {
		return nil, fmt.Errorf("write sync log: %w", err)
	}

	if message == "" {
		message = fmt.Sprintf("synced %d of %d items to %s", result.ItemsSynced, len(changes), run.platform.DisplayName())
	}
	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	details := result.Details
	if details == nil {
		details = []delivery.ItemResult{}
	}
	return &delivery.SyncOutcome{
		Platform:    run.platform,
		SyncType:    run.syncType,
		Success:     result.Status() == delivery.SyncStatusSuccess,
		Status:      result.Status(),
		ItemsSynced: result.ItemsSynced,
		ItemsFailed: result.ItemsFailed,
		Errors:      errs,
		Details:     details,
		Message:     message,
		SyncLogID:   &run.log.ID,
	}, nil
}

// recordState advances the incremental baseline with the items that succeeded
func (s *SyncService) recordState(ctx context.Context, run *syncRun, state *delivery.SyncState, changes []delivery.ItemChange, result *delivery.SyncResult) error {
	if result.ItemsSynced == 0 {
		return nil
	}
	if state == nil {
		state = delivery.NewSyncState(run.restaurantID, run.platform)
	}
	succeeded := make(map[string]bool, len(result.Details))
	for _, d := range result.Details {
		if d.Success {
			succeeded[d.ItemID] = true
		}
	}
	now := s.now()
	for _, change := range changes {
		if succeeded[change.Item.ID] {
			state.Record(change, now)
		}
	}
	if err := s.states.Save(ctx, state); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}

// captureFailure uploads a screenshot of the page for debugging portal drift.
// Failures here are logged and never fail the sync.
func (s *SyncService) captureFailure(ctx context.Context, run *syncRun, page delivery.Page, cause error) {
	if s.artifacts == nil || (cause != nil && delivery.KindOf(cause) != delivery.KindNavigation) {
		return
	}
	png, err := page.Screenshot()
	if err != nil {
		contextLogger(ctx, s.logger).Debug("Failure screenshot unavailable", zap.Error(err))
		return
	}
	key := storage.ScreenshotKey(run.restaurantID, run.platform, opSync, s.now())
	if err := s.artifacts.Put(ctx, key, png, "image/png"); err != nil {
		contextLogger(ctx, s.logger).Warn("Failed to upload failure screenshot", zap.String("key", key), zap.Error(err))
		return
	}
	run.log.ArtifactKey = key
}

// finish writes the failed log for errored runs and emits audit, metrics and logs
func (s *SyncService) finish(ctx context.Context, run *syncRun, outcome *delivery.SyncOutcome, err error) {
	log := contextLogger(ctx, s.logger).With(zap.String("sync_type", run.syncType.String()))

	if err != nil && run.log.CompletedAt.IsZero() {
		run.log.Fail(delivery.UserMessage(err), s.now())
		if lerr := s.logs.Create(ctx, run.log); lerr != nil {
			log.Error("Failed to write sync log", zap.Error(lerr))
		}
	}

	status := run.log.Status
	detail := map[string]any{
		"sync_type":    run.syncType.String(),
		"status":       status.String(),
		"items_synced": run.log.ItemsSynced,
		"items_failed": run.log.ItemsFailed,
		"sync_log_id":  run.log.ID.String(),
	}
	auditOutcome := delivery.AuditOutcomeSuccess
	if outcome == nil || !outcome.Success {
		auditOutcome = delivery.AuditOutcomeFailure
	}
	if err != nil {
		detail = withError(detail, err)
		if kind := delivery.KindOf(err); kind != "" {
			s.metrics.RecordPortalError(ctx, run.platform.String(), string(kind))
		}
	}
	audit(ctx, s.audit, delivery.AuditEntry{
		RestaurantID: run.restaurantID,
		Platform:     run.platform,
		Action:       delivery.AuditSyncPlatform,
		Outcome:      auditOutcome,
		Detail:       detail,
		At:           s.now(),
	})

	duration := run.log.CompletedAt.Sub(run.log.StartedAt)
	s.metrics.RecordSync(ctx, run.platform.String(), run.syncType.String(), status.String(),
		run.log.ItemsSynced, run.log.ItemsFailed, duration)

	fields := []zap.Field{
		zap.String("status", status.String()),
		zap.Int("items_synced", run.log.ItemsSynced),
		zap.Int("items_failed", run.log.ItemsFailed),
		zap.Duration("duration", duration),
	}
	if err != nil {
		log.Warn("Sync failed", append(fields, zap.String("error_kind", string(delivery.KindOf(err))))...)
		return
	}
	log.Info("Sync finished", fields...)
}

// SyncAll syncs every platform with active credentials, at most
// Config.Concurrency at a time. A platform's failure is captured in its own
// outcome and never cancels its siblings.
func (s *SyncService) SyncAll(ctx context.Context, restaurantID string, syncType delivery.SyncType) (*delivery.BatchOutcome, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	if !syncType.IsValid() {
		return nil, delivery.NewValidationError("unsupported sync type %q", syncType)
	}

	creds, err := s.credentials.FindActiveByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, delivery.NewValidationError("no active delivery platform credentials configured")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "delivery_sync", "sync_all",
		telemetry.WithAttribute(telemetry.SpanAttrRestaurantID, restaurantID),
		telemetry.WithAttribute(telemetry.SpanAttrSyncType, syncType.String()),
	)
	defer span.End()

	outcomes := make([]delivery.SyncOutcome, len(creds))
	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i := range creds {
		platform := creds[i].Platform
		g.Go(func() error {
			outcomes[i] = s.syncOne(ctx, restaurantID, platform, syncType)
			return nil
		})
	}
	_ = g.Wait()

	batch := delivery.AggregateOutcomes(outcomes)
	outcome := delivery.AuditOutcomeSuccess
	if !batch.OverallSuccess {
		outcome = delivery.AuditOutcomeFailure
	}
	audit(ctx, s.audit, delivery.AuditEntry{
		RestaurantID: restaurantID,
		Action:       delivery.AuditSyncAll,
		Outcome:      outcome,
		Detail: map[string]any{
			"sync_type":       syncType.String(),
			"platforms":       len(outcomes),
			"overall_success": batch.OverallSuccess,
			"total_synced":    batch.TotalSynced,
			"total_failed":    batch.TotalFailed,
		},
		At: s.now(),
	})
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemsSynced, batch.TotalSynced,
		telemetry.SpanAttrItemsFailed, batch.TotalFailed,
	)
	return &batch, nil
}

// syncOne runs one platform of a fan-out and folds any error into its outcome
func (s *SyncService) syncOne(ctx context.Context, restaurantID string, platform delivery.Platform, syncType delivery.SyncType) delivery.SyncOutcome {
	outcome, err := s.SyncMenuToPlatform(ctx, restaurantID, platform, syncType)
	if err != nil {
		return delivery.FailedOutcome(platform, syncType, delivery.UserMessage(err))
	}
	return *outcome
}

// RunAutoSync syncs every credential with auto sync enabled using its
// configured sync type. It returns the number of keys attempted.
func (s *SyncService) RunAutoSync(ctx context.Context) (int, error) {
	creds, err := s.credentials.FindAutoSync(ctx)
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i := range creds {
		cred := creds[i]
		g.Go(func() error {
			outcome := s.syncOne(ctx, cred.RestaurantID, cred.Platform, cred.SyncConfig.EffectiveSyncType())
			if !outcome.Success {
				contextLogger(ctx, s.logger).Warn("Scheduled sync did not fully succeed",
					zap.String("restaurant_id", cred.RestaurantID),
					zap.String("platform", cred.Platform.String()),
					zap.String("message", outcome.Message),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(creds), ctx.Err()
}

// ListSyncLogs returns a page of sync history, newest first
func (s *SyncService) ListSyncLogs(ctx context.Context, filter delivery.SyncLogFilter) ([]delivery.SyncLog, int64, error) {
	if err := requireRestaurant(filter.RestaurantID); err != nil {
		return nil, 0, err
	}
	if filter.Platform != "" {
		if err := requirePlatform(filter.Platform); err != nil {
			return nil, 0, err
		}
	}
	filter.Normalize()
	return s.logs.List(ctx, filter)
}
