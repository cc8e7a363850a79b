package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Session operation names used for locks, metrics and spans
const (
	opInit   = "init"
	opTest   = "test"
	opDelete = "delete"
	opProbe  = "probe"
	opSync   = "sync"
)

// LoginSource supplies stored logins when InitSession is called without a password
type LoginSource interface {
	Login(ctx context.Context, restaurantID string, platform delivery.Platform) (*delivery.LoginCredentials, error)
}

// InitSessionInput is the input of InitSession. An empty password falls back
// to the stored credential for the key.
type InitSessionInput struct {
	Platform delivery.Platform
	Username string
	Password string
}

// SessionService is the browser session manager. It owns browser lifecycles
// for human-assisted logins and headless liveness checks, and serializes
// operations per (restaurant, platform).
type SessionService struct {
	sessions delivery.SessionRepository
	drivers  DriverRegistry
	browser  delivery.BrowserRuntime
	logins   LoginSource
	lock     keyLock
	audit    delivery.AuditLogger
	metrics  *telemetry.SyncMetrics
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionService creates a new SessionService. logins may be nil.
func NewSessionService(deps Dependencies, logins LoginSource, cfg Config) *SessionService {
	deps = deps.withDefaults()
	cfg = cfg.withDefaults()
	return &SessionService{
		sessions: deps.Sessions,
		drivers:  deps.Drivers,
		browser:  deps.Browser,
		logins:   logins,
		lock:     keyLock{locker: deps.Locker, ttl: cfg.LockTTL(), metrics: deps.Metrics},
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		config:   cfg,
		logger:   deps.Logger,
		now:      deps.Now,
	}
}

// InitSession opens a headed browser, pre-fills the login form and waits for
// a human to finish logging in (CAPTCHA, 2FA). The captured session replaces
// any earlier one for the key. Running out of the login budget returns a
// TimeoutError and leaves the store untouched; a rejected password is an
// unsuccessful result.
func (s *SessionService) InitSession(ctx context.Context, restaurantID string, input InitSessionInput) (result *ActionResult, err error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	platform := input.Platform
	drv, err := s.drivers.Get(platform)
	if err != nil {
		return nil, err
	}
	creds, err := s.resolveLogin(ctx, restaurantID, input)
	if err != nil {
		return nil, err
	}

	release, err := s.lock.acquire(ctx, restaurantID, platform, opInit)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, span := telemetry.StartServiceSpan(ctx, "delivery_session", opInit,
		telemetry.WithAttribute(telemetry.SpanAttrRestaurantID, restaurantID),
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, platform.String()),
	)
	defer span.End()
	ctx = scoped(ctx, restaurantID, platform)

	log := contextLogger(ctx, s.logger)
	var rejected error
	defer func() {
		failure := err
		if failure == nil {
			failure = rejected
		}
		s.metrics.RecordSessionOp(ctx, platform.String(), opInit, failure == nil)
		audit(ctx, s.audit, delivery.AuditEntry{
			RestaurantID: restaurantID,
			Platform:     platform,
			Action:       delivery.AuditSessionInit,
			Outcome:      outcomeOf(failure),
			Detail:       withError(map[string]any{"username": creds.Username}, failure),
			At:           s.now(),
		})
		if failure != nil {
			telemetry.RecordError(span, failure)
			log.Warn("Session initialization failed", zap.String("error_kind", string(delivery.KindOf(failure))))
		}
	}()

	loginCtx, cancel := context.WithTimeout(ctx, s.config.LoginWait)
	defer cancel()

	blob, err := s.login(loginCtx, drv, creds, delivery.PageOptions{Headed: true})
	if errors.Is(err, delivery.ErrLoginRejected) {
		rejected = err
		return &ActionResult{Success: false, Message: delivery.UserMessage(err)}, nil
	}
	if err != nil {
		return nil, budgetError(ctx, loginCtx, platform, "login", err)
	}

	session, err := delivery.NewSession(restaurantID, platform, blob, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	telemetry.SetOK(span)
	log.Info("Session initialized")
	return &ActionResult{
		Success: true,
		Message: fmt.Sprintf("%s session initialized", platform.DisplayName()),
	}, nil
}

// login is StartLogin, then IsAuthenticated polling, then CaptureSession
func (s *SessionService) login(ctx context.Context, drv delivery.PlatformDriver, creds delivery.LoginCredentials, opts delivery.PageOptions) ([]byte, error) {
	page, closePage, err := s.browser.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer closePage()

	if err := drv.StartLogin(ctx, page, creds); err != nil {
		return nil, err
	}
	if err := s.awaitLogin(ctx, drv, page); err != nil {
		return nil, err
	}
	return drv.CaptureSession(ctx, page)
}

// awaitLogin polls the driver until the page is authenticated or ctx ends.
// A rejected login ends the wait; other poll errors are transient while a
// human is still typing and are only logged.
func (s *SessionService) awaitLogin(ctx context.Context, drv delivery.PlatformDriver, page delivery.Page) error {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := drv.IsAuthenticated(ctx, page)
		if err == nil && ok {
			return nil
		}
		if errors.Is(err, delivery.ErrLoginRejected) {
			return err
		}
		if err != nil && ctx.Err() == nil {
			contextLogger(ctx, s.logger).Debug("Login poll failed", zap.String("error_kind", string(delivery.KindOf(err))))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *SessionService) resolveLogin(ctx context.Context, restaurantID string, input InitSessionInput) (delivery.LoginCredentials, error) {
	creds := delivery.LoginCredentials{
		Username: strings.TrimSpace(input.Username),
		Password: input.Password,
	}
	if creds.Password == "" && s.logins != nil {
		stored, err := s.logins.Login(ctx, restaurantID, input.Platform)
		switch {
		case err == nil:
			if creds.Username == "" || creds.Username == stored.Username {
				return *stored, nil
			}
		case !errors.Is(err, delivery.ErrNotFound):
			return delivery.LoginCredentials{}, err
		}
	}
	if creds.Username == "" {
		return delivery.LoginCredentials{}, delivery.NewValidationError("username is required")
	}
	return creds, nil
}

// GetSessionInfo summarizes the stored session for a key without touching the portal
func (s *SessionService) GetSessionInfo(ctx context.Context, restaurantID string, platform delivery.Platform) (*delivery.SessionInfo, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	if err := requirePlatform(platform); err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByKey(ctx, restaurantID, platform)
	if errors.Is(err, delivery.ErrNotFound) {
		info := delivery.AbsentSessionInfo(restaurantID, platform)
		return &info, nil
	}
	if err != nil {
		return nil, err
	}
	info := session.Info(s.now())
	return &info, nil
}

// TestSession loads the stored session into a headless browser and asks the
// portal whether it still accepts it. A rejected session is revoked.
func (s *SessionService) TestSession(ctx context.Context, restaurantID string, platform delivery.Platform) (result *SessionTestResult, err error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	drv, err := s.drivers.Get(platform)
	if err != nil {
		return nil, err
	}

	release, err := s.lock.acquire(ctx, restaurantID, platform, opTest)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, span := telemetry.StartServiceSpan(ctx, "delivery_session", opTest,
		telemetry.WithAttribute(telemetry.SpanAttrRestaurantID, restaurantID),
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, platform.String()),
	)
	defer span.End()
	ctx = scoped(ctx, restaurantID, platform)

	defer func() {
		valid := err == nil && result != nil && result.Valid
		s.metrics.RecordSessionOp(ctx, platform.String(), opTest, valid)
		detail := errorDetail(err)
		if result != nil {
			detail = map[string]any{"valid": result.Valid, "message": result.Message}
		}
		audit(ctx, s.audit, delivery.AuditEntry{
			RestaurantID: restaurantID,
			Platform:     platform,
			Action:       delivery.AuditSessionTest,
			Outcome:      outcomeOf(err),
			Detail:       detail,
			At:           s.now(),
		})
		if err != nil {
			telemetry.RecordError(span, err)
		}
	}()

	session, err := s.sessions.FindByKey(ctx, restaurantID, platform)
	if errors.Is(err, delivery.ErrNotFound) {
		return &SessionTestResult{
			Valid:   false,
			Message: delivery.NewSessionInvalidError(platform, "not found").Message,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !session.IsValid(now) {
		return &SessionTestResult{
			Valid:   false,
			Message: delivery.NewSessionInvalidError(platform, "is "+string(session.State(now))).Message,
		}, nil
	}

	testCtx, cancel := context.WithTimeout(ctx, s.config.TestTimeout)
	defer cancel()

	ok, err := s.validate(testCtx, drv, session.Blob)
	if err != nil && !errors.Is(err, delivery.ErrSessionInvalid) {
		return nil, budgetError(ctx, testCtx, platform, "session test", err)
	}
	if err != nil || !ok {
		if rerr := s.sessions.Revoke(ctx, restaurantID, platform); rerr != nil {
			return nil, fmt.Errorf("revoke session: %w", rerr)
		}
		contextLogger(ctx, s.logger).Info("Session rejected by portal, revoked",
			zap.String("restaurant_id", restaurantID),
			zap.String("platform", platform.String()),
		)
		return &SessionTestResult{
			Valid:   false,
			Message: delivery.NewSessionInvalidError(platform, "was rejected by the portal").Message,
		}, nil
	}

	if err := s.sessions.MarkValidated(ctx, restaurantID, platform, s.now()); err != nil {
		return nil, fmt.Errorf("mark session validated: %w", err)
	}
	telemetry.SetOK(span)
	return &SessionTestResult{
		Valid:   true,
		Message: fmt.Sprintf("%s session is valid", platform.DisplayName()),
	}, nil
}

func (s *SessionService) validate(ctx context.Context, drv delivery.PlatformDriver, blob []byte) (bool, error) {
	page, closePage, err := s.browser.Open(ctx, delivery.PageOptions{})
	if err != nil {
		return false, err
	}
	defer closePage()
	return drv.ValidateSession(ctx, page, blob)
}

// SessionExists reports whether a session is stored for the key, valid or not
func (s *SessionService) SessionExists(ctx context.Context, restaurantID string, platform delivery.Platform) (bool, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return false, err
	}
	if err := requirePlatform(platform); err != nil {
		return false, err
	}
	return s.sessions.Exists(ctx, restaurantID, platform)
}

// DeleteSession removes the session for a key. Deleting an absent session succeeds.
func (s *SessionService) DeleteSession(ctx context.Context, restaurantID string, platform delivery.Platform) (*ActionResult, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	if err := requirePlatform(platform); err != nil {
		return nil, err
	}

	release, err := s.lock.acquire(ctx, restaurantID, platform, opDelete)
	if err != nil {
		return nil, err
	}
	defer release()

	removed, err := s.sessions.Delete(ctx, restaurantID, platform)
	audit(ctx, s.audit, delivery.AuditEntry{
		RestaurantID: restaurantID,
		Platform:     platform,
		Action:       delivery.AuditSessionDelete,
		Outcome:      outcomeOf(err),
		Detail:       withError(map[string]any{"removed": removed}, err),
		At:           s.now(),
	})
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("%s session deleted", platform.DisplayName())
	if !removed {
		message = fmt.Sprintf("no %s session to delete", platform.DisplayName())
	}
	return &ActionResult{Success: true, Message: message}, nil
}

// ListSessions returns the health summary of every stored session of a restaurant
func (s *SessionService) ListSessions(ctx context.Context, restaurantID string) ([]delivery.SessionInfo, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.FindByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	infos := make([]delivery.SessionInfo, 0, len(sessions))
	for i := range sessions {
		infos = append(infos, sessions[i].Info(now))
	}
	return infos, nil
}

// CleanupExpiredSessions deletes the restaurant's sessions captured more than
// maxAgeDays ago and returns how many were removed. Running it twice removes
// nothing the second time.
func (s *SessionService) CleanupExpiredSessions(ctx context.Context, restaurantID string, maxAgeDays int) (int64, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return 0, err
	}
	return s.cleanup(ctx, restaurantID, maxAgeDays)
}

// CleanupExpired sweeps every restaurant with the configured age for the
// scheduler
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.cleanup(ctx, "", s.config.MaxAgeDays)
}

func (s *SessionService) cleanup(ctx context.Context, restaurantID string, maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = s.config.MaxAgeDays
	}
	cutoff := s.now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)

	removed, err := s.sessions.DeleteCreatedBefore(ctx, restaurantID, cutoff)
	audit(ctx, s.audit, delivery.AuditEntry{
		RestaurantID: restaurantID,
		Action:       delivery.AuditSessionCleanup,
		Outcome:      outcomeOf(err),
		Detail:       withError(map[string]any{"max_age_days": maxAgeDays, "removed": removed}, err),
		At:           s.now(),
	})
	if err != nil {
		return 0, err
	}
	s.metrics.RecordSessionsCleaned(ctx, removed)
	return removed, nil
}

// Probe performs a headless login with the given credentials and discards
// the result. A portal showing its login error is reported as unsuccessful
// right away; a login that needs human help (CAPTCHA) runs out the probe
// budget instead.
func (s *SessionService) Probe(ctx context.Context, platform delivery.Platform, creds delivery.LoginCredentials) (*ActionResult, error) {
	drv, err := s.drivers.Get(platform)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "delivery_session", opProbe,
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, platform.String()),
	)
	defer span.End()
	ctx = scoped(ctx, "", platform)

	probeCtx, cancel := context.WithTimeout(ctx, s.config.ProbeTimeout)
	defer cancel()

	err = s.probe(probeCtx, drv, creds)
	s.metrics.RecordSessionOp(ctx, platform.String(), opProbe, err == nil)
	if errors.Is(err, delivery.ErrLoginRejected) {
		telemetry.RecordError(span, err)
		return &ActionResult{Success: false, Message: delivery.UserMessage(err)}, nil
	}
	if err != nil {
		err = budgetError(ctx, probeCtx, platform, "test login", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return &ActionResult{
		Success: true,
		Message: fmt.Sprintf("%s accepted the credentials", platform.DisplayName()),
	}, nil
}

func (s *SessionService) probe(ctx context.Context, drv delivery.PlatformDriver, creds delivery.LoginCredentials) error {
	page, closePage, err := s.browser.Open(ctx, delivery.PageOptions{})
	if err != nil {
		return err
	}
	defer closePage()

	if err := drv.StartLogin(ctx, page, creds); err != nil {
		return err
	}
	return s.awaitLogin(ctx, drv, page)
}
