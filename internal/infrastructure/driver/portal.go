package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/browser"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Selectors locate the portal pages and controls a driver uses. Item-scoped
// selectors are fmt templates that receive the item's portal name quoted
// for use inside a CSS attribute selector.
type Selectors struct {
	LoginURL string
	HomeURL  string
	MenuURL  string

	UsernameInput string
	PasswordInput string
	SubmitButton  string
	// AuthenticatedMarker is present only after login
	AuthenticatedMarker string
	// LoginMarker is present on the login page, which a rejected session lands on
	LoginMarker string
	// LoginError is the form message shown for a wrong username or password
	LoginError string

	SearchInput string
	// ItemRow is a template such as `[data-item-name=%s]`
	ItemRow          string
	DescriptionInput string
	PriceInput       string
	InStockOption    string
	OutOfStockOption string
	SaveButton       string
	SaveConfirmation string
}

// Options configures a portal driver
type Options struct {
	// Selectors override the driver defaults field by field
	Selectors Selectors
	// PageTimeout bounds waits for page-level markers
	PageTimeout time.Duration
	// ActionsPerSecond throttles item edits; zero disables throttling
	ActionsPerSecond float64
	Logger           *zap.Logger
	Now              func() time.Time
}

// portal implements the shared login, session and item-edit flow. Platform
// drivers embed it with their own selectors.
type portal struct {
	platform    delivery.Platform
	sel         Selectors
	pageTimeout time.Duration
	limiter     *rate.Limiter
	logger      *zap.Logger
	now         func() time.Time
}

func newPortal(platform delivery.Platform, defaults Selectors, opts Options) *portal {
	limit := rate.Inf
	if opts.ActionsPerSecond > 0 {
		limit = rate.Limit(opts.ActionsPerSecond)
	}
	if opts.PageTimeout == 0 {
		opts.PageTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &portal{
		platform:    platform,
		sel:         mergeSelectors(defaults, opts.Selectors),
		pageTimeout: opts.PageTimeout,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      opts.Logger.With(zap.String("platform", string(platform))),
		now:         opts.Now,
	}
}

// Platform returns the portal this driver serves
func (p *portal) Platform() delivery.Platform {
	return p.platform
}

// StartLogin opens the login page, fills the form and submits it when a
// password is known. MFA and CAPTCHA are left to the human.
func (p *portal) StartLogin(ctx context.Context, page delivery.Page, creds delivery.LoginCredentials) error {
	loginURL := p.sel.LoginURL
	if creds.PortalURL != "" {
		loginURL = creds.PortalURL
	}
	if err := page.Navigate(loginURL); err != nil {
		return p.wrap("open login page", err)
	}
	if err := page.WaitVisible(p.sel.UsernameInput, p.pageTimeout); err != nil {
		return p.wrap("find login form", err)
	}
	if err := page.Fill(p.sel.UsernameInput, creds.Username); err != nil {
		return p.wrap("fill username", err)
	}
	if creds.Password == "" {
		return nil
	}
	// some portals show the password field only after the username step
	if err := page.WaitVisible(p.sel.PasswordInput, p.pageTimeout); err != nil {
		if clickErr := page.Click(p.sel.SubmitButton); clickErr != nil {
			return p.wrap("submit username", clickErr)
		}
		if err := page.WaitVisible(p.sel.PasswordInput, p.pageTimeout); err != nil {
			return p.wrap("find password field", err)
		}
	}
	if err := page.Fill(p.sel.PasswordInput, creds.Password); err != nil {
		return p.wrap("fill password", err)
	}
	if err := page.Click(p.sel.SubmitButton); err != nil {
		return p.wrap("submit login", err)
	}
	return ctx.Err()
}

// IsAuthenticated checks for the post-login marker without waiting. A login
// form showing its error message is reported as a LoginRejectedError.
func (p *portal) IsAuthenticated(ctx context.Context, page delivery.Page) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, p.wrap("check login", err)
	}
	ok, err := page.Exists(p.sel.AuthenticatedMarker)
	if err != nil {
		return false, p.wrap("check login", err)
	}
	if ok || p.sel.LoginError == "" {
		return ok, nil
	}
	if rejected, err := page.Exists(p.sel.LoginError); err == nil && rejected {
		return false, delivery.NewLoginRejectedError(p.platform)
	}
	return false, nil
}

// CaptureSession snapshots cookies and storage into a blob
func (p *portal) CaptureSession(ctx context.Context, page delivery.Page) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, p.wrap("capture session", err)
	}
	state, err := page.Snapshot()
	if err != nil {
		return nil, p.wrap("capture session", err)
	}
	return encodeBlob(p.platform, state, p.now())
}

// ValidateSession restores blob and opens the home page. It returns false
// when the portal sends the browser back to its login page.
func (p *portal) ValidateSession(ctx context.Context, page delivery.Page, blob []byte) (bool, error) {
	err := p.restore(ctx, page, blob, p.sel.HomeURL)
	if errors.Is(err, delivery.ErrSessionInvalid) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// restore loads blob into page, navigates to target and confirms the session
// is still accepted
func (p *portal) restore(ctx context.Context, page delivery.Page, blob []byte, target string) error {
	state, err := decodeBlob(p.platform, blob)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return p.wrap("restore session", err)
	}
	if err := page.Restore(state); err != nil {
		return p.wrap("restore session", err)
	}
	if err := page.Navigate(target); err != nil {
		return p.wrap("open portal", err)
	}
	return p.confirmAuthenticated(page)
}

func (p *portal) confirmAuthenticated(page delivery.Page) error {
	waitErr := page.WaitVisible(p.sel.AuthenticatedMarker, p.pageTimeout)
	if waitErr == nil {
		return nil
	}
	if !errors.Is(waitErr, browser.ErrElementTimeout) {
		return p.wrap("open portal", waitErr)
	}
	if p.onLoginPage(page) {
		return delivery.NewSessionInvalidError(p.platform, "was rejected by the portal")
	}
	return p.wrap("open portal", waitErr)
}

func (p *portal) onLoginPage(page delivery.Page) bool {
	if found, err := page.Exists(p.sel.LoginMarker); err == nil && found {
		return true
	}
	if u, err := page.URL(); err == nil && strings.Contains(strings.ToLower(u), "login") {
		return true
	}
	return false
}

// SyncMenu restores the session on the menu page and applies every change.
// Item failures are recorded and do not stop the run; a rejected session or
// an exhausted budget aborts it.
func (p *portal) SyncMenu(ctx context.Context, page delivery.Page, blob []byte, req delivery.SyncRequest) (*delivery.SyncResult, error) {
	if err := p.restore(ctx, page, blob, p.sel.MenuURL); err != nil {
		return nil, err
	}

	result := &delivery.SyncResult{Errors: []string{}, Details: make([]delivery.ItemResult, 0, len(req.Changes))}
	for _, change := range req.Changes {
		item := p.applyWithRetry(ctx, page, change, req.Retry)
		if err := ctx.Err(); err != nil {
			return nil, p.wrap("sync menu", err)
		}
		if item.abort != nil {
			return nil, item.abort
		}
		result.Record(item.ItemResult)
	}
	return result, nil
}

type itemOutcome struct {
	delivery.ItemResult
	abort error
}

// applyWithRetry retries NetworkError up to policy.MaxAttempts and
// DriverNavigationError up to policy.NavigationAttempts with exponential backoff
func (p *portal) applyWithRetry(ctx context.Context, page delivery.Page, change delivery.ItemChange, policy delivery.RetryPolicy) itemOutcome {
	if policy.MaxAttempts < 1 {
		policy = delivery.DefaultRetryPolicy()
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialInterval
	exp.MaxInterval = policy.MaxInterval
	exp.MaxElapsedTime = 0

	var (
		attempts      int
		networkErrs   int
		navigationErr int
	)
	operation := func() error {
		attempts++
		if attempts > 1 {
			// start from a clean menu page after a failed edit
			if err := page.Navigate(p.sel.MenuURL); err != nil {
				err = p.wrap("reopen menu", err)
				return p.retryable(err, &networkErrs, &navigationErr, policy)
			}
		}
		err := p.applyItem(ctx, page, change)
		if err == nil {
			return nil
		}
		return p.retryable(err, &networkErrs, &navigationErr, policy)
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Warn("retrying item",
			zap.String("item_id", change.Item.ID),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(exp, ctx), notify)

	out := itemOutcome{ItemResult: delivery.ItemResult{
		ItemID:   change.Item.ID,
		Name:     change.PortalName,
		Success:  err == nil,
		Attempts: attempts,
	}}
	if err != nil {
		if errors.Is(err, delivery.ErrSessionInvalid) {
			out.abort = err
		}
		out.Error = delivery.UserMessage(err)
	}
	return out
}

// retryable marks err permanent once its kind is exhausted
func (p *portal) retryable(err error, networkErrs, navigationErrs *int, policy delivery.RetryPolicy) error {
	switch delivery.KindOf(err) {
	case delivery.KindNetwork:
		*networkErrs++
		if *networkErrs < policy.MaxAttempts {
			return err
		}
	case delivery.KindNavigation:
		*navigationErrs++
		if *navigationErrs < policy.NavigationAttempts {
			return err
		}
	}
	return backoff.Permanent(err)
}

// applyItem performs one item edit on the menu page
func (p *portal) applyItem(ctx context.Context, page delivery.Page, change delivery.ItemChange) error {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.wrap("throttle", ctxErr)
		}
		// the next slot lies past the deadline
		return delivery.NewTimeoutError(p.platform, "menu sync")
	}

	if p.sel.SearchInput != "" {
		if err := page.Fill(p.sel.SearchInput, change.PortalName); err != nil {
			return p.wrap("search item", err)
		}
	}
	row := p.itemSelector(change.PortalName)
	if err := page.WaitVisible(row, p.pageTimeout); err != nil {
		if errors.Is(err, browser.ErrElementTimeout) && p.onLoginPage(page) {
			return delivery.NewSessionInvalidError(p.platform, "was rejected by the portal")
		}
		return p.wrap("find item "+change.PortalName, err)
	}
	if err := page.Click(row); err != nil {
		return p.wrap("open item "+change.PortalName, err)
	}

	if change.Has(delivery.FieldDetails) && change.Item.Description != "" {
		if err := page.Fill(p.sel.DescriptionInput, change.Item.Description); err != nil {
			return p.wrap("set description", err)
		}
	}
	if change.Has(delivery.FieldPrice) {
		if err := page.Fill(p.sel.PriceInput, change.Item.Price.StringFixed(2)); err != nil {
			return p.wrap("set price", err)
		}
	}
	if change.Has(delivery.FieldStock) {
		option := p.sel.OutOfStockOption
		if change.Item.InStock {
			option = p.sel.InStockOption
		}
		if err := page.Click(option); err != nil {
			return p.wrap("set availability", err)
		}
	}

	if err := page.Click(p.sel.SaveButton); err != nil {
		return p.wrap("save item", err)
	}
	if err := page.WaitVisible(p.sel.SaveConfirmation, p.pageTimeout); err != nil {
		return p.wrap("confirm save", err)
	}
	return nil
}

func (p *portal) itemSelector(name string) string {
	return fmt.Sprintf(p.sel.ItemRow, cssString(name))
}

// wrap translates a page failure into the delivery error taxonomy
func (p *portal) wrap(step string, err error) error {
	if err == nil {
		return nil
	}
	var de *delivery.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, browser.ErrNetwork):
		return delivery.NewNetworkError(p.platform, err)
	case errors.Is(err, context.DeadlineExceeded):
		return delivery.NewTimeoutError(p.platform, step)
	case errors.Is(err, context.Canceled), errors.Is(err, browser.ErrClosed):
		return fmt.Errorf("%s: %w", step, err)
	default:
		return delivery.NewNavigationError(p.platform, step, err)
	}
}

// cssString quotes s as a CSS string literal
func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}

func mergeSelectors(defaults, override Selectors) Selectors {
	pick := func(d, o string) string {
		if o != "" {
			return o
		}
		return d
	}
	return Selectors{
		LoginURL:            pick(defaults.LoginURL, override.LoginURL),
		HomeURL:             pick(defaults.HomeURL, override.HomeURL),
		MenuURL:             pick(defaults.MenuURL, override.MenuURL),
		UsernameInput:       pick(defaults.UsernameInput, override.UsernameInput),
		PasswordInput:       pick(defaults.PasswordInput, override.PasswordInput),
		SubmitButton:        pick(defaults.SubmitButton, override.SubmitButton),
		AuthenticatedMarker: pick(defaults.AuthenticatedMarker, override.AuthenticatedMarker),
		LoginMarker:         pick(defaults.LoginMarker, override.LoginMarker),
		LoginError:          pick(defaults.LoginError, override.LoginError),
		SearchInput:         pick(defaults.SearchInput, override.SearchInput),
		ItemRow:             pick(defaults.ItemRow, override.ItemRow),
		DescriptionInput:    pick(defaults.DescriptionInput, override.DescriptionInput),
		PriceInput:          pick(defaults.PriceInput, override.PriceInput),
		InStockOption:       pick(defaults.InStockOption, override.InStockOption),
		OutOfStockOption:    pick(defaults.OutOfStockOption, override.OutOfStockOption),
		SaveButton:          pick(defaults.SaveButton, override.SaveButton),
		SaveConfirmation:    pick(defaults.SaveConfirmation, override.SaveConfirmation),
	}
}
