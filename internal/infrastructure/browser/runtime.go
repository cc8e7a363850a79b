package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/deliverysync/backend/internal/domain/delivery"
	"go.uber.org/zap"
)

const defaultActionTimeout = 15 * time.Second

// Config contains configuration for the chromedp runtime
type Config struct {
	// RemoteURL is the DevTools websocket of a shared headless Chrome.
	// Headed pages always launch a local browser so a human can see them.
	RemoteURL string
	// ExecPath overrides the Chrome binary
	ExecPath string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox  bool
	DisableGPU bool
	// WindowWidth and WindowHeight size headed windows
	WindowWidth  int
	WindowHeight int
	UserAgent    string
	// ActionTimeout bounds single element actions such as Click and Text
	ActionTimeout time.Duration
	Logger        *zap.Logger
}

// Runtime implements delivery.BrowserRuntime with chromedp
type Runtime struct {
	config Config
	logger *zap.Logger
}

// NewRuntime creates a chromedp runtime
func NewRuntime(cfg Config) *Runtime {
	if cfg.ActionTimeout == 0 {
		cfg.ActionTimeout = defaultActionTimeout
	}
	if cfg.WindowWidth == 0 {
		cfg.WindowWidth = 1280
	}
	if cfg.WindowHeight == 0 {
		cfg.WindowHeight = 900
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{config: cfg, logger: logger}
}

// Open starts a browser bound to ctx and returns a page on a blank tab. The
// close func is idempotent and waits for the browser to exit.
func (r *Runtime) Open(ctx context.Context, opts delivery.PageOptions) (delivery.Page, func(), error) {
	var (
		tabCtx  context.Context
		closers []func()
	)

	logf := chromedp.WithLogf(func(format string, args ...any) {
		r.logger.Debug(fmt.Sprintf(format, args...))
	})

	if r.config.RemoteURL != "" && !opts.Headed {
		allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, r.config.RemoteURL)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx, logf)
		// a fresh browser context keeps this page's cookies away from other pages
		pageCtx, pageCancel := chromedp.NewContext(browserCtx, chromedp.WithNewBrowserContext())
		tabCtx = pageCtx
		closers = append(closers, pageCancel, browserCancel, allocCancel)
	} else {
		allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, r.execOptions(opts.Headed)...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx, logf)
		tabCtx = browserCtx
		closers = append(closers, func() {
			// graceful close first; if ctx already expired this fails fast and
			// allocCancel kills the process
			_ = chromedp.Cancel(browserCtx)
			browserCancel()
		}, allocCancel)
	}

	var once sync.Once
	closeFn := func() {
		once.Do(func() {
			for _, c := range closers {
				c()
			}
			r.logger.Debug("browser closed", zap.Bool("headed", opts.Headed))
		})
	}

	// starts the browser and the first tab
	if err := chromedp.Run(tabCtx); err != nil {
		closeFn()
		return nil, nil, classify(ctx, nil, err)
	}

	r.logger.Debug("browser opened", zap.Bool("headed", opts.Headed), zap.Bool("remote", r.config.RemoteURL != "" && !opts.Headed))
	return &Page{ctx: tabCtx, parent: ctx, actionTimeout: r.config.ActionTimeout}, closeFn, nil
}

func (r *Runtime) execOptions(headed bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !headed),
		chromedp.Flag("disable-gpu", r.config.DisableGPU),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.WindowSize(r.config.WindowWidth, r.config.WindowHeight),
	)
	if r.config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if r.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.config.ExecPath))
	}
	if r.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.config.UserAgent))
	}
	return opts
}

var _ delivery.BrowserRuntime = (*Runtime)(nil)
