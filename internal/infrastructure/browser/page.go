package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/deliverysync/backend/internal/domain/delivery"
)

// Page implements delivery.Page on one chromedp tab
type Page struct {
	ctx           context.Context
	parent        context.Context
	actionTimeout time.Duration
}

// run executes actions under the page context without an element budget
func (p *Page) run(actions ...chromedp.Action) error {
	if err := p.ctx.Err(); err != nil {
		return classify(p.parent, nil, err)
	}
	return classify(p.parent, nil, chromedp.Run(p.ctx, actions...))
}

// runBounded executes actions under a child context limited to timeout
func (p *Page) runBounded(timeout time.Duration, actions ...chromedp.Action) error {
	if err := p.ctx.Err(); err != nil {
		return classify(p.parent, nil, err)
	}
	actionCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	return classify(p.parent, actionCtx, chromedp.Run(actionCtx, actions...))
}

// Navigate loads url and waits for the load event
func (p *Page) Navigate(url string) error {
	return p.run(chromedp.Navigate(url))
}

// URL returns the current location
func (p *Page) URL() (string, error) {
	var loc string
	if err := p.run(chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Click waits for selector to be visible and clicks it
func (p *Page) Click(selector string) error {
	return p.runBounded(p.actionTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// Fill replaces the value of an input. Keys are sent one by one so
// framework-controlled inputs see the change.
func (p *Page) Fill(selector, value string) error {
	return p.runBounded(p.actionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// WaitVisible waits up to timeout for selector to become visible
func (p *Page) WaitVisible(selector string, timeout time.Duration) error {
	return p.runBounded(timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Exists reports whether selector matches an element right now, without waiting
func (p *Page) Exists(selector string) (bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	var found bool
	if err := p.run(chromedp.Evaluate(fmt.Sprintf(`document.querySelector(%s) !== null`, quoted), &found)); err != nil {
		return false, err
	}
	return found, nil
}

// Text returns the visible text of the first element matching selector
func (p *Page) Text(selector string) (string, error) {
	var text string
	if err := p.runBounded(p.actionTimeout, chromedp.Text(selector, &text, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return "", err
	}
	return text, nil
}

// Snapshot captures every cookie of the browser plus localStorage of the
// current origin
func (p *Page) Snapshot() (*delivery.BrowserState, error) {
	var (
		origin  string
		storage map[string]string
		cookies []*network.Cookie
	)
	err := p.run(
		chromedp.Evaluate(`window.location.origin`, &origin),
		chromedp.Evaluate(`Object.fromEntries(Object.entries(window.localStorage))`, &storage),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return &delivery.BrowserState{
		Origin:       origin,
		Cookies:      fromCDPCookies(cookies),
		LocalStorage: storage,
	}, nil
}

// Restore loads cookies, then opens the origin and writes localStorage
func (p *Page) Restore(state *delivery.BrowserState) error {
	if state == nil {
		return nil
	}
	actions := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := toCDPCookies(state.Cookies)
			if len(params) == 0 {
				return nil
			}
			return network.SetCookies(params).Do(ctx)
		}),
	}
	if state.Origin != "" && len(state.LocalStorage) > 0 {
		data, err := json.Marshal(state.LocalStorage)
		if err != nil {
			return err
		}
		script := fmt.Sprintf(`(function(items){for (const k in items) { window.localStorage.setItem(k, items[k]); } return true;})(%s)`, data)
		var ok bool
		actions = append(actions,
			chromedp.Navigate(state.Origin),
			chromedp.Evaluate(script, &ok),
		)
	}
	return p.run(actions...)
}

// Screenshot captures the viewport as PNG
func (p *Page) Screenshot() ([]byte, error) {
	var buf []byte
	if err := p.run(chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

var _ delivery.Page = (*Page)(nil)
