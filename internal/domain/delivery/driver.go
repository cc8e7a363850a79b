package delivery

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// PlatformDriver
// ---------------------------------------------------------------------------

// PlatformDriver is the capability set every portal integration implements.
// Drivers own the session blob format; callers only store and hand it back.
//
// Drivers translate vendor failures into NetworkError, DriverNavigationError
// or SessionInvalidError (see errors.go).
type PlatformDriver interface {
	// Platform returns the portal this driver serves
	Platform() Platform

	// StartLogin opens the login page and pre-fills the form. It does not wait
	// for the login to finish; a human may still need to solve a CAPTCHA.
	StartLogin(ctx context.Context, page Page, creds LoginCredentials) error

	// IsAuthenticated reports whether the page has reached the post-login state
	IsAuthenticated(ctx context.Context, page Page) (bool, error)

	// CaptureSession serializes the authenticated browser state into a blob
	CaptureSession(ctx context.Context, page Page) ([]byte, error)

	// ValidateSession restores blob into page and checks the portal still accepts it
	ValidateSession(ctx context.Context, page Page, blob []byte) (bool, error)

	// SyncMenu restores blob into page and applies the requested item changes
	SyncMenu(ctx context.Context, page Page, blob []byte, req SyncRequest) (*SyncResult, error)
}

// ---------------------------------------------------------------------------
// Browser ports
// ---------------------------------------------------------------------------

// Page is a single browser tab. Its lifetime is bound to the context it was
// opened with.
type Page interface {
	Navigate(url string) error
	URL() (string, error)
	Click(selector string) error
	Fill(selector, value string) error
	WaitVisible(selector string, timeout time.Duration) error
	Exists(selector string) (bool, error)
	Text(selector string) (string, error)
	Snapshot() (*BrowserState, error)
	Restore(state *BrowserState) error
	Screenshot() ([]byte, error)
}

// PageOptions configures a browser page
type PageOptions struct {
	// Headed opens a visible window for human-assisted login
	Headed bool
}

// BrowserRuntime opens pages. The returned close func tears the browser down
// and must be called on every path.
type BrowserRuntime interface {
	Open(ctx context.Context, opts PageOptions) (Page, func(), error)
}

// BrowserState is cookies plus web storage for one origin
type BrowserState struct {
	Origin       string            `json:"origin"`
	Cookies      []Cookie          `json:"cookies"`
	LocalStorage map[string]string `json:"local_storage,omitempty"`
}

// Cookie is a browser cookie independent of the automation library
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	HTTPOnly bool      `json:"http_only"`
	Secure   bool      `json:"secure"`
	SameSite string    `json:"same_site,omitempty"`
}
