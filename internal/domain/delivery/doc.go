// Package delivery contains the delivery-platform automation bounded context.
// It models how a restaurant's menu reaches third-party merchant portals that
// only expose a browser UI.
//
// Key concepts:
//   - Credential: encrypted portal login for one (restaurant, platform) key
//   - Session: opaque authenticated browser state captured after a human-assisted login
//   - PlatformDriver: port implemented once per portal (DoorDash, Uber Eats)
//   - SyncLog: append-only record of one sync attempt
//
// Design Pattern: Ports & Adapters
//   - Ports (PlatformDriver, Page, BrowserRuntime, repositories) are defined here
//   - Adapters (chromedp, gorm, redis) live in the infrastructure layer
package delivery
