// Package browser adapts chromedp to the delivery.BrowserRuntime and
// delivery.Page ports. Every Open call gets its own browser (or, against a
// remote Chrome, its own isolated browser context) so cookies never leak
// between restaurants.
package browser
