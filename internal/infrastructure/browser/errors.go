package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork means the page could not be loaded (DNS, refused, reset, offline)
	ErrNetwork = errors.New("browser: network error")
	// ErrElementTimeout means an element did not appear within the action budget
	ErrElementTimeout = errors.New("browser: element did not appear in time")
	// ErrClosed means the page was used after its browser was torn down
	ErrClosed = errors.New("browser: page closed")
)

// classify maps a chromedp failure to one of the package sentinels. parent is
// the page's lifetime context and action the per-call context; when only the
// action budget ran out the element is missing, when parent ran out the whole
// operation timed out and its context error is returned as is.
func classify(parent, action context.Context, err error) error {
	if err == nil {
		return nil
	}
	if perr := parent.Err(); perr != nil {
		if errors.Is(perr, context.DeadlineExceeded) {
			return perr
		}
		return fmt.Errorf("%w: %v", ErrClosed, perr)
	}
	if action != nil && errors.Is(action.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrElementTimeout, err)
	}
	if isNetError(err) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return err
}

func isNetError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "net::ERR_") ||
		strings.Contains(msg, "websocket: close") ||
		strings.Contains(msg, "connection refused")
}
