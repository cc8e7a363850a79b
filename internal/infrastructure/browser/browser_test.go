package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieConversionRoundTrip(t *testing.T) {
	in := []*network.Cookie{
		{Name: "sid", Value: "abc", Domain: ".doordash.com", Path: "/", Expires: 1767225600.5, HTTPOnly: true, Secure: true, SameSite: network.CookieSameSiteLax},
		{Name: "csrf", Value: "x", Domain: "merchant.doordash.com", Path: "/", Expires: -1, Session: true},
		nil,
	}

	cookies := fromCDPCookies(in)
	require.Len(t, cookies, 2)
	assert.Equal(t, time.Unix(1767225600, 5e8).UTC(), cookies[0].Expires)
	assert.Equal(t, "Lax", cookies[0].SameSite)
	assert.True(t, cookies[1].Expires.IsZero())

	params := toCDPCookies(cookies)
	require.Len(t, params, 2)
	assert.Equal(t, "sid", params[0].Name)
	assert.Equal(t, network.CookieSameSiteLax, params[0].SameSite)
	require.NotNil(t, params[0].Expires)
	assert.True(t, time.Time(*params[0].Expires).Equal(cookies[0].Expires))
	assert.Nil(t, params[1].Expires)
	assert.Empty(t, params[1].SameSite)
}

func TestClassify(t *testing.T) {
	live := context.Background()

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, classify(live, nil, nil))
	})

	t.Run("net errors", func(t *testing.T) {
		err := classify(live, nil, errors.New("page load error net::ERR_NAME_NOT_RESOLVED"))
		assert.ErrorIs(t, err, ErrNetwork)
	})

	t.Run("action budget exhausted", func(t *testing.T) {
		action, cancel := context.WithTimeout(live, time.Nanosecond)
		defer cancel()
		<-action.Done()

		err := classify(live, action, context.DeadlineExceeded)
		assert.ErrorIs(t, err, ErrElementTimeout)
	})

	t.Run("operation budget exhausted", func(t *testing.T) {
		parent, cancel := context.WithTimeout(live, time.Nanosecond)
		defer cancel()
		<-parent.Done()

		err := classify(parent, parent, errors.New("anything"))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, delivery.KindTimeout, delivery.KindOf(err))
	})

	t.Run("cancelled parent means closed", func(t *testing.T) {
		parent, cancel := context.WithCancel(live)
		cancel()

		err := classify(parent, nil, errors.New("anything"))
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		orig := errors.New("could not find node")
		assert.Same(t, orig, classify(live, nil, orig))
	})
}

func TestNewRuntimeDefaults(t *testing.T) {
	r := NewRuntime(Config{})
	assert.Equal(t, defaultActionTimeout, r.config.ActionTimeout)
	assert.Equal(t, 1280, r.config.WindowWidth)
	assert.NotNil(t, r.logger)
	assert.NotEmpty(t, r.execOptions(true))
}
