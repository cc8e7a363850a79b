package browser

import (
	"math"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/deliverysync/backend/internal/domain/delivery"
)

// fromCDPCookies converts DevTools cookies. Session cookies (expires <= 0)
// keep a zero Expires.
func fromCDPCookies(in []*network.Cookie) []delivery.Cookie {
	out := make([]delivery.Cookie, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		cookie := delivery.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		}
		if c.Expires > 0 && !c.Session {
			sec, frac := math.Modf(c.Expires)
			cookie.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}
		out = append(out, cookie)
	}
	return out
}

// toCDPCookies converts stored cookies back to SetCookies parameters
func toCDPCookies(in []delivery.Cookie) []*network.CookieParam {
	out := make([]*network.CookieParam, 0, len(in))
	for _, c := range in {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != "" {
			param.SameSite = network.CookieSameSite(c.SameSite)
		}
		if !c.Expires.IsZero() {
			expires := cdp.TimeSinceEpoch(c.Expires)
			param.Expires = &expires
		}
		out = append(out, param)
	}
	return out
}
