package driver

import (
	"encoding/json"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
)

const blobVersion = 1

// sessionBlob is the stored form of a captured login. Only drivers read it.
type sessionBlob struct {
	Version    int                   `json:"v"`
	Platform   delivery.Platform     `json:"platform"`
	CapturedAt time.Time             `json:"captured_at"`
	State      delivery.BrowserState `json:"state"`
}

func encodeBlob(platform delivery.Platform, state *delivery.BrowserState, at time.Time) ([]byte, error) {
	if state == nil || len(state.Cookies) == 0 {
		return nil, delivery.NewSessionInvalidError(platform, "has no cookies to capture")
	}
	return json.Marshal(sessionBlob{
		Version:    blobVersion,
		Platform:   platform,
		CapturedAt: at.UTC(),
		State:      *state,
	})
}

func decodeBlob(platform delivery.Platform, blob []byte) (*delivery.BrowserState, error) {
	var b sessionBlob
	if err := json.Unmarshal(blob, &b); err != nil {
		return nil, delivery.NewSessionInvalidError(platform, "is unreadable")
	}
	if b.Version != blobVersion {
		return nil, delivery.NewSessionInvalidError(platform, "was captured by an older version")
	}
	if b.Platform != platform {
		return nil, delivery.NewSessionInvalidError(platform, "belongs to another platform")
	}
	return &b.State, nil
}
