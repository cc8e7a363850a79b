package delivery

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxSessionAge is how long a captured portal session may be used for sync.
const MaxSessionAge = 30 * 24 * time.Hour

// SessionState is the lifecycle state of a (restaurant, platform) session key
type SessionState string

const (
	SessionStateAbsent  SessionState = "absent"
	SessionStatePending SessionState = "pending_manual_login"
	SessionStateActive  SessionState = "active"
	SessionStateExpired SessionState = "expired"
	SessionStateRevoked SessionState = "revoked"
)

// Session is captured portal browser state. Blob is opaque outside the
// driver that produced it.
type Session struct {
	ID              uuid.UUID
	RestaurantID    string
	Platform        Platform
	Blob            []byte
	CreatedAt       time.Time
	LastUsedAt      time.Time
	LastValidatedAt *time.Time
	Revoked         bool
}

// NewSession builds a fresh session for a successful login
func NewSession(restaurantID string, platform Platform, blob []byte, now time.Time) (*Session, error) {
	if strings.TrimSpace(restaurantID) == "" {
		return nil, ErrAuthContext
	}
	if !platform.IsValid() {
		return nil, NewValidationError("unsupported platform %q", platform)
	}
	if len(blob) == 0 {
		return nil, NewValidationError("session state is empty")
	}
	return &Session{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		Platform:     platform,
		Blob:         blob,
		CreatedAt:    now,
		LastUsedAt:   now,
	}, nil
}

// Age returns how long ago the session was captured, never negative.
func (s *Session) Age(now time.Time) time.Duration {
	age := now.Sub(s.CreatedAt)
	if age < 0 {
		return 0
	}
	return age
}

// IsValid is derived: not revoked and younger than MaxSessionAge.
func (s *Session) IsValid(now time.Time) bool {
	return !s.Revoked && s.Age(now) < MaxSessionAge
}

// AgeInDays returns the whole days since capture
func (s *Session) AgeInDays(now time.Time) int {
	return int(s.Age(now) / (24 * time.Hour))
}

// State returns the lifecycle state at now
func (s *Session) State(now time.Time) SessionState {
	switch {
	case s.Revoked:
		return SessionStateRevoked
	case !s.IsValid(now):
		return SessionStateExpired
	default:
		return SessionStateActive
	}
}

// Info summarizes the session without its blob
func (s *Session) Info(now time.Time) SessionInfo {
	createdAt := s.CreatedAt
	lastUsedAt := s.LastUsedAt
	return SessionInfo{
		RestaurantID:    s.RestaurantID,
		Platform:        s.Platform,
		HasSession:      true,
		IsValid:         s.IsValid(now),
		State:           s.State(now),
		CreatedAt:       &createdAt,
		LastUsedAt:      &lastUsedAt,
		LastValidatedAt: s.LastValidatedAt,
		AgeInDays:       s.AgeInDays(now),
	}
}

// SessionInfo is the health summary of a session key
type SessionInfo struct {
	RestaurantID    string       `json:"restaurant_id"`
	Platform        Platform     `json:"platform"`
	HasSession      bool         `json:"has_session"`
	IsValid         bool         `json:"is_valid"`
	State           SessionState `json:"state"`
	CreatedAt       *time.Time   `json:"created_at,omitempty"`
	LastUsedAt      *time.Time   `json:"last_used_at,omitempty"`
	LastValidatedAt *time.Time   `json:"last_validated_at,omitempty"`
	AgeInDays       int          `json:"age_in_days"`
}

// AbsentSessionInfo describes a key with no stored session
func AbsentSessionInfo(restaurantID string, platform Platform) SessionInfo {
	return SessionInfo{
		RestaurantID: restaurantID,
		Platform:     platform,
		State:        SessionStateAbsent,
	}
}
