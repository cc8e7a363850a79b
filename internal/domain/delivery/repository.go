package delivery

import (
	"context"
	"time"
)

// CredentialRepository persists credentials. Create returns a
// CredentialConflictError when the key exists; Update and Delete return a
// NotFoundError when it does not.
type CredentialRepository interface {
	Create(ctx context.Context, cred *Credential) error
	FindByKey(ctx context.Context, restaurantID string, platform Platform) (*Credential, error)
	FindByRestaurant(ctx context.Context, restaurantID string) ([]Credential, error)
	FindActiveByRestaurant(ctx context.Context, restaurantID string) ([]Credential, error)
	FindAutoSync(ctx context.Context) ([]Credential, error)
	Update(ctx context.Context, cred *Credential) error
	Delete(ctx context.Context, restaurantID string, platform Platform) error
}

// SessionRepository persists sessions, one row per key
type SessionRepository interface {
	// Upsert replaces any existing session for the key in one statement
	Upsert(ctx context.Context, session *Session) error
	// FindByKey returns a NotFoundError when the key has no session
	FindByKey(ctx context.Context, restaurantID string, platform Platform) (*Session, error)
	Exists(ctx context.Context, restaurantID string, platform Platform) (bool, error)
	FindByRestaurant(ctx context.Context, restaurantID string) ([]Session, error)
	Touch(ctx context.Context, restaurantID string, platform Platform, usedAt time.Time) error
	MarkValidated(ctx context.Context, restaurantID string, platform Platform, at time.Time) error
	Revoke(ctx context.Context, restaurantID string, platform Platform) error
	// Delete reports whether a row was removed
	Delete(ctx context.Context, restaurantID string, platform Platform) (bool, error)
	// DeleteCreatedBefore sweeps one restaurant, or every restaurant when
	// restaurantID is empty
	DeleteCreatedBefore(ctx context.Context, restaurantID string, cutoff time.Time) (int64, error)
}

// SyncLogRepository is the append-only sync history
type SyncLogRepository interface {
	Create(ctx context.Context, log *SyncLog) error
	List(ctx context.Context, filter SyncLogFilter) ([]SyncLog, int64, error)
}

// SyncStateRepository stores the incremental sync baseline. Find returns
// (nil, nil) when nothing has been synced yet.
type SyncStateRepository interface {
	Find(ctx context.Context, restaurantID string, platform Platform) (*SyncState, error)
	Save(ctx context.Context, state *SyncState) error
}

// MenuReader reads the restaurant's own menu, owned by the menu domain
type MenuReader interface {
	Snapshot(ctx context.Context, restaurantID string) (*MenuSnapshot, error)
}

// KeyLocker provides one advisory lock per key. TryLock never blocks; it
// reports acquired=false when another holder owns the key. release is
// non-nil only when acquired.
type KeyLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// LockKey returns the exclusivity key for a (restaurant, platform) pair
func LockKey(restaurantID string, platform Platform) string {
	return restaurantID + ":" + string(platform)
}

// PasswordCipher seals passwords with authenticated encryption
type PasswordCipher interface {
	Seal(plaintext string, aad []byte) (string, error)
	Open(sealed string, aad []byte) (string, error)
}

// ArtifactStore keeps debugging artifacts such as failure screenshots
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}
