package delivery

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credential is a stored portal login for one (restaurant, platform) key.
// The password is only ever held sealed.
type Credential struct {
	ID                uuid.UUID
	RestaurantID      string
	Platform          Platform
	Username          string
	EncryptedPassword string
	PortalURL         string
	SyncConfig        *SyncConfig
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SyncConfig holds per-credential sync preferences
type SyncConfig struct {
	// AutoSync enables the scheduled sync for this key
	AutoSync bool `json:"auto_sync"`
	// AutoSyncType is the sync type used by the scheduler (default full_sync)
	AutoSyncType SyncType `json:"auto_sync_type,omitempty"`
	// ItemMapping maps local menu item IDs to the item name shown on the portal
	ItemMapping map[string]string `json:"item_mapping,omitempty"`
}

// Validate checks the sync config
func (c *SyncConfig) Validate() error {
	if c == nil {
		return nil
	}
	if c.AutoSyncType != "" && !c.AutoSyncType.IsValid() {
		return NewValidationError("unsupported auto sync type %q", c.AutoSyncType)
	}
	return nil
}

// EffectiveSyncType returns the configured scheduled sync type
func (c *SyncConfig) EffectiveSyncType() SyncType {
	if c == nil || c.AutoSyncType == "" {
		return SyncTypeFullSync
	}
	return c.AutoSyncType
}

// PortalName resolves the portal-side name for a local menu item.
func (c *SyncConfig) PortalName(item MenuItem) string {
	if c != nil {
		if name, ok := c.ItemMapping[item.ID]; ok && name != "" {
			return name
		}
	}
	return item.Name
}

// NewCredential validates and builds a credential around an already sealed password.
func NewCredential(restaurantID string, platform Platform, username, sealedPassword string, now time.Time) (*Credential, error) {
	if strings.TrimSpace(restaurantID) == "" {
		return nil, ErrAuthContext
	}
	if !platform.IsValid() {
		return nil, NewValidationError("unsupported platform %q", platform)
	}
	if strings.TrimSpace(username) == "" {
		return nil, NewValidationError("username is required")
	}
	if sealedPassword == "" {
		return nil, NewValidationError("password is required")
	}
	return &Credential{
		ID:                uuid.New(),
		RestaurantID:      restaurantID,
		Platform:          platform,
		Username:          strings.TrimSpace(username),
		EncryptedPassword: sealedPassword,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// CredentialPatch is a partial update. Nil fields are left unchanged.
type CredentialPatch struct {
	Username   *string
	Password   *string
	PortalURL  *string
	SyncConfig *SyncConfig
	IsActive   *bool
}

// IsEmpty reports whether the patch changes nothing
func (p CredentialPatch) IsEmpty() bool {
	return p.Username == nil && p.Password == nil && p.PortalURL == nil &&
		p.SyncConfig == nil && p.IsActive == nil
}

// Apply copies the non-password fields of the patch onto the credential.
// The caller seals and sets EncryptedPassword when Password is present.
func (c *Credential) Apply(p CredentialPatch, now time.Time) error {
	if p.Username != nil {
		if strings.TrimSpace(*p.Username) == "" {
			return NewValidationError("username cannot be empty")
		}
		c.Username = strings.TrimSpace(*p.Username)
	}
	if p.PortalURL != nil {
		c.PortalURL = strings.TrimSpace(*p.PortalURL)
	}
	if p.SyncConfig != nil {
		if err := p.SyncConfig.Validate(); err != nil {
			return err
		}
		c.SyncConfig = p.SyncConfig
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	c.UpdatedAt = now
	return nil
}

// AAD binds a sealed password to its key so a ciphertext copied to another
// row fails to open.
func (c *Credential) AAD() []byte {
	return CredentialAAD(c.RestaurantID, c.Platform)
}

// CredentialAAD returns the additional authenticated data for a credential key
func CredentialAAD(restaurantID string, platform Platform) []byte {
	return []byte(restaurantID + "|" + string(platform))
}

// View returns the redacted representation
func (c *Credential) View() CredentialView {
	return CredentialView{
		ID:           c.ID,
		RestaurantID: c.RestaurantID,
		Platform:     c.Platform,
		Username:     c.Username,
		HasPassword:  c.EncryptedPassword != "",
		PortalURL:    c.PortalURL,
		SyncConfig:   c.SyncConfig,
		IsActive:     c.IsActive,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// CredentialView is a credential without its password
type CredentialView struct {
	ID           uuid.UUID   `json:"id"`
	RestaurantID string      `json:"restaurant_id"`
	Platform     Platform    `json:"platform"`
	Username     string      `json:"username"`
	HasPassword  bool        `json:"has_password"`
	PortalURL    string      `json:"portal_url,omitempty"`
	SyncConfig   *SyncConfig `json:"sync_config,omitempty"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// LoginCredentials is the plaintext login handed to a driver for one attempt.
type LoginCredentials struct {
	Username  string
	Password  string
	PortalURL string
}

// String never prints the password.
func (c LoginCredentials) String() string {
	return c.Username + ":****"
}

// GoString never prints the password.
func (c LoginCredentials) GoString() string {
	return c.String()
}
