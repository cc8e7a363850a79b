package delivery

import "strings"

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// Platform identifies a delivery marketplace portal
type Platform string

const (
	// PlatformDoorDash represents the DoorDash Merchant Portal
	PlatformDoorDash Platform = "doordash"
	// PlatformUberEats represents the Uber Eats Manager
	PlatformUberEats Platform = "ubereats"
)

// AllPlatforms returns every supported platform in a stable order
func AllPlatforms() []Platform {
	return []Platform{PlatformDoorDash, PlatformUberEats}
}

// IsValid returns true if the platform is a known enum member
func (p Platform) IsValid() bool {
	switch p {
	case PlatformDoorDash, PlatformUberEats:
		return true
	default:
		return false
	}
}

// String returns the string representation of Platform
func (p Platform) String() string {
	return string(p)
}

// DisplayName returns a human-readable name for the platform
func (p Platform) DisplayName() string {
	switch p {
	case PlatformDoorDash:
		return "DoorDash"
	case PlatformUberEats:
		return "Uber Eats"
	default:
		return string(p)
	}
}

// ParsePlatform normalizes and validates a platform name from user input.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return "", NewValidationError("platform is required")
	}
	if !p.IsValid() {
		return "", NewValidationError("unsupported platform %q", s)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// SyncType
// ---------------------------------------------------------------------------

// SyncType selects which part of the menu a sync pushes
type SyncType string

const (
	SyncTypeMenuUpdate  SyncType = "menu_update"
	SyncTypeStockUpdate SyncType = "stock_update"
	SyncTypePriceUpdate SyncType = "price_update"
	SyncTypeFullSync    SyncType = "full_sync"
)

// IsValid returns true if the sync type is known
func (t SyncType) IsValid() bool {
	switch t {
	case SyncTypeMenuUpdate, SyncTypeStockUpdate, SyncTypePriceUpdate, SyncTypeFullSync:
		return true
	default:
		return false
	}
}

// IsIncremental reports whether the sync type diffs against the last synced state.
func (t SyncType) IsIncremental() bool {
	return t == SyncTypePriceUpdate || t == SyncTypeStockUpdate
}

// String returns the string representation of SyncType
func (t SyncType) String() string {
	return string(t)
}

// ParseSyncType validates a sync type; empty input defaults to full_sync.
func ParseSyncType(s string) (SyncType, error) {
	if strings.TrimSpace(s) == "" {
		return SyncTypeFullSync, nil
	}
	t := SyncType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", NewValidationError("unsupported sync type %q", s)
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// SyncStatus
// ---------------------------------------------------------------------------

// SyncStatus is the terminal status of a sync attempt
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusPartial SyncStatus = "partial"
	SyncStatusFailed  SyncStatus = "failed"
)

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}
