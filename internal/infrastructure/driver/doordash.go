package driver

import "github.com/deliverysync/backend/internal/domain/delivery"

// DoorDashSelectors are the Merchant Portal defaults. Portal markup changes
// without notice; override them from configuration rather than code.
var DoorDashSelectors = Selectors{
	LoginURL: "https://identity.doordash.com/auth?client_id=merchant",
	HomeURL:  "https://merchant-portal.doordash.com/merchant/home",
	MenuURL:  "https://merchant-portal.doordash.com/merchant/menu",

	UsernameInput:       `input[name="email"]`,
	PasswordInput:       `input[name="password"]`,
	SubmitButton:        `button[type="submit"]`,
	AuthenticatedMarker: `[data-anchor-id="MerchantNavigation"]`,
	LoginMarker:         `[data-anchor-id="IdentityLoginPage"]`,
	LoginError:          `[data-anchor-id="IdentityLoginPageErrorMessage"]`,

	SearchInput:      `input[data-anchor-id="MenuSearchInput"]`,
	ItemRow:          `[data-anchor-id="MenuItemRow"][data-item-name=%s]`,
	DescriptionInput: `textarea[name="description"]`,
	PriceInput:       `input[name="price"]`,
	InStockOption:    `[data-anchor-id="ItemAvailabilityInStock"]`,
	OutOfStockOption: `[data-anchor-id="ItemAvailabilitySoldOut"]`,
	SaveButton:       `button[data-anchor-id="ItemSaveButton"]`,
	SaveConfirmation: `[data-anchor-id="ToastSuccess"]`,
}

// DoorDash drives the DoorDash Merchant Portal
type DoorDash struct {
	*portal
}

// NewDoorDash returns the DoorDash driver
func NewDoorDash(opts Options) *DoorDash {
	return &DoorDash{portal: newPortal(delivery.PlatformDoorDash, DoorDashSelectors, opts)}
}

var _ delivery.PlatformDriver = (*DoorDash)(nil)
