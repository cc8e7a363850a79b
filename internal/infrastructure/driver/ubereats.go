package driver

import "github.com/deliverysync/backend/internal/domain/delivery"

// UberEatsSelectors are the Uber Eats Manager defaults. The login flow asks
// for the email first and shows the password field on a second step.
var UberEatsSelectors = Selectors{
	LoginURL: "https://auth.uber.com/login/?next_url=https://merchants.ubereats.com/manager",
	HomeURL:  "https://merchants.ubereats.com/manager/home",
	MenuURL:  "https://merchants.ubereats.com/manager/menumaker",

	UsernameInput:       `input#PHONE_NUMBER_or_EMAIL_ADDRESS`,
	PasswordInput:       `input#PASSWORD`,
	SubmitButton:        `button#forward-button`,
	AuthenticatedMarker: `[data-testid="manager-side-nav"]`,
	LoginMarker:         `input#PHONE_NUMBER_or_EMAIL_ADDRESS`,
	LoginError:          `[data-testid="login-error-message"]`,

	SearchInput:      `input[data-testid="menu-search"]`,
	ItemRow:          `[data-testid="menu-item-row"][aria-label=%s]`,
	DescriptionInput: `textarea[data-testid="item-description"]`,
	PriceInput:       `input[data-testid="item-price"]`,
	InStockOption:    `[data-testid="availability-available"]`,
	OutOfStockOption: `[data-testid="availability-sold-out"]`,
	SaveButton:       `button[data-testid="item-save"]`,
	SaveConfirmation: `[data-testid="toast-success"]`,
}

// UberEats drives the Uber Eats Manager
type UberEats struct {
	*portal
}

// NewUberEats returns the Uber Eats driver
func NewUberEats(opts Options) *UberEats {
	return &UberEats{portal: newPortal(delivery.PlatformUberEats, UberEatsSelectors, opts)}
}

var _ delivery.PlatformDriver = (*UberEats)(nil)
