// Package driver contains the portal integrations behind delivery.PlatformDriver.
package driver

import (
	"github.com/deliverysync/backend/internal/domain/delivery"
)

// Registry dispatches a platform to its driver
type Registry struct {
	drivers map[delivery.Platform]delivery.PlatformDriver
}

// NewRegistry registers drivers by their Platform(). A later driver for the
// same platform replaces an earlier one.
func NewRegistry(drivers ...delivery.PlatformDriver) *Registry {
	r := &Registry{drivers: make(map[delivery.Platform]delivery.PlatformDriver, len(drivers))}
	for _, d := range drivers {
		r.drivers[d.Platform()] = d
	}
	return r
}

// Get returns the driver for platform, or a ValidationError when the platform
// is unknown or has no driver
func (r *Registry) Get(platform delivery.Platform) (delivery.PlatformDriver, error) {
	if !platform.IsValid() {
		return nil, delivery.NewValidationError("unsupported platform %q", platform)
	}
	d, ok := r.drivers[platform]
	if !ok {
		return nil, delivery.NewValidationError("no driver registered for %s", platform.DisplayName())
	}
	return d, nil
}

// Platforms lists registered platforms in enum order
func (r *Registry) Platforms() []delivery.Platform {
	platforms := make([]delivery.Platform, 0, len(r.drivers))
	for _, p := range delivery.AllPlatforms() {
		if _, ok := r.drivers[p]; ok {
			platforms = append(platforms, p)
		}
	}
	return platforms
}
