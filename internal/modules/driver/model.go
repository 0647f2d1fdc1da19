// README: Driver roster model and planner eligibility rules.
package driver

import (
	"math"
	"strings"
	"time"

	"relaxedrive/internal/types"
)

const RoleDriver = "driver"

type Driver struct {
	ID          types.ID
	Name        string
	Role        string
	Phone       string
	Lat         *float64
	Lng         *float64
	Available   bool
	Blocked     bool
	BannedUntil *time.Time
	CarType     *string
}

// Position returns the driver's coordinates, or nil when either one is
// missing or non-finite.
func (d Driver) Position() *types.Point {
	if d.Lat == nil || d.Lng == nil {
		return nil
	}
	if !finite(*d.Lat) || !finite(*d.Lng) {
		return nil
	}
	return &types.Point{Lat: *d.Lat, Lng: *d.Lng}
}

// Eligible reports whether the driver can be considered for dispatch
// suggestions: a driver-role user, available, not blocked, with no active
// ban and a known position.
func (d Driver) Eligible(now time.Time) bool {
	if d.Role != RoleDriver {
		return false
	}
	if !d.Available || d.Blocked {
		return false
	}
	if d.BannedUntil != nil && d.BannedUntil.After(now) {
		return false
	}
	return d.Position() != nil
}

// MatchesCarType applies an order's preferred-car-type filter. A nil
// preference matches every driver; a driver with no car type on file never
// matches a concrete preference.
func (d Driver) MatchesCarType(preferred *string) bool {
	if preferred == nil || *preferred == "" {
		return true
	}
	if d.CarType == nil {
		return false
	}
	return strings.EqualFold(*d.CarType, *preferred)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
