// README: Trip summaries and per-driver cumulative stats.
package trip

import (
	"time"

	"relaxedrive/internal/types"
)

const (
	// HistoryRetention bounds how long per-driver trip summaries are kept.
	HistoryRetention = 365 * 24 * time.Hour

	milesPerKm = 0.621371
)

type Summary struct {
	ID             types.ID
	OrderID        types.ID
	DriverID       types.ID
	PickupAddress  string
	DropoffAddress string
	StartedAt      *time.Time
	CompletedAt    time.Time
	DistanceKm     float64
	EarningsCents  int64
}

type DriverStats struct {
	DriverID           types.ID
	TotalEarningsCents int64
	TotalMiles         float64
	TripsCompleted     int64
}

// Earnings returns the lifetime total as a money value.
func (st *DriverStats) Earnings() types.Money {
	return types.Cents(st.TotalEarningsCents)
}

// PassengerEntry is a directory record keyed by (phone, pickup address).
type PassengerEntry struct {
	Phone         string
	Name          string
	PickupAddress string
}

func KmToMiles(km float64) float64 {
	return km * milesPerKm
}
