// README: Wait billing: maps driver idle time at a stop to a charge tier.
package billing

import "time"

// Wait charge tiers in cents, keyed by total minutes waited.
// <20 free, then stepped up to the 2h+ cap.
func WaitCharge(totalMinutes int) int64 {
	switch {
	case totalMinutes < 20:
		return 0
	case totalMinutes < 30:
		return 500
	case totalMinutes < 60:
		return 1000
	case totalMinutes < 80:
		return 2000
	case totalMinutes < 90:
		return 2500
	case totalMinutes < 120:
		return 3000
	default:
		return 4000
	}
}

// WaitMinutes returns whole minutes between arrival and departure,
// truncating partial minutes. Inverted or equal timestamps count as zero.
func WaitMinutes(arrivedAt, leftAt time.Time) int {
	if !leftAt.After(arrivedAt) {
		return 0
	}
	return int(leftAt.Sub(arrivedAt) / time.Minute)
}

// ChargeBetween computes the charge from a timestamp pair.
func ChargeBetween(arrivedAt, leftAt time.Time) int64 {
	return WaitCharge(WaitMinutes(arrivedAt, leftAt))
}

// Charge resolves the final charge for a stop. A manual operator-entered
// minute count takes precedence over the timestamp-derived value; the two
// inputs never both contribute.
func Charge(arrivedAt, leftAt time.Time, manualMinutes *int) int64 {
	if manualMinutes != nil {
		return WaitCharge(*manualMinutes)
	}
	return ChargeBetween(arrivedAt, leftAt)
}
