// README: Route value types returned by the routing gateway.
package routing

type Route struct {
	DistanceKm      float64
	DurationMinutes float64
	Polyline        string
	Steps           []Step
}

type Step struct {
	Instruction string
	DistanceKm  float64
}

// Unknown reports whether the route is the degraded sentinel produced when
// every provider failed. A zero-duration route must never be read as a real
// zero-distance trip.
func (r Route) Unknown() bool {
	return r.DurationMinutes == 0
}
