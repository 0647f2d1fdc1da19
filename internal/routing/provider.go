// README: Provider contract implemented by each external routing backend.
package routing

import (
	"context"
	"errors"

	"relaxedrive/internal/types"
)

// ErrNoRoute is returned by providers when the backend answered but produced
// no usable route for the requested endpoints.
var ErrNoRoute = errors.New("no route found")

// Provider is a single external routing/geocoding backend. Geocode returns
// (nil, nil) when the address is simply unknown, an error only on transport
// or protocol failures.
type Provider interface {
	Route(ctx context.Context, origin, destination string) (Route, error)
	RouteMulti(ctx context.Context, points []string) (Route, error)
	RouteAlternatives(ctx context.Context, origin, destination string, max int) ([]Route, error)
	Geocode(ctx context.Context, address string) (*types.Point, error)
}
