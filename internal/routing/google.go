// README: Primary routing provider backed by the Google Maps APIs.
package routing

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"relaxedrive/internal/types"
)

// GoogleProvider handles interactions with the Google Maps Directions and
// Geocoding APIs. It assumes driving mode.
type GoogleProvider struct {
	client *maps.Client
}

func NewGoogleProvider(apiKey string) (*GoogleProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

func (p *GoogleProvider) Route(ctx context.Context, origin, destination string) (Route, error) {
	routes, err := p.directions(ctx, origin, destination, nil, false)
	if err != nil {
		return Route{}, err
	}
	return routes[0], nil
}

func (p *GoogleProvider) RouteMulti(ctx context.Context, points []string) (Route, error) {
	if len(points) < 2 {
		return Route{}, ErrNoRoute
	}
	routes, err := p.directions(ctx, points[0], points[len(points)-1], points[1:len(points)-1], false)
	if err != nil {
		return Route{}, err
	}
	return routes[0], nil
}

func (p *GoogleProvider) RouteAlternatives(ctx context.Context, origin, destination string, max int) ([]Route, error) {
	routes, err := p.directions(ctx, origin, destination, nil, true)
	if err != nil {
		return nil, err
	}
	if max > 0 && len(routes) > max {
		routes = routes[:max]
	}
	return routes, nil
}

func (p *GoogleProvider) Geocode(ctx context.Context, address string) (*types.Point, error) {
	results, err := p.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return nil, fmt.Errorf("geocoding api: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	loc := results[0].Geometry.Location
	return &types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}

func (p *GoogleProvider) directions(ctx context.Context, origin, destination string, waypoints []string, alternatives bool) ([]Route, error) {
	req := &maps.DirectionsRequest{
		Origin:       origin,
		Destination:  destination,
		Mode:         maps.TravelModeDriving,
		Waypoints:    waypoints,
		Alternatives: alternatives,
	}
	routes, _, err := p.client.Directions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("directions api: %w", err)
	}
	if len(routes) == 0 {
		return nil, ErrNoRoute
	}
	out := make([]Route, 0, len(routes))
	for _, r := range routes {
		if len(r.Legs) == 0 {
			continue
		}
		var route Route
		route.Polyline = r.OverviewPolyline.Points
		for _, leg := range r.Legs {
			route.DistanceKm += float64(leg.Distance.Meters) / 1000.0
			route.DurationMinutes += leg.Duration.Minutes()
			for _, step := range leg.Steps {
				route.Steps = append(route.Steps, Step{
					Instruction: step.HTMLInstructions,
					DistanceKm:  float64(step.Distance.Meters) / 1000.0,
				})
			}
		}
		out = append(out, route)
	}
	if len(out) == 0 {
		return nil, ErrNoRoute
	}
	return out, nil
}
