// README: Routing gateway: primary provider with resilient fallback and
// graceful degradation to the zero route.
package routing

import (
	"context"
	"log/slog"

	"relaxedrive/internal/resilience"
	"relaxedrive/internal/types"
)

// Gateway fans a routing request to the primary provider and, when it fails,
// to the fallback provider behind retry and a circuit breaker. When every
// provider fails the degraded zero value is returned instead of an error;
// callers must treat it as "unknown" (see Route.Unknown).
//
// Breaker state and the geocode throttle live on the instance so isolated
// gateways can be constructed in tests.
type Gateway struct {
	primary  Provider
	fallback Provider
	retry    *resilience.Retrier
	breaker  *resilience.Breaker
	logger   *slog.Logger
}

type GatewayOption func(*Gateway)

func WithRetrier(r *resilience.Retrier) GatewayOption {
	return func(g *Gateway) {
		if r != nil {
			g.retry = r
		}
	}
}

func WithBreaker(b *resilience.Breaker) GatewayOption {
	return func(g *Gateway) {
		if b != nil {
			g.breaker = b
		}
	}
}

func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

func NewGateway(primary, fallback Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		primary:  primary,
		fallback: fallback,
		retry:    resilience.NewRetrier(),
		breaker:  resilience.NewBreaker(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Route(ctx context.Context, origin, destination string) Route {
	var out Route
	ok := g.call(ctx, "route",
		func(ctx context.Context, p Provider) error {
			r, err := p.Route(ctx, origin, destination)
			if err == nil {
				out = r
			}
			return err
		})
	if !ok {
		return Route{}
	}
	return out
}

func (g *Gateway) RouteMulti(ctx context.Context, points []string) Route {
	var out Route
	ok := g.call(ctx, "route_multi",
		func(ctx context.Context, p Provider) error {
			r, err := p.RouteMulti(ctx, points)
			if err == nil {
				out = r
			}
			return err
		})
	if !ok {
		return Route{}
	}
	return out
}

func (g *Gateway) RouteAlternatives(ctx context.Context, origin, destination string, max int) []Route {
	var out []Route
	ok := g.call(ctx, "route_alternatives",
		func(ctx context.Context, p Provider) error {
			rs, err := p.RouteAlternatives(ctx, origin, destination, max)
			if err == nil {
				out = rs
			}
			return err
		})
	if !ok {
		return nil
	}
	return out
}

// Geocode returns nil both when the address is unknown and when every
// provider failed; an omitted coordinate is never fatal to the caller.
func (g *Gateway) Geocode(ctx context.Context, address string) *types.Point {
	var out *types.Point
	ok := g.call(ctx, "geocode",
		func(ctx context.Context, p Provider) error {
			pt, err := p.Geocode(ctx, address)
			if err == nil {
				out = pt
			}
			return err
		})
	if !ok {
		return nil
	}
	return out
}

// call tries the primary once, then the fallback through retry and the
// breaker. It reports whether any provider answered.
func (g *Gateway) call(ctx context.Context, op string, fn func(ctx context.Context, p Provider) error) bool {
	if g.primary != nil {
		err := fn(ctx, g.primary)
		if err == nil {
			return true
		}
		g.logger.WarnContext(ctx, "primary routing provider failed",
			slog.String("op", op), slog.String("error", err.Error()))
	}
	if g.fallback != nil {
		err := g.breaker.Run(ctx, func(ctx context.Context) error {
			return g.retry.Do(ctx, func(ctx context.Context) error {
				return fn(ctx, g.fallback)
			})
		})
		if err == nil {
			return true
		}
		g.logger.WarnContext(ctx, "fallback routing provider failed",
			slog.String("op", op), slog.String("error", err.Error()))
	}
	return false
}
