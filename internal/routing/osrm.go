// README: Fallback routing provider: OSRM for routes, Nominatim for geocoding.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"relaxedrive/internal/types"
)

const (
	// GeocodeMinInterval is the minimum spacing between Nominatim requests,
	// per the published usage policy (max 1 req/s, with headroom).
	GeocodeMinInterval = 1100 * time.Millisecond

	defaultOSRMBaseURL      = "https://router.project-osrm.org"
	defaultNominatimBaseURL = "https://nominatim.openstreetmap.org"
	userAgent               = "relaxedrive-dispatch/1.0"
)

// OSRMProvider resolves addresses through Nominatim and routes through a
// public OSRM instance. Geocoding is throttled so concurrent callers queue
// instead of bursting past the rate limit.
type OSRMProvider struct {
	osrmURL      string
	nominatimURL string
	httpClient   *http.Client
	throttle     *throttle
}

type OSRMOption func(*OSRMProvider)

func WithHTTPClient(c *http.Client) OSRMOption {
	return func(p *OSRMProvider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithGeocodeInterval overrides the Nominatim spacing, used by tests.
func WithGeocodeInterval(d time.Duration) OSRMOption {
	return func(p *OSRMProvider) {
		if d >= 0 {
			p.throttle.min = d
		}
	}
}

func NewOSRMProvider(osrmURL, nominatimURL string, opts ...OSRMOption) *OSRMProvider {
	if osrmURL == "" {
		osrmURL = defaultOSRMBaseURL
	}
	if nominatimURL == "" {
		nominatimURL = defaultNominatimBaseURL
	}
	p := &OSRMProvider{
		osrmURL:      strings.TrimRight(osrmURL, "/"),
		nominatimURL: strings.TrimRight(nominatimURL, "/"),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		throttle:     &throttle{min: GeocodeMinInterval, now: time.Now},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OSRMProvider) Route(ctx context.Context, origin, destination string) (Route, error) {
	return p.RouteMulti(ctx, []string{origin, destination})
}

func (p *OSRMProvider) RouteMulti(ctx context.Context, addresses []string) (Route, error) {
	if len(addresses) < 2 {
		return Route{}, ErrNoRoute
	}
	points, err := p.geocodeAll(ctx, addresses)
	if err != nil {
		return Route{}, err
	}
	routes, err := p.osrmRoute(ctx, points, 1)
	if err != nil {
		return Route{}, err
	}
	return routes[0], nil
}

func (p *OSRMProvider) RouteAlternatives(ctx context.Context, origin, destination string, max int) ([]Route, error) {
	points, err := p.geocodeAll(ctx, []string{origin, destination})
	if err != nil {
		return nil, err
	}
	return p.osrmRoute(ctx, points, max)
}

func (p *OSRMProvider) Geocode(ctx context.Context, address string) (*types.Point, error) {
	if err := p.throttle.wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.nominatimURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("nominatim decode: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim lat: %w", err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim lon: %w", err)
	}
	return &types.Point{Lat: lat, Lng: lng}, nil
}

func (p *OSRMProvider) geocodeAll(ctx context.Context, addresses []string) ([]types.Point, error) {
	points := make([]types.Point, 0, len(addresses))
	for _, addr := range addresses {
		pt, err := p.Geocode(ctx, addr)
		if err != nil {
			return nil, err
		}
		if pt == nil {
			return nil, fmt.Errorf("%w: address %q not found", ErrNoRoute, addr)
		}
		points = append(points, *pt)
	}
	return points, nil
}

func (p *OSRMProvider) osrmRoute(ctx context.Context, points []types.Point, max int) ([]Route, error) {
	coords := make([]string, 0, len(points))
	for _, pt := range points {
		coords = append(coords, fmt.Sprintf("%f,%f", pt.Lng, pt.Lat))
	}
	endpoint := fmt.Sprintf("%s/route/v1/driving/%s?overview=full&steps=true", p.osrmURL, strings.Join(coords, ";"))
	if max > 1 {
		endpoint += "&alternatives=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm status %d", resp.StatusCode)
	}

	var body struct {
		Code   string `json:"code"`
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
			Geometry string  `json:"geometry"`
			Legs     []struct {
				Steps []struct {
					Distance float64 `json:"distance"`
					Name     string  `json:"name"`
					Maneuver struct {
						Type     string `json:"type"`
						Modifier string `json:"modifier"`
					} `json:"maneuver"`
				} `json:"steps"`
			} `json:"legs"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("osrm decode: %w", err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, ErrNoRoute
	}

	out := make([]Route, 0, len(body.Routes))
	for _, r := range body.Routes {
		route := Route{
			DistanceKm:      r.Distance / 1000.0,
			DurationMinutes: r.Duration / 60.0,
			Polyline:        r.Geometry,
		}
		for _, leg := range r.Legs {
			for _, step := range leg.Steps {
				instr := step.Maneuver.Type
				if step.Maneuver.Modifier != "" {
					instr += " " + step.Maneuver.Modifier
				}
				if step.Name != "" {
					instr += " onto " + step.Name
				}
				route.Steps = append(route.Steps, Step{Instruction: instr, DistanceKm: step.Distance / 1000.0})
			}
		}
		out = append(out, route)
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// throttle enforces a minimum interval between requests. The mutex is held
// across the wait so concurrent callers line up one behind another.
type throttle struct {
	mu   sync.Mutex
	last time.Time
	min  time.Duration
	now  func() time.Time
}

func (t *throttle) wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.last.IsZero() {
		if remaining := t.min - t.now().Sub(t.last); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	t.last = t.now()
	return nil
}
