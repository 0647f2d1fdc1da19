// README: Driver service: roster reads with live-position overlay.
package driver

import (
	"context"
	"log/slog"
	"time"

	"relaxedrive/internal/types"
)

type Roster interface {
	FindAll(ctx context.Context) ([]Driver, error)
	FindByID(ctx context.Context, id types.ID) (*Driver, error)
	SetAvailable(ctx context.Context, id types.ID, available bool) error
}

// PositionSource provides the freshest known coordinates for a set of
// drivers (backed by Redis GEO in production).
type PositionSource interface {
	Positions(ctx context.Context, ids []types.ID) (map[types.ID]types.Point, error)
}

type Service struct {
	roster    Roster
	positions PositionSource
	logger    *slog.Logger
}

func NewService(roster Roster, positions PositionSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{roster: roster, positions: positions, logger: logger}
}

func (s *Service) FindByID(ctx context.Context, id types.ID) (*Driver, error) {
	d, err := s.roster.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	drivers := []Driver{*d}
	s.overlayPositions(ctx, drivers)
	return &drivers[0], nil
}

func (s *Service) FindAll(ctx context.Context) ([]Driver, error) {
	drivers, err := s.roster.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	s.overlayPositions(ctx, drivers)
	return drivers, nil
}

// SetAvailable flips the driver's dispatchability flag.
func (s *Service) SetAvailable(ctx context.Context, id types.ID, available bool) error {
	return s.roster.SetAvailable(ctx, id, available)
}

// Eligible returns the drivers usable for dispatch suggestions right now.
func (s *Service) Eligible(ctx context.Context, now time.Time) ([]Driver, error) {
	drivers, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := drivers[:0]
	for _, d := range drivers {
		if d.Eligible(now) {
			out = append(out, d)
		}
	}
	return out, nil
}

// overlayPositions replaces roster coordinates with fresher live positions
// when available. A position-source failure keeps the stored coordinates.
func (s *Service) overlayPositions(ctx context.Context, drivers []Driver) {
	if s.positions == nil || len(drivers) == 0 {
		return
	}
	ids := make([]types.ID, 0, len(drivers))
	for _, d := range drivers {
		ids = append(ids, d.ID)
	}
	live, err := s.positions.Positions(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "live position lookup failed", slog.String("error", err.Error()))
		return
	}
	for i := range drivers {
		if pt, ok := live[drivers[i].ID]; ok {
			lat, lng := pt.Lat, pt.Lng
			drivers[i].Lat = &lat
			drivers[i].Lng = &lng
		}
	}
}
