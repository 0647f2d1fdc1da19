// README: Location service: live position updates for drivers.
package location

import (
	"context"
	"log/slog"
	"time"

	"relaxedrive/internal/types"
)

type Service struct {
	store  *Store
	logger *slog.Logger
}

func NewService(store *Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Update records a driver's position in the GEO set and appends a history
// snapshot. The snapshot is best-effort; losing one must not fail the update.
func (s *Service) Update(ctx context.Context, driverID types.ID, pos types.Point) error {
	if err := s.store.SetGeo(ctx, driverID, pos); err != nil {
		return err
	}
	snap := Snapshot{DriverID: driverID, Position: pos, RecordedAt: time.Now()}
	if err := s.store.AppendSnapshot(ctx, snap); err != nil {
		s.logger.WarnContext(ctx, "location snapshot append failed",
			slog.String("driver_id", string(driverID)), slog.String("error", err.Error()))
	}
	return nil
}

// Positions implements the driver roster's PositionSource.
func (s *Service) Positions(ctx context.Context, ids []types.ID) (map[types.ID]types.Point, error) {
	return s.store.GeoPositions(ctx, ids)
}
