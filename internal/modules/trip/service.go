// README: Trip service: completion bookkeeping triggered by the order flow.
package trip

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"relaxedrive/internal/types"
)

type Writer interface {
	InsertSummary(ctx context.Context, sum Summary) error
	IncrementStats(ctx context.Context, driverID types.ID, earningsCents int64, miles float64) error
	PurgeSummariesBefore(ctx context.Context, driverID types.ID, cutoff time.Time) (int64, error)
	UpsertPassenger(ctx context.Context, entry PassengerEntry) error
	StatsFor(ctx context.Context, driverID types.ID) (*DriverStats, error)
}

type Service struct {
	store  Writer
	logger *slog.Logger
}

func NewService(store Writer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Stats returns a driver's lifetime totals.
func (s *Service) Stats(ctx context.Context, driverID types.ID) (*DriverStats, error) {
	return s.store.StatsFor(ctx, driverID)
}

// Completion carries everything the order flow knows at COMPLETED time.
// Distance and earnings are caller-supplied and default to zero.
type Completion struct {
	OrderID        types.ID
	DriverID       types.ID
	PickupAddress  string
	DropoffAddress string
	StartedAt      *time.Time
	CompletedAt    time.Time
	DistanceKm     float64
	EarningsCents  int64
	PassengerName  string
	PassengerPhone string
}

// RecordCompletion writes the trip summary, bumps the driver's lifetime
// stats, trims summaries past retention, and files the passenger in the
// directory when their phone is known. The directory upsert and the purge
// are best-effort.
func (s *Service) RecordCompletion(ctx context.Context, c Completion) error {
	sum := Summary{
		ID:             types.NewID(),
		OrderID:        c.OrderID,
		DriverID:       c.DriverID,
		PickupAddress:  c.PickupAddress,
		DropoffAddress: c.DropoffAddress,
		StartedAt:      c.StartedAt,
		CompletedAt:    c.CompletedAt,
		DistanceKm:     c.DistanceKm,
		EarningsCents:  c.EarningsCents,
	}
	if err := s.store.InsertSummary(ctx, sum); err != nil {
		return fmt.Errorf("insert trip summary: %w", err)
	}
	if err := s.store.IncrementStats(ctx, c.DriverID, c.EarningsCents, KmToMiles(c.DistanceKm)); err != nil {
		return fmt.Errorf("increment driver stats: %w", err)
	}

	cutoff := c.CompletedAt.Add(-HistoryRetention)
	if _, err := s.store.PurgeSummariesBefore(ctx, c.DriverID, cutoff); err != nil {
		s.logger.WarnContext(ctx, "trip history purge failed",
			slog.String("driver_id", string(c.DriverID)), slog.String("error", err.Error()))
	}

	if c.PassengerPhone != "" {
		entry := PassengerEntry{
			Phone:         c.PassengerPhone,
			Name:          c.PassengerName,
			PickupAddress: c.PickupAddress,
		}
		if err := s.store.UpsertPassenger(ctx, entry); err != nil {
			s.logger.WarnContext(ctx, "passenger directory upsert failed",
				slog.String("phone", c.PassengerPhone), slog.String("error", err.Error()))
		}
	}
	return nil
}
