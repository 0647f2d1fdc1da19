// README: Trip store backed by PostgreSQL.
package trip

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"relaxedrive/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) InsertSummary(ctx context.Context, sum Summary) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip_summaries (
			id, order_id, driver_id, pickup_address, dropoff_address,
			started_at, completed_at, distance_km, earnings_cents
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(sum.ID), string(sum.OrderID), string(sum.DriverID),
		sum.PickupAddress, sum.DropoffAddress,
		sum.StartedAt, sum.CompletedAt, sum.DistanceKm, sum.EarningsCents,
	)
	return err
}

// IncrementStats accumulates a completed trip into the driver's lifetime
// totals. Distance is stored in miles.
func (s *Store) IncrementStats(ctx context.Context, driverID types.ID, earningsCents int64, miles float64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO driver_stats (driver_id, total_earnings_cents, total_miles, trips_completed)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (driver_id) DO UPDATE SET
			total_earnings_cents = driver_stats.total_earnings_cents + EXCLUDED.total_earnings_cents,
			total_miles = driver_stats.total_miles + EXCLUDED.total_miles,
			trips_completed = driver_stats.trips_completed + 1`,
		string(driverID), earningsCents, miles,
	)
	return err
}

func (s *Store) PurgeSummariesBefore(ctx context.Context, driverID types.ID, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM trip_summaries
		WHERE driver_id = $1 AND completed_at < $2`,
		string(driverID), cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpsertPassenger records a (phone, pickup address) pair once; repeats are
// silently ignored.
func (s *Store) UpsertPassenger(ctx context.Context, entry PassengerEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO passenger_directory (phone, name, pickup_address, first_seen_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (phone, pickup_address) DO NOTHING`,
		entry.Phone, entry.Name, entry.PickupAddress,
	)
	return err
}

// StatsFor reads a driver's lifetime totals; a driver with no completed
// trips yet gets zeroes.
func (s *Store) StatsFor(ctx context.Context, driverID types.ID) (*DriverStats, error) {
	row := s.db.QueryRow(ctx, `
		SELECT driver_id, total_earnings_cents, total_miles, trips_completed
		FROM driver_stats
		WHERE driver_id = $1`, string(driverID))
	var st DriverStats
	if err := row.Scan(&st.DriverID, &st.TotalEarningsCents, &st.TotalMiles, &st.TripsCompleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &DriverStats{DriverID: driverID}, nil
		}
		return nil, err
	}
	return &st, nil
}
