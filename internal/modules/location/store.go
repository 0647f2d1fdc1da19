// README: Location store backed by Redis GEO and Postgres snapshots.
package location

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"relaxedrive/internal/types"
)

const driverGeoKey = "dispatch:driver_positions"

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

func (s *Store) SetGeo(ctx context.Context, id types.ID, pos types.Point) error {
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

// GeoPositions returns the stored positions for the given driver IDs.
// Drivers with no recorded position are absent from the result.
func (s *Store) GeoPositions(ctx context.Context, ids []types.ID) (map[types.ID]types.Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	members := make([]string, 0, len(ids))
	for _, id := range ids {
		members = append(members, string(id))
	}
	locs, err := s.redis.GeoPos(ctx, driverGeoKey, members...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[types.ID]types.Point, len(ids))
	for i, loc := range locs {
		if loc == nil {
			continue
		}
		out[ids[i]] = types.Point{Lat: loc.Latitude, Lng: loc.Longitude}
	}
	return out, nil
}

func (s *Store) AppendSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO location_snapshots (driver_id, lat, lng, recorded_at)
		VALUES ($1, $2, $3, $4)`,
		string(snap.DriverID), snap.Position.Lat, snap.Position.Lng, snap.RecordedAt,
	)
	return err
}
