// README: Driver roster store backed by PostgreSQL.
package driver

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"relaxedrive/internal/types"
)

var ErrNotFound = errors.New("driver not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const driverColumns = `id, name, role, phone, lat, lng, available, blocked, banned_until, car_type`

func (s *Store) FindAll(ctx context.Context) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+driverColumns+`
		FROM users
		WHERE role = 'driver'
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) FindByID(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+driverColumns+`
		FROM users
		WHERE id = $1 AND role = 'driver'`, string(id))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) SetAvailable(ctx context.Context, id types.ID, available bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET available = $1
		WHERE id = $2 AND role = 'driver'`, available, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDriver(row pgx.Row) (Driver, error) {
	var d Driver
	err := row.Scan(
		&d.ID, &d.Name, &d.Role, &d.Phone,
		&d.Lat, &d.Lng,
		&d.Available, &d.Blocked, &d.BannedUntil, &d.CarType,
	)
	return d, err
}
