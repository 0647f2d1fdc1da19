// README: Order store backed by PostgreSQL with optimistic status locking.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"relaxedrive/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const orderColumns = `
	id, status, status_version,
	pickup_at, pickup_address, dropoff_address, waypoints, trip_type, middle_address,
	driver_id, preferred_car_type, manual_assignment,
	passenger_name, passenger_phone,
	arrived_at_pickup_at, left_pickup_at, arrived_at_middle_at, left_middle_at,
	started_at, completed_at,
	wait_charge_at_pickup_cents, wait_charge_at_middle_cents,
	cancel_reason,
	risk_level, suggested_driver_id,
	created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, o *Order) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (
			id, status, status_version,
			pickup_at, pickup_address, dropoff_address, waypoints, trip_type, middle_address,
			driver_id, preferred_car_type, manual_assignment,
			passenger_name, passenger_phone,
			risk_level, created_at, updated_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8, $9,
			$10, $11, $12,
			$13, $14,
			$15, $16, $17
		)`,
		string(o.ID), string(o.Status), o.StatusVersion,
		o.PickupAt, o.PickupAddress, o.DropoffAddress, o.Waypoints, string(o.TripType), o.MiddleAddress,
		idPtr(o.DriverID), o.PreferredCarType, o.ManualAssignment,
		o.PassengerName, o.PassengerPhone,
		string(o.RiskLevel), o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Update writes every mutable field, guarded by a compare-and-swap on the
// status and version the request started from. A zero row count means a
// concurrent writer won.
func (s *PGStore) Update(ctx context.Context, o *Order, fromStatus Status, fromVersion int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders SET
			status = $1,
			status_version = status_version + 1,
			pickup_at = $2,
			waypoints = $3,
			driver_id = $4,
			arrived_at_pickup_at = $5,
			left_pickup_at = $6,
			arrived_at_middle_at = $7,
			left_middle_at = $8,
			started_at = $9,
			completed_at = $10,
			wait_charge_at_pickup_cents = $11,
			wait_charge_at_middle_cents = $12,
			cancel_reason = $13,
			updated_at = $14
		WHERE id = $15 AND status = $16 AND status_version = $17`,
		string(o.Status),
		o.PickupAt,
		o.Waypoints,
		idPtr(o.DriverID),
		o.ArrivedAtPickupAt, o.LeftPickupAt, o.ArrivedAtMiddleAt, o.LeftMiddleAt,
		o.StartedAt, o.CompletedAt,
		o.WaitChargeAtPickupCents, o.WaitChargeAtMiddleCents,
		o.CancelReason,
		o.UpdatedAt,
		string(o.ID), string(fromStatus), fromVersion,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) Delete(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM orders
		WHERE id = $1 AND status = 'scheduled' AND driver_id IS NULL`, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) ListActive(ctx context.Context) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status NOT IN ('completed', 'cancelled')
		ORDER BY pickup_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListInWindow returns the not-yet-departed orders whose pickup falls in
// [from, to], the planner's input set.
func (s *PGStore) ListInWindow(ctx context.Context, from, to time.Time) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status IN ('scheduled', 'assigned')
		  AND pickup_at >= $1 AND pickup_at <= $2
		ORDER BY pickup_at, id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// PlanningUpdate is one planner verdict to persist onto an order row.
type PlanningUpdate struct {
	OrderID           types.ID
	RiskLevel         RiskLevel
	SuggestedDriverID *types.ID
}

// ApplyPlanning persists a full planning pass in one transaction so a failed
// recompute never leaves rows partially updated.
func (s *PGStore) ApplyPlanning(ctx context.Context, updates []PlanningUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, u := range updates {
		_, err := tx.Exec(ctx, `
			UPDATE orders
			SET risk_level = $1, suggested_driver_id = $2
			WHERE id = $3`,
			string(u.RiskLevel), idPtr(u.SuggestedDriverID), string(u.OrderID),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status, tripType, riskLevel string
	var driverID, suggestedDriverID *string

	err := row.Scan(
		&o.ID, &status, &o.StatusVersion,
		&o.PickupAt, &o.PickupAddress, &o.DropoffAddress, &o.Waypoints, &tripType, &o.MiddleAddress,
		&driverID, &o.PreferredCarType, &o.ManualAssignment,
		&o.PassengerName, &o.PassengerPhone,
		&o.ArrivedAtPickupAt, &o.LeftPickupAt, &o.ArrivedAtMiddleAt, &o.LeftMiddleAt,
		&o.StartedAt, &o.CompletedAt,
		&o.WaitChargeAtPickupCents, &o.WaitChargeAtMiddleCents,
		&o.CancelReason,
		&riskLevel, &suggestedDriverID,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.TripType = TripType(tripType)
	o.RiskLevel = RiskLevel(riskLevel)
	if driverID != nil {
		d := types.ID(*driverID)
		o.DriverID = &d
	}
	if suggestedDriverID != nil {
		d := types.ID(*suggestedDriverID)
		o.SuggestedDriverID = &d
	}
	return &o, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
