package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vkurasov/ridepool/internal/domain"
)

// StatusUpdate carries the fields a lifecycle transition may attach to the
// reservation row alongside the status change.
type StatusUpdate struct {
	RefundPct    *float64
	CancelReason string
	CancelledBy  domain.ActorRole
	DroppedOffAt *time.Time
}

type ReservationRepository interface {
	// CreatePending atomically re-derives committed seats for the ride and
	// inserts the reservation if capacity allows. The ride row is locked for
	// the duration of the transaction.
	CreatePending(ctx context.Context, res *domain.Reservation) error
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	ListByRide(ctx context.Context, rideID string, statuses ...domain.ReservationStatus) ([]domain.Reservation, error)
	ListByPassenger(ctx context.Context, passengerID string, statuses ...domain.ReservationStatus) ([]domain.Reservation, error)
	CommittedSeats(ctx context.Context, rideID string) (int, error)
	// UpdateStatus applies a compare-and-set status change: the update only
	// lands if the stored status still equals from. A lost race surfaces as
	// domain.ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id string, from, to domain.ReservationStatus, eventType string, upd StatusUpdate) (*domain.Reservation, error)
	// ExpirePendingBefore cancels pending reservations created before the
	// deadline and returns them.
	ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Reservation, error)
}

type PGReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) ReservationRepository {
	return &PGReservationRepository{db: db}
}

const reservationColumns = `id, ride_id, passenger_id, seats, amount_cents, status, refund_pct,
	pickup_at, dropoff_at, picked_up_at, dropped_off_at, cancel_reason, cancelled_by, created_at, updated_at`

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var r domain.Reservation
	var reason, cancelledBy *string
	err := row.Scan(&r.ID, &r.RideID, &r.PassengerID, &r.Seats, &r.AmountCents, &r.Status, &r.RefundPct,
		&r.PickupAt, &r.DropoffAt, &r.PickedUpAt, &r.DroppedOffAt, &reason, &cancelledBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		r.CancelReason = *reason
	}
	if cancelledBy != nil {
		r.CancelledBy = domain.ActorRole(*cancelledBy)
	}
	return &r, nil
}

func (r *PGReservationRepository) CreatePending(ctx context.Context, res *domain.Reservation) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Row lock on the ride serializes all capacity decisions for it.
	var totalSeats int
	var rideStatus domain.RideStatus
	var driverID string
	err = tx.QueryRow(ctx, `SELECT total_seats, status, driver_id FROM rides WHERE id=$1 FOR UPDATE`, res.RideID).
		Scan(&totalSeats, &rideStatus, &driverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("ride %s: %w", res.RideID, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	// A full ride falls through to the committed-seats comparison so seat
	// exhaustion reports as insufficient capacity, never as unavailability.
	if rideStatus.Finished() {
		return fmt.Errorf("ride %s is %s: %w", res.RideID, rideStatus, domain.ErrRideUnavailable)
	}

	var active int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM reservations
		WHERE ride_id=$1 AND passenger_id=$2 AND status IN ('pending','approved')`,
		res.RideID, res.PassengerID).Scan(&active)
	if err != nil {
		return err
	}
	if active > 0 {
		return fmt.Errorf("passenger %s already holds a reservation on ride %s: %w",
			res.PassengerID, res.RideID, domain.ErrInvalidRequest)
	}

	var committed int
	err = tx.QueryRow(ctx, `SELECT COALESCE(SUM(seats), 0) FROM reservations
		WHERE ride_id=$1 AND status IN ('pending','approved')`, res.RideID).Scan(&committed)
	if err != nil {
		return err
	}
	if committed+res.Seats > totalSeats {
		return fmt.Errorf("%d of %d seats taken, %d requested: %w",
			committed, totalSeats, res.Seats, domain.ErrInsufficientCapacity)
	}

	res.Status = domain.ReservationStatusPending
	err = tx.QueryRow(ctx, `INSERT INTO reservations
		(id, ride_id, passenger_id, seats, amount_cents, status, pickup_at, dropoff_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		res.ID, res.RideID, res.PassengerID, res.Seats, res.AmountCents, res.Status, res.PickupAt, res.DropoffAt).
		Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return err
	}

	if err := insertEvent(ctx, tx, domain.EventReservationRequested, driverID, res); err != nil {
		return err
	}
	if err := syncRideFill(ctx, tx, res.RideID, totalSeats, committed+res.Seats); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGReservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	return res, err
}

func (r *PGReservationRepository) ListByRide(ctx context.Context, rideID string, statuses ...domain.ReservationStatus) ([]domain.Reservation, error) {
	return r.list(ctx, `ride_id`, rideID, statuses)
}

func (r *PGReservationRepository) ListByPassenger(ctx context.Context, passengerID string, statuses ...domain.ReservationStatus) ([]domain.Reservation, error) {
	return r.list(ctx, `passenger_id`, passengerID, statuses)
}

func (r *PGReservationRepository) list(ctx context.Context, column, value string, statuses []domain.ReservationStatus) ([]domain.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + column + `=$1`
	args := []interface{}{value}
	if len(statuses) > 0 {
		q += ` AND status = ANY($2)`
		filter := make([]string, 0, len(statuses))
		for _, s := range statuses {
			filter = append(filter, string(s))
		}
		args = append(args, filter)
	}
	q += ` ORDER BY created_at`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func (r *PGReservationRepository) CommittedSeats(ctx context.Context, rideID string) (int, error) {
	var committed int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(seats), 0) FROM reservations
		WHERE ride_id=$1 AND status IN ('pending','approved')`, rideID).Scan(&committed)
	return committed, err
}

func (r *PGReservationRepository) UpdateStatus(ctx context.Context, id string, from, to domain.ReservationStatus, eventType string, upd StatusUpdate) (*domain.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock order matches CreatePending: ride row first, then the reservation.
	var rideID string
	err = tx.QueryRow(ctx, `SELECT ride_id FROM reservations WHERE id=$1`, id).Scan(&rideID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var totalSeats int
	var driverID string
	if err := tx.QueryRow(ctx, `SELECT total_seats, driver_id FROM rides WHERE id=$1 FOR UPDATE`, rideID).
		Scan(&totalSeats, &driverID); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `UPDATE reservations
		SET status=$1,
		    refund_pct=COALESCE($2, refund_pct),
		    cancel_reason=NULLIF($3, ''),
		    cancelled_by=NULLIF($4, ''),
		    dropped_off_at=COALESCE($5, dropped_off_at),
		    updated_at=now()
		WHERE id=$6 AND status=$7
		RETURNING `+reservationColumns,
		to, upd.RefundPct, upd.CancelReason, string(upd.CancelledBy), upd.DroppedOffAt, id, from)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Status moved under us since the caller validated it.
		return nil, fmt.Errorf("reservation %s no longer %s: %w", id, from, domain.ErrInvalidTransition)
	}
	if err != nil {
		return nil, err
	}

	if err := insertEvent(ctx, tx, eventType, driverID, res); err != nil {
		return nil, err
	}

	// Seats freed or consumed may flip the ride between full and active.
	var committed int
	err = tx.QueryRow(ctx, `SELECT COALESCE(SUM(seats), 0) FROM reservations
		WHERE ride_id=$1 AND status IN ('pending','approved')`, rideID).Scan(&committed)
	if err != nil {
		return nil, err
	}
	if err := syncRideFill(ctx, tx, rideID, totalSeats, committed); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *PGReservationRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `UPDATE reservations
		SET status=$1, cancel_reason='expired', cancelled_by='system', updated_at=now()
		WHERE status=$2 AND created_at <= $3
		RETURNING `+reservationColumns,
		domain.ReservationStatusCancelled, domain.ReservationStatusPending, deadline)
	if err != nil {
		return nil, err
	}
	var expired []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		expired = append(expired, *res)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range expired {
		var driverID string
		if err := tx.QueryRow(ctx, `SELECT driver_id FROM rides WHERE id=$1`, expired[i].RideID).Scan(&driverID); err != nil {
			return nil, err
		}
		if err := insertEvent(ctx, tx, domain.EventReservationExpired, driverID, &expired[i]); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `UPDATE rides SET status='active', updated_at=now()
			WHERE id=$1 AND status='full'`, expired[i].RideID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return expired, nil
}

// insertEvent writes the outbox row inside the caller's transaction so the
// event is committed if and only if the state change is.
func insertEvent(ctx context.Context, tx pgx.Tx, eventType, driverID string, res *domain.Reservation) error {
	payload, err := json.Marshal(domain.Event{Type: eventType, DriverID: driverID, Reservation: *res})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO reservation_events (reservation_id, event_type, payload)
		VALUES ($1, $2, $3)`, res.ID, eventType, payload)
	return err
}

// syncRideFill keeps the ride's full/active flag consistent with the ledger.
func syncRideFill(ctx context.Context, tx pgx.Tx, rideID string, totalSeats, committed int) error {
	if committed >= totalSeats {
		_, err := tx.Exec(ctx, `UPDATE rides SET status='full', updated_at=now()
			WHERE id=$1 AND status='active'`, rideID)
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE rides SET status='active', updated_at=now()
		WHERE id=$1 AND status='full'`, rideID)
	return err
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
