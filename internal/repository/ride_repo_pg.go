package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vkurasov/ridepool/internal/domain"
)

// RideSearch narrows a ride listing. GeohashPrefixes is a coarse location
// prefilter; the caller refines with an exact radius check.
type RideSearch struct {
	GeohashPrefixes []string
	MinSeats        int
	DepartingAfter  time.Time
}

type RideRepository interface {
	Create(ctx context.Context, ride *domain.Ride) error
	GetByID(ctx context.Context, id string) (*domain.Ride, error)
	ListByDriver(ctx context.Context, driverID string) ([]domain.Ride, error)
	Search(ctx context.Context, q RideSearch) ([]domain.Ride, error)
	UpdateStatus(ctx context.Context, id string, status domain.RideStatus) (*domain.Ride, error)
}

type PGRideRepository struct {
	db *pgxpool.Pool
}

func NewRideRepository(db *pgxpool.Pool) RideRepository {
	return &PGRideRepository{db: db}
}

const rideColumns = `id, driver_id,
	origin_address, origin_lat, origin_lng, origin_geohash,
	destination_address, destination_lat, destination_lng, destination_geohash,
	departure_time, total_seats, price_cents,
	vehicle_make, vehicle_model, vehicle_plate, notes, status, created_at, updated_at`

func scanRide(row pgx.Row) (*domain.Ride, error) {
	var r domain.Ride
	err := row.Scan(&r.ID, &r.DriverID,
		&r.Origin.Address, &r.Origin.Lat, &r.Origin.Lng, &r.Origin.Geohash,
		&r.Destination.Address, &r.Destination.Lat, &r.Destination.Lng, &r.Destination.Geohash,
		&r.DepartureTime, &r.TotalSeats, &r.PriceCents,
		&r.Vehicle.Make, &r.Vehicle.Model, &r.Vehicle.LicensePlate, &r.Notes, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *PGRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	return r.db.QueryRow(ctx, `INSERT INTO rides
		(id, driver_id,
		 origin_address, origin_lat, origin_lng, origin_geohash,
		 destination_address, destination_lat, destination_lng, destination_geohash,
		 departure_time, total_seats, price_cents,
		 vehicle_make, vehicle_model, vehicle_plate, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at`,
		ride.ID, ride.DriverID,
		ride.Origin.Address, ride.Origin.Lat, ride.Origin.Lng, ride.Origin.Geohash,
		ride.Destination.Address, ride.Destination.Lat, ride.Destination.Lng, ride.Destination.Geohash,
		ride.DepartureTime, ride.TotalSeats, ride.PriceCents,
		ride.Vehicle.Make, ride.Vehicle.Model, ride.Vehicle.LicensePlate, ride.Notes, ride.Status).
		Scan(&ride.CreatedAt, &ride.UpdatedAt)
}

func (r *PGRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	row := r.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id=$1`, id)
	ride, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ride %s: %w", id, domain.ErrNotFound)
	}
	return ride, err
}

func (r *PGRideRepository) ListByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	rows, err := r.db.Query(ctx, `SELECT `+rideColumns+` FROM rides
		WHERE driver_id=$1 ORDER BY departure_time`, driverID)
	if err != nil {
		return nil, err
	}
	return collectRides(rows)
}

func (r *PGRideRepository) Search(ctx context.Context, q RideSearch) ([]domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		WHERE status='active' AND departure_time >= $1
		  AND total_seats - (SELECT COALESCE(SUM(seats), 0) FROM reservations
			WHERE ride_id = rides.id AND status IN ('pending','approved')) >= $2`
	args := []interface{}{q.DepartingAfter, q.MinSeats}
	if len(q.GeohashPrefixes) > 0 {
		query += ` AND origin_geohash LIKE ANY($3)`
		patterns := make([]string, 0, len(q.GeohashPrefixes))
		for _, p := range q.GeohashPrefixes {
			patterns = append(patterns, p+"%")
		}
		args = append(args, patterns)
	}
	query += ` ORDER BY departure_time`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRides(rows)
}

func (r *PGRideRepository) UpdateStatus(ctx context.Context, id string, status domain.RideStatus) (*domain.Ride, error) {
	row := r.db.QueryRow(ctx, `UPDATE rides SET status=$1, updated_at=now()
		WHERE id=$2 RETURNING `+rideColumns, status, id)
	ride, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ride %s: %w", id, domain.ErrNotFound)
	}
	return ride, err
}

func collectRides(rows pgx.Rows) ([]domain.Ride, error) {
	defer rows.Close()
	rides := make([]domain.Ride, 0)
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, *ride)
	}
	return rides, rows.Err()
}

var _ RideRepository = (*PGRideRepository)(nil)
