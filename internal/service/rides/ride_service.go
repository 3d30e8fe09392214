package rides

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mmcloughlin/geohash"
	"github.com/sirupsen/logrus"
	"github.com/vkurasov/ridepool/internal/domain"
	"github.com/vkurasov/ridepool/internal/repository"
)

type RideUseCase interface {
	CreateRide(ctx context.Context, input CreateRideInput) (*domain.Ride, error)
	GetRide(ctx context.Context, id string) (*domain.Ride, error)
	ListByDriver(ctx context.Context, driverID string) ([]domain.Ride, error)
	SearchRides(ctx context.Context, params SearchParams) ([]domain.Ride, error)
	CancelRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
}

type Cache interface {
	GetRide(ctx context.Context, rideID string) (*domain.Ride, error)
	SetRide(ctx context.Context, ride *domain.Ride) error
	InvalidateRide(ctx context.Context, rideID string) error
}

type CreateRideInput struct {
	DriverID      string          `json:"driver_id"`
	Origin        domain.Location `json:"origin"`
	Destination   domain.Location `json:"destination"`
	DepartureTime time.Time       `json:"departure_time"`
	TotalSeats    int             `json:"total_seats"`
	PriceCents    int64           `json:"price_cents"`
	Vehicle       domain.Vehicle  `json:"vehicle"`
	Notes         string          `json:"notes"`
}

type SearchParams struct {
	OriginLat float64
	OriginLng float64
	RadiusKm  float64
	MinSeats  int
	From      time.Time
}

// geohashPrecision is the cell size used to index ride origins; precision 5
// cells are ~5 km across, a sane prefilter for neighborhood-scale searches.
const geohashPrecision = 5

type RideService struct {
	repo  repository.RideRepository
	cache Cache
	log   *logrus.Logger
	now   func() time.Time
}

type RideServiceOption func(*RideService)

func WithLogger(log *logrus.Logger) RideServiceOption {
	return func(s *RideService) { s.log = log }
}

func WithClock(now func() time.Time) RideServiceOption {
	return func(s *RideService) { s.now = now }
}

func NewRideService(repo repository.RideRepository, cache Cache, opts ...RideServiceOption) *RideService {
	service := &RideService{
		repo:  repo,
		cache: cache,
		log:   logrus.New(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *RideService) CreateRide(ctx context.Context, input CreateRideInput) (*domain.Ride, error) {
	if input.DriverID == "" {
		return nil, fmt.Errorf("driver_id is required: %w", domain.ErrInvalidRequest)
	}
	if input.TotalSeats <= 0 || input.TotalSeats > domain.MaxSeatsPerReservation {
		return nil, fmt.Errorf("total_seats must be between 1 and %d: %w",
			domain.MaxSeatsPerReservation, domain.ErrInvalidRequest)
	}
	if input.PriceCents < 0 {
		return nil, fmt.Errorf("price_cents must not be negative: %w", domain.ErrInvalidRequest)
	}
	if !input.DepartureTime.After(s.now()) {
		return nil, fmt.Errorf("departure_time must be in the future: %w", domain.ErrInvalidRequest)
	}
	if err := validateLocation(input.Origin); err != nil {
		return nil, err
	}
	if err := validateLocation(input.Destination); err != nil {
		return nil, err
	}

	ride := &domain.Ride{
		ID:            uuid.NewString(),
		DriverID:      input.DriverID,
		Origin:        input.Origin,
		Destination:   input.Destination,
		DepartureTime: input.DepartureTime,
		TotalSeats:    input.TotalSeats,
		PriceCents:    input.PriceCents,
		Vehicle:       input.Vehicle,
		Notes:         input.Notes,
		Status:        domain.RideStatusActive,
	}
	ride.Origin.Geohash = geohash.EncodeWithPrecision(ride.Origin.Lat, ride.Origin.Lng, geohashPrecision)
	ride.Destination.Geohash = geohash.EncodeWithPrecision(ride.Destination.Lat, ride.Destination.Lng, geohashPrecision)

	if err := s.repo.Create(ctx, ride); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"ride_id":   ride.ID,
		"driver_id": ride.DriverID,
		"seats":     ride.TotalSeats,
	}).Info("ride created")
	return ride, nil
}

func (s *RideService) GetRide(ctx context.Context, id string) (*domain.Ride, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetRide(ctx, id); err == nil && cached != nil {
			return cached, nil
		}
	}

	ride, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetRide(ctx, ride)
	}
	return ride, nil
}

func (s *RideService) ListByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	return s.repo.ListByDriver(ctx, driverID)
}

// SearchRides prefilters by geohash cell (the search cell plus its eight
// neighbors) and refines with an exact haversine radius check. Wide radii
// skip the prefilter rather than miss rides beyond the neighbor ring.
func (s *RideService) SearchRides(ctx context.Context, params SearchParams) ([]domain.Ride, error) {
	if params.RadiusKm <= 0 {
		params.RadiusKm = 10
	}
	if params.MinSeats <= 0 {
		params.MinSeats = 1
	}
	from := params.From
	if from.IsZero() {
		from = s.now()
	}

	q := repository.RideSearch{MinSeats: params.MinSeats, DepartingAfter: from}
	if params.RadiusKm <= 10 {
		center := geohash.EncodeWithPrecision(params.OriginLat, params.OriginLng, geohashPrecision)
		q.GeohashPrefixes = append(geohash.Neighbors(center), center)
	}

	rides, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	filtered := make([]domain.Ride, 0, len(rides))
	for _, ride := range rides {
		dist := haversineKm(params.OriginLat, params.OriginLng, ride.Origin.Lat, ride.Origin.Lng)
		if dist <= params.RadiusKm {
			filtered = append(filtered, ride)
		}
	}
	return filtered, nil
}

func (s *RideService) CancelRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := s.repo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, fmt.Errorf("only the driver may cancel ride %s: %w", rideID, domain.ErrUnauthorized)
	}
	if ride.Status == domain.RideStatusCompleted || ride.Status == domain.RideStatusCancelled {
		return nil, fmt.Errorf("ride %s is already %s: %w", rideID, ride.Status, domain.ErrInvalidTransition)
	}

	updated, err := s.repo.UpdateStatus(ctx, rideID, domain.RideStatusCancelled)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateRide(ctx, rideID)
	}
	return updated, nil
}

func validateLocation(loc domain.Location) error {
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		return fmt.Errorf("coordinates out of range: %w", domain.ErrInvalidRequest)
	}
	return nil
}

// haversineKm returns the great-circle distance between two points in km.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0

	rad := math.Pi / 180.0
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

var _ RideUseCase = (*RideService)(nil)
