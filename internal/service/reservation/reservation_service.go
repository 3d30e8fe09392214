package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vkurasov/ridepool/internal/domain"
	"github.com/vkurasov/ridepool/internal/repository"
)

type ReservationUseCase interface {
	CreateReservation(ctx context.Context, input CreateReservationInput) (*domain.Reservation, error)
	Transition(ctx context.Context, input TransitionInput) (*domain.Reservation, error)
	GetReservation(ctx context.Context, id string) (*domain.Reservation, error)
	ListReservations(ctx context.Context, filter ListFilter) ([]domain.Reservation, error)
	Release(ctx context.Context, id string) (*domain.Reservation, error)
	ExpirePendingReservations(ctx context.Context) ([]domain.Reservation, error)
}

// Locker is the per-ride lease. Implementations must bound the hold time
// with a TTL so a crashed holder cannot starve a ride.
type Locker interface {
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseRideLock(ctx context.Context, rideID, token string) error
}

type ReservationService struct {
	reservations     repository.ReservationRepository
	rides            repository.RideRepository
	locker           Locker
	refund           RefundPolicy
	minDepartureLead time.Duration
	pendingTTL       time.Duration
	lockLease        time.Duration
	lockWait         time.Duration
	log              *logrus.Logger
	now              func() time.Time
}

type CreateReservationInput struct {
	RideID      string    `json:"ride_id"`
	PassengerID string    `json:"passenger_id"`
	Seats       int       `json:"seats"`
	PickupAt    time.Time `json:"pickup_at"`
	DropoffAt   time.Time `json:"dropoff_at"`
}

type TransitionInput struct {
	ReservationID string
	Action        domain.Action
	ActorID       string
	Reason        string
	// Override lets a driver complete before the scheduled departure.
	Override bool
}

type ListFilter struct {
	RideID      string
	PassengerID string
	Statuses    []domain.ReservationStatus
}

type ReservationServiceOption func(*ReservationService)

func WithLogger(log *logrus.Logger) ReservationServiceOption {
	return func(s *ReservationService) { s.log = log }
}

func WithLockBounds(lease, wait time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if lease > 0 {
			s.lockLease = lease
		}
		if wait > 0 {
			s.lockWait = wait
		}
	}
}

func WithMinDepartureLead(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) { s.minDepartureLead = d }
}

func WithPendingTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) { s.pendingTTL = d }
}

func WithClock(now func() time.Time) ReservationServiceOption {
	return func(s *ReservationService) { s.now = now }
}

func NewReservationService(
	reservations repository.ReservationRepository,
	rides repository.RideRepository,
	locker Locker,
	refund RefundPolicy,
	opts ...ReservationServiceOption,
) *ReservationService {
	service := &ReservationService{
		reservations:     reservations,
		rides:            rides,
		locker:           locker,
		refund:           refund,
		minDepartureLead: 30 * time.Minute,
		pendingTTL:       30 * time.Minute,
		lockLease:        10 * time.Second,
		lockWait:         5 * time.Second,
		log:              logrus.New(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *ReservationService) CreateReservation(ctx context.Context, input CreateReservationInput) (*domain.Reservation, error) {
	if input.Seats <= 0 || input.Seats > domain.MaxSeatsPerReservation {
		return nil, fmt.Errorf("seats must be between 1 and %d: %w", domain.MaxSeatsPerReservation, domain.ErrInvalidRequest)
	}
	if input.RideID == "" || input.PassengerID == "" {
		return nil, fmt.Errorf("ride_id and passenger_id are required: %w", domain.ErrInvalidRequest)
	}

	ride, err := s.rides.GetByID(ctx, input.RideID)
	if err != nil {
		return nil, err
	}
	// A full ride is not rejected here: seat exhaustion must surface as a
	// capacity error from the ledger check, and seats may have freed up
	// since the status was written.
	if ride.Status.Finished() {
		return nil, fmt.Errorf("ride %s is %s: %w", ride.ID, ride.Status, domain.ErrRideUnavailable)
	}
	if ride.DepartureTime.Before(s.now().Add(s.minDepartureLead)) {
		return nil, fmt.Errorf("ride %s departs too soon: %w", ride.ID, domain.ErrRideUnavailable)
	}
	if ride.DriverID == input.PassengerID {
		return nil, fmt.Errorf("driver cannot book own ride: %w", domain.ErrInvalidRequest)
	}

	unlock, err := s.lockRide(ctx, ride.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	res := &domain.Reservation{
		ID:          uuid.NewString(),
		RideID:      ride.ID,
		PassengerID: input.PassengerID,
		Seats:       input.Seats,
		AmountCents: int64(input.Seats) * ride.PriceCents,
		PickupAt:    input.PickupAt,
		DropoffAt:   input.DropoffAt,
	}
	if res.PickupAt.IsZero() {
		res.PickupAt = ride.DepartureTime
	}

	// Capacity is re-derived from the ledger under the ride row lock inside
	// this call; the lease above only keeps contending requests from piling
	// up on the database.
	if err := s.reservations.CreatePending(ctx, res); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"ride_id":        res.RideID,
		"seats":          res.Seats,
	}).Info("reservation created")
	return res, nil
}

func (s *ReservationService) Transition(ctx context.Context, input TransitionInput) (*domain.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, input.ReservationID)
	if err != nil {
		return nil, err
	}
	if res.Status.Terminal() {
		return nil, fmt.Errorf("reservation %s is %s: %w", res.ID, res.Status, domain.ErrTerminalState)
	}

	to, ok := domain.NextStatus(res.Status, input.Action)
	if !ok {
		return nil, fmt.Errorf("%s from %s: %w", input.Action, res.Status, domain.ErrInvalidTransition)
	}

	ride, err := s.rides.GetByID(ctx, res.RideID)
	if err != nil {
		return nil, err
	}
	role, ok := actorRole(input.ActorID, res, ride)
	if !ok || !domain.ActorAllowed(res.Status, input.Action, role) {
		return nil, fmt.Errorf("actor %s may not %s reservation %s: %w",
			input.ActorID, input.Action, res.ID, domain.ErrUnauthorized)
	}

	upd := repository.StatusUpdate{}
	var eventType string
	switch input.Action {
	case domain.ActionApprove:
		eventType = domain.EventReservationApproved
	case domain.ActionReject:
		if input.Reason == "" {
			return nil, fmt.Errorf("rejection requires a reason: %w", domain.ErrInvalidRequest)
		}
		eventType = domain.EventReservationRejected
		upd.CancelReason = input.Reason
		upd.CancelledBy = role
	case domain.ActionCancel:
		eventType = domain.EventReservationCancelled
		upd.CancelReason = input.Reason
		upd.CancelledBy = role
		if res.Status == domain.ReservationStatusApproved {
			pct := s.refund.Calculate(res.PickupAt, s.now(), role)
			upd.RefundPct = &pct
		}
	case domain.ActionComplete:
		if !input.Override && s.now().Before(ride.DepartureTime) {
			return nil, fmt.Errorf("ride has not departed yet: %w", domain.ErrInvalidRequest)
		}
		eventType = domain.EventReservationCompleted
		droppedOff := s.now()
		upd.DroppedOffAt = &droppedOff
	default:
		return nil, fmt.Errorf("unknown action %q: %w", input.Action, domain.ErrInvalidRequest)
	}

	// Transitions that free counted seats contend with reserve on capacity,
	// so they take the same per-ride lease.
	if !to.Counted() && to != domain.ReservationStatusCompleted {
		unlock, err := s.lockRide(ctx, res.RideID)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	updated, err := s.reservations.UpdateStatus(ctx, res.ID, res.Status, to, eventType, upd)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"reservation_id": updated.ID,
		"action":         string(input.Action),
		"status":         string(updated.Status),
	}).Info("reservation transitioned")
	return updated, nil
}

func (s *ReservationService) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	return s.reservations.GetByID(ctx, id)
}

func (s *ReservationService) ListReservations(ctx context.Context, filter ListFilter) ([]domain.Reservation, error) {
	switch {
	case filter.RideID != "":
		return s.reservations.ListByRide(ctx, filter.RideID, filter.Statuses...)
	case filter.PassengerID != "":
		return s.reservations.ListByPassenger(ctx, filter.PassengerID, filter.Statuses...)
	default:
		return nil, fmt.Errorf("ride_id or passenger_id filter is required: %w", domain.ErrInvalidRequest)
	}
}

// Release moves a reservation out of capacity-counted statuses on behalf of
// the platform. Calling it on an already-terminal reservation is a no-op.
func (s *ReservationService) Release(ctx context.Context, id string) (*domain.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status.Terminal() {
		return res, nil
	}

	upd := repository.StatusUpdate{
		CancelReason: "released",
		CancelledBy:  domain.ActorSystem,
	}
	if res.Status == domain.ReservationStatusApproved {
		pct := s.refund.Calculate(res.PickupAt, s.now(), domain.ActorSystem)
		upd.RefundPct = &pct
	}

	unlock, err := s.lockRide(ctx, res.RideID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.reservations.UpdateStatus(ctx, res.ID, res.Status,
		domain.ReservationStatusCancelled, domain.EventReservationCancelled, upd)
}

func (s *ReservationService) ExpirePendingReservations(ctx context.Context) ([]domain.Reservation, error) {
	deadline := s.now().Add(-s.pendingTTL)
	expired, err := s.reservations.ExpirePendingBefore(ctx, deadline)
	if err != nil {
		return nil, err
	}
	for _, r := range expired {
		s.log.WithFields(logrus.Fields{
			"reservation_id": r.ID,
			"ride_id":        r.RideID,
		}).Info("pending reservation expired")
	}
	return expired, nil
}

// lockRide acquires the per-ride lease, retrying until lockWait elapses.
// The returned func releases the lease; it is safe to call after the TTL
// already let the lease go.
func (s *ReservationService) lockRide(ctx context.Context, rideID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	deadline := s.now().Add(s.lockWait)
	for {
		token, ok, err := s.locker.AcquireRideLock(ctx, rideID, s.lockLease)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				if err := s.locker.ReleaseRideLock(ctx, rideID, token); err != nil {
					s.log.WithError(err).WithField("ride_id", rideID).Warn("failed to release ride lock")
				}
			}, nil
		}
		if s.now().After(deadline) {
			return nil, fmt.Errorf("ride %s: %w", rideID, domain.ErrConcurrencyTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func actorRole(actorID string, res *domain.Reservation, ride *domain.Ride) (domain.ActorRole, bool) {
	switch actorID {
	case ride.DriverID:
		return domain.ActorDriver, true
	case res.PassengerID:
		return domain.ActorPassenger, true
	}
	return "", false
}

var _ ReservationUseCase = (*ReservationService)(nil)
