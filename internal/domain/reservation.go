package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusApproved  ReservationStatus = "approved"
	ReservationStatusRejected  ReservationStatus = "rejected"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusCompleted ReservationStatus = "completed"
)

// Terminal reports whether no further transition is permitted from s.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationStatusRejected, ReservationStatusCancelled, ReservationStatusCompleted:
		return true
	}
	return false
}

// Counted reports whether reservations in s hold seats against ride capacity.
func (s ReservationStatus) Counted() bool {
	return s == ReservationStatusPending || s == ReservationStatusApproved
}

type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

type ActorRole string

const (
	ActorDriver    ActorRole = "driver"
	ActorPassenger ActorRole = "passenger"
	ActorSystem    ActorRole = "system"
)

const MaxSeatsPerReservation = 7

type Reservation struct {
	ID           string            `json:"id"`
	RideID       string            `json:"ride_id"`
	PassengerID  string            `json:"passenger_id"`
	Seats        int               `json:"seats"`
	AmountCents  int64             `json:"amount_cents"`
	Status       ReservationStatus `json:"status"`
	RefundPct    *float64          `json:"refund_pct,omitempty"`
	PickupAt     time.Time         `json:"pickup_at"`
	DropoffAt    time.Time         `json:"dropoff_at"`
	PickedUpAt   *time.Time        `json:"picked_up_at,omitempty"`
	DroppedOffAt *time.Time        `json:"dropped_off_at,omitempty"`
	CancelReason string            `json:"cancel_reason,omitempty"`
	CancelledBy  ActorRole         `json:"cancelled_by,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type edge struct {
	To     ReservationStatus
	Actors []ActorRole
}

// transitions is the single source of truth for the reservation lifecycle.
// Any (status, action) pair absent here is invalid.
var transitions = map[ReservationStatus]map[Action]edge{
	ReservationStatusPending: {
		ActionApprove: {To: ReservationStatusApproved, Actors: []ActorRole{ActorDriver}},
		ActionReject:  {To: ReservationStatusRejected, Actors: []ActorRole{ActorDriver}},
		ActionCancel:  {To: ReservationStatusCancelled, Actors: []ActorRole{ActorPassenger, ActorSystem}},
	},
	ReservationStatusApproved: {
		ActionCancel:   {To: ReservationStatusCancelled, Actors: []ActorRole{ActorPassenger, ActorDriver, ActorSystem}},
		ActionComplete: {To: ReservationStatusCompleted, Actors: []ActorRole{ActorDriver}},
	},
}

// NextStatus returns the target status for (from, action) and whether the
// edge exists in the lifecycle table.
func NextStatus(from ReservationStatus, action Action) (ReservationStatus, bool) {
	e, ok := transitions[from][action]
	if !ok {
		return "", false
	}
	return e.To, true
}

// ActorAllowed reports whether role may perform action from the given status.
// It returns false for edges that do not exist at all.
func ActorAllowed(from ReservationStatus, action Action, role ActorRole) bool {
	e, ok := transitions[from][action]
	if !ok {
		return false
	}
	for _, r := range e.Actors {
		if r == role {
			return true
		}
	}
	return false
}
