package domain

// Event types recorded in the outbox for every committed state change.
const (
	EventReservationRequested = "reservation_requested"
	EventReservationApproved  = "reservation_approved"
	EventReservationRejected  = "reservation_rejected"
	EventReservationCancelled = "reservation_cancelled"
	EventReservationCompleted = "reservation_completed"
	EventReservationExpired   = "reservation_expired"
)

// Event is the payload relayed from the outbox to downstream consumers
// (payment gateway, notification dispatcher). DriverID is denormalized in
// so consumers can reach both parties without a ride lookup.
type Event struct {
	Type        string      `json:"type"`
	DriverID    string      `json:"driver_id"`
	Reservation Reservation `json:"reservation"`
}
