package domain

import "time"

type RideStatus string

const (
	RideStatusActive    RideStatus = "active"
	RideStatusFull      RideStatus = "full"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// Finished reports whether the ride is done taking reservations for good.
// A full ride is not finished: seats freed by cancellations flip it back
// to active, and a request against it is a capacity problem, not an
// availability one.
func (s RideStatus) Finished() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

type Location struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Geohash string  `json:"geohash,omitempty"`
}

type Vehicle struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	LicensePlate string `json:"license_plate"`
}

type Ride struct {
	ID            string     `json:"id"`
	DriverID      string     `json:"driver_id"`
	Origin        Location   `json:"origin"`
	Destination   Location   `json:"destination"`
	DepartureTime time.Time  `json:"departure_time"`
	TotalSeats    int        `json:"total_seats"`
	PriceCents    int64      `json:"price_cents"`
	Vehicle       Vehicle    `json:"vehicle"`
	Notes         string     `json:"notes,omitempty"`
	Status        RideStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
