package domain

import "errors"

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrRideUnavailable      = errors.New("ride is not available for booking")
	ErrInsufficientCapacity = errors.New("not enough free seats")
	ErrUnauthorized         = errors.New("actor is not allowed to perform this action")
	ErrInvalidTransition    = errors.New("transition is not allowed from the current status")
	ErrTerminalState        = errors.New("reservation is in a terminal status")
	ErrConcurrencyTimeout   = errors.New("timed out waiting for ride lock, retry")
	ErrNotFound             = errors.New("not found")
)
