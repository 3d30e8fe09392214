package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vkurasov/ridepool/internal/domain"
)

// statusFromError maps core error kinds onto HTTP status codes. The core
// itself carries no transport knowledge; this is the only place the mapping
// lives.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRideUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientCapacity),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTerminalState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConcurrencyTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFromError(err)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
