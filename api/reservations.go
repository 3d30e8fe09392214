package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vkurasov/ridepool/internal/domain"
	"github.com/vkurasov/ridepool/internal/service/reservation"
)

type ReservationHandler struct {
	service reservation.ReservationUseCase
}

type createReservationRequest struct {
	RideID      string    `json:"ride_id"`
	PassengerID string    `json:"passenger_id"`
	Seats       int       `json:"seats"`
	PickupAt    time.Time `json:"pickup_at"`
	DropoffAt   time.Time `json:"dropoff_at"`
}

type transitionRequest struct {
	ActorID  string `json:"actor_id"`
	Reason   string `json:"reason"`
	Override bool   `json:"override"`
}

func NewReservationHandler(service reservation.ReservationUseCase) *ReservationHandler {
	return &ReservationHandler{service: service}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.POST("/:id/approve", h.transition(domain.ActionApprove))
	router.POST("/:id/reject", h.transition(domain.ActionReject))
	router.POST("/:id/cancel", h.transition(domain.ActionCancel))
	router.POST("/:id/complete", h.transition(domain.ActionComplete))
}

func (h *ReservationHandler) create(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.service.CreateReservation(c.Request.Context(), reservation.CreateReservationInput{
		RideID:      req.RideID,
		PassengerID: req.PassengerID,
		Seats:       req.Seats,
		PickupAt:    req.PickupAt,
		DropoffAt:   req.DropoffAt,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *ReservationHandler) transition(action domain.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := h.service.Transition(c.Request.Context(), reservation.TransitionInput{
			ReservationID: c.Param("id"),
			Action:        action,
			ActorID:       req.ActorID,
			Reason:        req.Reason,
			Override:      req.Override,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, res)
	}
}

func (h *ReservationHandler) get(c *gin.Context) {
	res, err := h.service.GetReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ReservationHandler) list(c *gin.Context) {
	filter := reservation.ListFilter{
		RideID:      c.Query("ride_id"),
		PassengerID: c.Query("passenger_id"),
	}
	for _, s := range c.QueryArray("status") {
		filter.Statuses = append(filter.Statuses, domain.ReservationStatus(s))
	}

	reservations, err := h.service.ListReservations(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, reservations)
}
