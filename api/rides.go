package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vkurasov/ridepool/internal/domain"
	"github.com/vkurasov/ridepool/internal/service/rides"
)

type RideHandler struct {
	service rides.RideUseCase
}

type createRideRequest struct {
	DriverID      string          `json:"driver_id"`
	Origin        domain.Location `json:"origin"`
	Destination   domain.Location `json:"destination"`
	DepartureTime time.Time       `json:"departure_time"`
	TotalSeats    int             `json:"total_seats"`
	PriceCents    int64           `json:"price_cents"`
	Vehicle       domain.Vehicle  `json:"vehicle"`
	Notes         string          `json:"notes"`
}

type cancelRideRequest struct {
	DriverID string `json:"driver_id"`
}

func NewRideHandler(service rides.RideUseCase) *RideHandler {
	return &RideHandler{service: service}
}

func (h *RideHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/", h.search)
	router.GET("/:id", h.get)
	router.POST("/:id/cancel", h.cancel)
}

func (h *RideHandler) create(c *gin.Context) {
	var req createRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ride, err := h.service.CreateRide(c.Request.Context(), rides.CreateRideInput{
		DriverID:      req.DriverID,
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureTime: req.DepartureTime,
		TotalSeats:    req.TotalSeats,
		PriceCents:    req.PriceCents,
		Vehicle:       req.Vehicle,
		Notes:         req.Notes,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ride)
}

func (h *RideHandler) get(c *gin.Context) {
	ride, err := h.service.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ride)
}

func (h *RideHandler) search(c *gin.Context) {
	if driverID := c.Query("driver_id"); driverID != "" {
		list, err := h.service.ListByDriver(c.Request.Context(), driverID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
		return
	}

	params := rides.SearchParams{
		OriginLat: queryFloat(c, "origin_lat"),
		OriginLng: queryFloat(c, "origin_lng"),
		RadiusKm:  queryFloat(c, "radius_km"),
		MinSeats:  queryInt(c, "min_seats"),
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		params.From = t
	}

	list, err := h.service.SearchRides(c.Request.Context(), params)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (h *RideHandler) cancel(c *gin.Context) {
	var req cancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ride, err := h.service.CancelRide(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ride)
}

func queryFloat(c *gin.Context, name string) float64 {
	v, _ := strconv.ParseFloat(c.Query(name), 64)
	return v
}

func queryInt(c *gin.Context, name string) int {
	v, _ := strconv.Atoi(c.Query(name))
	return v
}
