package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vkurasov/ridepool/internal/domain"
	"github.com/vkurasov/ridepool/internal/service/rides"
)

// MockRideUseCase is a mock implementation of rides.RideUseCase
type MockRideUseCase struct {
	mock.Mock
}

func (m *MockRideUseCase) CreateRide(ctx context.Context, input rides.CreateRideInput) (*domain.Ride, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) GetRide(ctx context.Context, id string) (*domain.Ride, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) ListByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	args := m.Called(ctx, driverID)
	return args.Get(0).([]domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) SearchRides(ctx context.Context, params rides.SearchParams) ([]domain.Ride, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]domain.Ride), args.Error(1)
}

func (m *MockRideUseCase) CancelRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	args := m.Called(ctx, rideID, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func TestRideHandler_create(t *testing.T) {
	mockService := &MockRideUseCase{}
	handler := NewRideHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	departure := time.Date(2026, 9, 5, 8, 0, 0, 0, time.UTC)
	input := rides.CreateRideInput{
		DriverID:      "driver-1",
		Origin:        domain.Location{Address: "Jakarta", Lat: -6.2088, Lng: 106.8456},
		Destination:   domain.Location{Address: "Bandung", Lat: -6.9175, Lng: 107.6191},
		DepartureTime: departure,
		TotalSeats:    3,
		PriceCents:    5000,
	}
	body, _ := json.Marshal(input)
	c.Request = httptest.NewRequest("POST", "/rides", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	ride := &domain.Ride{
		ID:            "ride-1",
		DriverID:      "driver-1",
		DepartureTime: departure,
		TotalSeats:    3,
		PriceCents:    5000,
		Status:        domain.RideStatusActive,
	}

	mockService.On("CreateRide", c.Request.Context(), input).Return(ride, nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response domain.Ride
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "ride-1", response.ID)
	assert.Equal(t, domain.RideStatusActive, response.Status)

	mockService.AssertExpectations(t)
}

func TestRideHandler_search(t *testing.T) {
	mockService := &MockRideUseCase{}
	handler := NewRideHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest("GET",
		"/rides?origin_lat=-6.2088&origin_lng=106.8456&radius_km=5&min_seats=2", nil)

	mockService.On("SearchRides", c.Request.Context(), rides.SearchParams{
		OriginLat: -6.2088,
		OriginLng: 106.8456,
		RadiusKm:  5,
		MinSeats:  2,
	}).Return([]domain.Ride{{ID: "ride-1"}}, nil)

	handler.search(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response []domain.Ride
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Len(t, response, 1)

	mockService.AssertExpectations(t)
}

func TestRideHandler_search_byDriver(t *testing.T) {
	mockService := &MockRideUseCase{}
	handler := NewRideHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest("GET", "/rides?driver_id=driver-1", nil)

	mockService.On("ListByDriver", c.Request.Context(), "driver-1").
		Return([]domain.Ride{{ID: "ride-1"}, {ID: "ride-2"}}, nil)

	handler.search(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertNotCalled(t, "SearchRides", mock.Anything, mock.Anything)
	mockService.AssertExpectations(t)
}

func TestRideHandler_search_badFrom(t *testing.T) {
	mockService := &MockRideUseCase{}
	handler := NewRideHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest("GET", "/rides?from=yesterday", nil)

	handler.search(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "SearchRides", mock.Anything, mock.Anything)
}

func TestRideHandler_cancel(t *testing.T) {
	mockService := &MockRideUseCase{}
	handler := NewRideHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "id", Value: "ride-1"}}
	body, _ := json.Marshal(cancelRideRequest{DriverID: "driver-1"})
	c.Request = httptest.NewRequest("POST", "/rides/ride-1/cancel", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	cancelled := &domain.Ride{ID: "ride-1", DriverID: "driver-1", Status: domain.RideStatusCancelled}
	mockService.On("CancelRide", c.Request.Context(), "ride-1", "driver-1").Return(cancelled, nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response domain.Ride
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, domain.RideStatusCancelled, response.Status)

	mockService.AssertExpectations(t)
}
