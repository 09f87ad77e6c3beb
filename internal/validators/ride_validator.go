package validators

import (
	"ridehail/internal/models"
)

type UpdateRideStatusRequest struct {
	Status   models.RideStatus   `json:"status" validate:"required,ride_status"`
	Location *models.Coordinates `json:"location,omitempty"`
}

type RateRideRequest struct {
	Rating   float64 `json:"rating" validate:"required,rating_value"`
	Feedback string  `json:"feedback" validate:"omitempty,max=500"`
}

type UpdateLocationRequest struct {
	Coordinates models.Coordinates `json:"coordinates" validate:"required"`
}

type ToggleAvailabilityRequest struct {
	IsAvailable *bool `json:"is_available" validate:"required"`
}

type ChatMessageRequest struct {
	RideID  string `json:"ride_id" validate:"required,object_id"`
	Message string `json:"message" validate:"required,max=1000"`
}

// RideEventRequest carries a ride id for websocket events addressed to one
// ride, such as acceptRide and updateRideStatus.
type RideEventRequest struct {
	RideID   string              `json:"ride_id" validate:"required,object_id"`
	Status   models.RideStatus   `json:"status,omitempty" validate:"omitempty,ride_status"`
	Location *models.Coordinates `json:"location,omitempty"`
}
