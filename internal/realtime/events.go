package realtime

import (
	"time"

	"ridehail/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Outbound event names.
const (
	EventNewRideRequest    = "newRideRequest"
	EventRideAccepted      = "rideAccepted"
	EventRideUnavailable   = "rideUnavailable"
	EventRiderLocation     = "riderLocation"
	EventRideStatusUpdated = "rideStatusUpdated"
	EventNewMessage        = "newMessage"
	EventError             = "errorMessage"
)

type RideAcceptedPayload struct {
	Ride  *models.Ride         `json:"ride"`
	Rider *models.RiderSummary `json:"rider,omitempty"`
}

type RideUnavailablePayload struct {
	RideID primitive.ObjectID `json:"ride_id"`
}

type RiderLocationPayload struct {
	RideID      primitive.ObjectID `json:"ride_id"`
	RiderID     primitive.ObjectID `json:"rider_id"`
	Coordinates models.Coordinates `json:"coordinates"`
	Timestamp   time.Time          `json:"timestamp"`
}

type RideStatusPayload struct {
	RideID    primitive.ObjectID  `json:"ride_id"`
	Status    models.RideStatus   `json:"status"`
	Location  *models.Coordinates `json:"location,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

type ChatMessagePayload struct {
	RideID     primitive.ObjectID `json:"ride_id"`
	SenderID   primitive.ObjectID `json:"sender_id"`
	SenderKind models.ActorKind   `json:"sender_kind"`
	Message    string             `json:"message"`
	Timestamp  time.Time          `json:"timestamp"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
