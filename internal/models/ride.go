package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string
type GenderPreference string
type PaymentMethod string
type PaymentStatus string

const (
	RideStatusRequested  RideStatus = "requested"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusInProgress RideStatus = "in-progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"

	GenderPreferenceMale   GenderPreference = "male"
	GenderPreferenceFemale GenderPreference = "female"
	GenderPreferenceNone   GenderPreference = "no_preference"

	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodPaypal     PaymentMethod = "paypal"
	PaymentMethodCash       PaymentMethod = "cash"

	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type Ride struct {
	ID                   primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID               primitive.ObjectID  `json:"user_id" bson:"user_id"`
	RiderID              *primitive.ObjectID `json:"rider_id" bson:"rider_id"`
	PreferredRiderGender GenderPreference    `json:"preferred_rider_gender" bson:"preferred_rider_gender"`
	PickupLocation       Location            `json:"pickup_location" bson:"pickup_location"`
	DropoffLocation      Location            `json:"dropoff_location" bson:"dropoff_location"`
	Status               RideStatus          `json:"status" bson:"status"`
	RequestTime          time.Time           `json:"request_time" bson:"request_time"`
	AcceptTime           *time.Time          `json:"accept_time,omitempty" bson:"accept_time,omitempty"`
	PickupTime           *time.Time          `json:"pickup_time,omitempty" bson:"pickup_time,omitempty"`
	DropoffTime          *time.Time          `json:"dropoff_time,omitempty" bson:"dropoff_time,omitempty"`
	Fare                 Fare                `json:"fare" bson:"fare"`
	PaymentStatus        PaymentStatus       `json:"payment_status" bson:"payment_status"`
	PaymentMethod        PaymentMethod       `json:"payment_method" bson:"payment_method"`
	Route                *Route              `json:"route,omitempty" bson:"route,omitempty"`
	UserRating           *float64            `json:"user_rating,omitempty" bson:"user_rating,omitempty"`
	RiderRating          *float64            `json:"rider_rating,omitempty" bson:"rider_rating,omitempty"`
	UserFeedback         string              `json:"user_feedback,omitempty" bson:"user_feedback,omitempty"`
	RiderFeedback        string              `json:"rider_feedback,omitempty" bson:"rider_feedback,omitempty"`
	CreatedAt            time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at" bson:"updated_at"`
}

type Fare struct {
	BaseFare float64 `json:"base_fare" bson:"base_fare"`
	Distance float64 `json:"distance" bson:"distance"` // distance cost
	Duration float64 `json:"duration" bson:"duration"` // duration cost
	Total    float64 `json:"total" bson:"total"`
}

type Route struct {
	Distance float64 `json:"distance" bson:"distance"` // kilometers
	Duration int     `json:"duration" bson:"duration"` // minutes
	Polyline string  `json:"polyline,omitempty" bson:"polyline,omitempty"`
}

// RideRequest is the payload a user submits to request a ride. A nil Fare is
// estimated from the pickup and dropoff coordinates.
type RideRequest struct {
	UserID               primitive.ObjectID `json:"-"`
	PickupLocation       Location           `json:"pickup_location" validate:"required"`
	DropoffLocation      Location           `json:"dropoff_location" validate:"required"`
	PreferredRiderGender GenderPreference   `json:"preferred_rider_gender" validate:"omitempty,oneof=male female no_preference"`
	Fare                 *Fare              `json:"fare,omitempty"`
	PaymentMethod        PaymentMethod      `json:"payment_method" validate:"omitempty,oneof=credit_card paypal cash"`
}

// IsAssigned reports whether a rider has been attached to the ride.
func (r *Ride) IsAssigned() bool {
	return r.RiderID != nil && !r.RiderID.IsZero()
}

func (r *Ride) AssignedTo(riderID primitive.ObjectID) bool {
	return r.IsAssigned() && *r.RiderID == riderID
}

func (g GenderPreference) IsValid() bool {
	switch g {
	case GenderPreferenceMale, GenderPreferenceFemale, GenderPreferenceNone:
		return true
	}
	return false
}

// Stored field names used in partial ride updates.
const (
	RideFieldStatus        = "status"
	RideFieldRiderID       = "rider_id"
	RideFieldAcceptTime    = "accept_time"
	RideFieldPickupTime    = "pickup_time"
	RideFieldDropoffTime   = "dropoff_time"
	RideFieldUserRating    = "user_rating"
	RideFieldRiderRating   = "rider_rating"
	RideFieldUserFeedback  = "user_feedback"
	RideFieldRiderFeedback = "rider_feedback"
)
