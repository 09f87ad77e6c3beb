package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Gender string
type VehicleType string

const (
	GenderMale         Gender = "male"
	GenderFemale       Gender = "female"
	GenderOther        Gender = "other"
	GenderNotSpecified Gender = "not_specified"

	VehicleTypeBike       VehicleType = "bike"
	VehicleTypeMotorcycle VehicleType = "motorcycle"
	VehicleTypeCar        VehicleType = "car"
	VehicleTypeVan        VehicleType = "van"
	VehicleTypeTruck      VehicleType = "truck"
)

// Rider is the transport provider who accepts and drives rides.
type Rider struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name            string             `json:"name" bson:"name"`
	Gender          Gender             `json:"gender" bson:"gender"`
	Email           string             `json:"email" bson:"email"`
	Phone           string             `json:"phone" bson:"phone"`
	ProfilePicture  string             `json:"profile_picture" bson:"profile_picture"`
	VehicleDetails  VehicleDetails     `json:"vehicle_details" bson:"vehicle_details"`
	CurrentLocation *CurrentLocation   `json:"current_location,omitempty" bson:"current_location,omitempty"`
	IsAvailable     bool               `json:"is_available" bson:"is_available"`
	Rating          float64            `json:"rating" bson:"rating"`
	FCMToken        string             `json:"-" bson:"fcm_token,omitempty"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

type VehicleDetails struct {
	Type         VehicleType `json:"type" bson:"type"`
	Model        string      `json:"model" bson:"model"`
	LicensePlate string      `json:"license_plate" bson:"license_plate"`
	Color        string      `json:"color" bson:"color"`
}

// RiderSummary is the public view of a rider sent to the requester on accept.
type RiderSummary struct {
	ID             primitive.ObjectID `json:"id"`
	Name           string             `json:"name"`
	ProfilePicture string             `json:"profile_picture"`
	VehicleDetails VehicleDetails     `json:"vehicle_details"`
	Rating         float64            `json:"rating"`
}

func (r *Rider) Summary() *RiderSummary {
	return &RiderSummary{
		ID:             r.ID,
		Name:           r.Name,
		ProfilePicture: r.ProfilePicture,
		VehicleDetails: r.VehicleDetails,
		Rating:         r.Rating,
	}
}

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderNotSpecified:
		return true
	}
	return false
}
