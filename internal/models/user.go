package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ActorKind string

const (
	ActorKindUser  ActorKind = "user"
	ActorKindRider ActorKind = "rider"
	ActorKindAdmin ActorKind = "admin"
)

// User is the passenger requesting rides.
type User struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name           string             `json:"name" bson:"name"`
	Email          string             `json:"email" bson:"email"`
	Phone          string             `json:"phone" bson:"phone"`
	ProfilePicture string             `json:"profile_picture" bson:"profile_picture"`
	Rating         float64            `json:"rating" bson:"rating"`
	FCMToken       string             `json:"-" bson:"fcm_token,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// Actor identifies the authenticated principal behind a request or session.
type Actor struct {
	Kind ActorKind          `json:"kind"`
	ID   primitive.ObjectID `json:"id"`
}

func (k ActorKind) IsValid() bool {
	return k == ActorKindUser || k == ActorKindRider || k == ActorKindAdmin
}
