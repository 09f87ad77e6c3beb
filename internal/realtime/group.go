package realtime

import (
	"fmt"

	"ridehail/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GroupKind int

const (
	GroupKindAvailable GroupKind = iota + 1
	GroupKindGender
	GroupKindRide
)

// GroupID names a broadcast group. The zero value is not a valid group.
type GroupID struct {
	kind GroupKind
	key  string
}

// AvailablePool is the group of every rider session currently accepting rides.
func AvailablePool() GroupID {
	return GroupID{kind: GroupKindAvailable}
}

// GenderPool is the subset of available riders that declared gender g.
func GenderPool(g models.Gender) GroupID {
	return GroupID{kind: GroupKindGender, key: string(g)}
}

// RideChannel carries location, status and chat events for one ride.
func RideChannel(rideID primitive.ObjectID) GroupID {
	return GroupID{kind: GroupKindRide, key: rideID.Hex()}
}

func (g GroupID) Kind() GroupKind {
	return g.kind
}

func (g GroupID) Key() string {
	return g.key
}

func (g GroupID) String() string {
	switch g.kind {
	case GroupKindAvailable:
		return "available"
	case GroupKindGender:
		return fmt.Sprintf("gender:%s", g.key)
	case GroupKindRide:
		return fmt.Sprintf("ride:%s", g.key)
	default:
		return "invalid"
	}
}
