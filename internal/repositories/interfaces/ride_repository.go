package interfaces

import (
	"context"

	"ridehail/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideCondition is the expected prior state of a ride for a conditional
// update. A zero RiderID with RequireUnassigned false places no constraint on
// the assigned rider.
type RideCondition struct {
	Status            models.RideStatus
	RiderID           *primitive.ObjectID
	RequireUnassigned bool
}

// RideFilter selects rides for history and aggregation queries. Empty fields
// do not constrain the result.
type RideFilter struct {
	UserID           *primitive.ObjectID
	RiderID          *primitive.ObjectID
	Statuses         []models.RideStatus
	PreferredGenders []models.GenderPreference
	Unassigned       bool
	HasUserRating    bool
	HasRiderRating   bool
}

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	// ConditionalUpdate applies updates only if the stored ride still matches
	// cond. It reports whether the write was applied.
	ConditionalUpdate(ctx context.Context, id primitive.ObjectID, cond RideCondition, updates map[string]interface{}) (bool, error)

	// Find returns matching rides, most recently requested first.
	Find(ctx context.Context, filter RideFilter) ([]*models.Ride, error)
}
