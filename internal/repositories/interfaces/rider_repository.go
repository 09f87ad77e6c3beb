package interfaces

import (
	"context"

	"ridehail/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RiderRepository interface {
	Create(ctx context.Context, rider *models.Rider) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Rider, error)
	UpdateAvailability(ctx context.Context, id primitive.ObjectID, available bool) error
	UpdateLocation(ctx context.Context, id primitive.ObjectID, coords models.Coordinates) error
	UpdateRating(ctx context.Context, id primitive.ObjectID, rating float64) error
}
