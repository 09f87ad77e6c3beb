package interfaces

import (
	"context"

	"ridehail/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateRating(ctx context.Context, id primitive.ObjectID, rating float64) error
}
