package memory

import (
	"context"
	"sync"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RiderRepository struct {
	mu     sync.RWMutex
	riders map[primitive.ObjectID]*models.Rider
}

func NewRiderRepository() *RiderRepository {
	return &RiderRepository{riders: make(map[primitive.ObjectID]*models.Rider)}
}

var _ interfaces.RiderRepository = (*RiderRepository)(nil)

func (r *RiderRepository) Create(ctx context.Context, rider *models.Rider) error {
	now := time.Now()
	if rider.ID.IsZero() {
		rider.ID = primitive.NewObjectID()
	}
	rider.CreatedAt = now
	rider.UpdatedAt = now

	r.mu.Lock()
	r.riders[rider.ID] = cloneRider(rider)
	r.mu.Unlock()
	return nil
}

func (r *RiderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Rider, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rider, ok := r.riders[id]
	if !ok {
		return nil, utils.NewNotFoundError(utils.ErrRiderNotFound)
	}
	return cloneRider(rider), nil
}

func (r *RiderRepository) UpdateAvailability(ctx context.Context, id primitive.ObjectID, available bool) error {
	return r.update(ctx, id, func(rider *models.Rider) {
		rider.IsAvailable = available
	})
}

func (r *RiderRepository) UpdateLocation(ctx context.Context, id primitive.ObjectID, coords models.Coordinates) error {
	return r.update(ctx, id, func(rider *models.Rider) {
		rider.CurrentLocation = &models.CurrentLocation{
			Coordinates: coords,
			LastUpdated: time.Now(),
		}
	})
}

func (r *RiderRepository) UpdateRating(ctx context.Context, id primitive.ObjectID, rating float64) error {
	return r.update(ctx, id, func(rider *models.Rider) {
		rider.Rating = rating
	})
}

func (r *RiderRepository) update(ctx context.Context, id primitive.ObjectID, fn func(*models.Rider)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rider, ok := r.riders[id]
	if !ok {
		return utils.NewNotFoundError(utils.ErrRiderNotFound)
	}
	fn(rider)
	rider.UpdatedAt = time.Now()
	return nil
}

func cloneRider(rider *models.Rider) *models.Rider {
	c := *rider
	if rider.CurrentLocation != nil {
		loc := *rider.CurrentLocation
		c.CurrentLocation = &loc
	}
	return &c
}

type UserRepository struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*models.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[primitive.ObjectID]*models.User)}
}

var _ interfaces.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	c := *user
	r.mu.Lock()
	r.users[user.ID] = &c
	r.mu.Unlock()
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, utils.NewNotFoundError(utils.ErrUserNotFound)
	}
	c := *user
	return &c, nil
}

func (r *UserRepository) UpdateRating(ctx context.Context, id primitive.ObjectID, rating float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return utils.NewNotFoundError(utils.ErrUserNotFound)
	}
	user.Rating = rating
	user.UpdatedAt = time.Now()
	return nil
}
