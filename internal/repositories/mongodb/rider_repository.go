package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"
	"ridehail/pkg/cache"
	"ridehail/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type riderRepository struct {
	collection *mongo.Collection
	cache      cache.Cache
	cacheTTL   time.Duration
}

func NewRiderRepository(db *mongo.Database, c cache.Cache, cacheTTL time.Duration) interfaces.RiderRepository {
	return &riderRepository{
		collection: db.Collection(database.RidersCollection),
		cache:      c,
		cacheTTL:   cacheTTL,
	}
}

func (r *riderRepository) Create(ctx context.Context, rider *models.Rider) error {
	now := time.Now()
	if rider.ID.IsZero() {
		rider.ID = primitive.NewObjectID()
	}
	rider.CreatedAt = now
	rider.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, rider); err != nil {
		return fmt.Errorf("failed to create rider: %w", err)
	}

	return nil
}

func (r *riderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Rider, error) {
	if rider := r.getRiderFromCache(ctx, id.Hex()); rider != nil {
		return rider, nil
	}

	var rider models.Rider
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rider)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError(utils.ErrRiderNotFound)
		}
		return nil, fmt.Errorf("failed to get rider: %w", err)
	}

	r.cacheRider(ctx, &rider)
	return &rider, nil
}

func (r *riderRepository) UpdateAvailability(ctx context.Context, id primitive.ObjectID, available bool) error {
	return r.update(ctx, id, bson.M{"is_available": available})
}

func (r *riderRepository) UpdateLocation(ctx context.Context, id primitive.ObjectID, coords models.Coordinates) error {
	return r.update(ctx, id, bson.M{
		"current_location": models.CurrentLocation{
			Coordinates: coords,
			LastUpdated: time.Now(),
		},
	})
}

func (r *riderRepository) UpdateRating(ctx context.Context, id primitive.ObjectID, rating float64) error {
	return r.update(ctx, id, bson.M{"rating": rating})
}

func (r *riderRepository) update(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	set["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update rider: %w", err)
	}
	r.invalidateRiderCache(ctx, id.Hex())

	if result.MatchedCount == 0 {
		return utils.NewNotFoundError(utils.ErrRiderNotFound)
	}
	return nil
}

func riderCacheKey(riderID string) string {
	return fmt.Sprintf("rider:%s", riderID)
}

func (r *riderRepository) cacheRider(ctx context.Context, rider *models.Rider) {
	if r.cache != nil {
		_ = r.cache.Set(ctx, riderCacheKey(rider.ID.Hex()), rider, r.cacheTTL)
	}
}

func (r *riderRepository) getRiderFromCache(ctx context.Context, riderID string) *models.Rider {
	if r.cache == nil {
		return nil
	}

	var rider models.Rider
	if err := r.cache.Get(ctx, riderCacheKey(riderID), &rider); err != nil {
		return nil
	}
	return &rider
}

func (r *riderRepository) invalidateRiderCache(ctx context.Context, riderID string) {
	if r.cache != nil {
		_ = r.cache.Delete(ctx, riderCacheKey(riderID))
	}
}
