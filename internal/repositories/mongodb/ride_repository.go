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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type rideRepository struct {
	collection *mongo.Collection
	cache      cache.Cache
	cacheTTL   time.Duration
}

// NewRideRepository returns a Mongo backed ride store. cache may be nil.
func NewRideRepository(db *mongo.Database, c cache.Cache, cacheTTL time.Duration) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection(database.RidesCollection),
		cache:      c,
		cacheTTL:   cacheTTL,
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	now := time.Now()
	ride.ID = primitive.NewObjectID()
	ride.RiderID = nil
	ride.CreatedAt = now
	ride.UpdatedAt = now
	if ride.RequestTime.IsZero() {
		ride.RequestTime = now
	}

	if _, err := r.collection.InsertOne(ctx, ride); err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	r.cacheRide(ctx, ride)
	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	if ride := r.getRideFromCache(ctx, id.Hex()); ride != nil {
		return ride, nil
	}

	var ride models.Ride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError(utils.ErrRideNotFound)
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	if !ride.Status.IsTerminal() {
		r.cacheRide(ctx, &ride)
	}

	return &ride, nil
}

func (r *rideRepository) ConditionalUpdate(ctx context.Context, id primitive.ObjectID, cond interfaces.RideCondition, updates map[string]interface{}) (bool, error) {
	filter := bson.M{
		"_id":    id,
		"status": cond.Status,
	}
	switch {
	case cond.RequireUnassigned:
		filter["rider_id"] = nil
	case cond.RiderID != nil:
		filter["rider_id"] = *cond.RiderID
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": updates})
	if err != nil {
		return false, fmt.Errorf("failed to update ride: %w", err)
	}

	r.invalidateRideCache(ctx, id.Hex())

	return result.MatchedCount == 1, nil
}

func (r *rideRepository) Find(ctx context.Context, filter interfaces.RideFilter) ([]*models.Ride, error) {
	opts := options.Find().SetSort(bson.D{{Key: "request_time", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, buildRideFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find rides: %w", err)
	}
	defer cursor.Close(ctx)

	rides := make([]*models.Ride, 0)
	for cursor.Next(ctx) {
		var ride models.Ride
		if err := cursor.Decode(&ride); err != nil {
			return nil, fmt.Errorf("failed to decode ride: %w", err)
		}
		rides = append(rides, &ride)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rides: %w", err)
	}

	return rides, nil
}

func buildRideFilter(f interfaces.RideFilter) bson.M {
	filter := bson.M{}

	if f.UserID != nil {
		filter["user_id"] = *f.UserID
	}
	if f.Unassigned {
		filter["rider_id"] = nil
	} else if f.RiderID != nil {
		filter["rider_id"] = *f.RiderID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if len(f.PreferredGenders) > 0 {
		filter["preferred_rider_gender"] = bson.M{"$in": f.PreferredGenders}
	}
	if f.HasUserRating {
		filter["user_rating"] = bson.M{"$exists": true, "$ne": nil}
	}
	if f.HasRiderRating {
		filter["rider_rating"] = bson.M{"$exists": true, "$ne": nil}
	}

	return filter
}

func rideCacheKey(rideID string) string {
	return fmt.Sprintf("ride:%s", rideID)
}

func (r *rideRepository) cacheRide(ctx context.Context, ride *models.Ride) {
	if r.cache != nil {
		_ = r.cache.Set(ctx, rideCacheKey(ride.ID.Hex()), ride, r.cacheTTL)
	}
}

func (r *rideRepository) getRideFromCache(ctx context.Context, rideID string) *models.Ride {
	if r.cache == nil {
		return nil
	}

	var ride models.Ride
	if err := r.cache.Get(ctx, rideCacheKey(rideID), &ride); err != nil {
		return nil
	}

	return &ride
}

func (r *rideRepository) invalidateRideCache(ctx context.Context, rideID string) {
	if r.cache != nil {
		_ = r.cache.Delete(ctx, rideCacheKey(rideID))
	}
}
