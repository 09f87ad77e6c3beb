// Package memory holds mutex guarded in-process stores used by tests and by
// the memory database driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRepository struct {
	mu    sync.RWMutex
	rides map[primitive.ObjectID]*models.Ride
}

func NewRideRepository() *RideRepository {
	return &RideRepository{rides: make(map[primitive.ObjectID]*models.Ride)}
}

var _ interfaces.RideRepository = (*RideRepository)(nil)

func (r *RideRepository) Create(ctx context.Context, ride *models.Ride) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now()
	ride.ID = primitive.NewObjectID()
	ride.RiderID = nil
	ride.CreatedAt = now
	ride.UpdatedAt = now
	if ride.RequestTime.IsZero() {
		ride.RequestTime = now
	}

	r.mu.Lock()
	r.rides[ride.ID] = cloneRide(ride)
	r.mu.Unlock()
	return nil
}

func (r *RideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ride, ok := r.rides[id]
	if !ok {
		return nil, utils.NewNotFoundError(utils.ErrRideNotFound)
	}
	return cloneRide(ride), nil
}

func (r *RideRepository) ConditionalUpdate(ctx context.Context, id primitive.ObjectID, cond interfaces.RideCondition, updates map[string]interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rides[id]
	if !ok || stored.Status != cond.Status {
		return false, nil
	}
	if cond.RequireUnassigned && stored.IsAssigned() {
		return false, nil
	}
	if cond.RiderID != nil && !stored.AssignedTo(*cond.RiderID) {
		return false, nil
	}

	next := cloneRide(stored)
	if err := applyRideUpdates(next, updates); err != nil {
		return false, err
	}
	r.rides[id] = next
	return true, nil
}

func (r *RideRepository) Find(ctx context.Context, filter interfaces.RideFilter) ([]*models.Ride, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	rides := make([]*models.Ride, 0)
	for _, ride := range r.rides {
		if matchesRideFilter(ride, filter) {
			rides = append(rides, cloneRide(ride))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(rides, func(i, j int) bool {
		if !rides[i].RequestTime.Equal(rides[j].RequestTime) {
			return rides[i].RequestTime.After(rides[j].RequestTime)
		}
		return rides[i].ID.Hex() > rides[j].ID.Hex()
	})
	return rides, nil
}

func matchesRideFilter(ride *models.Ride, f interfaces.RideFilter) bool {
	if f.UserID != nil && ride.UserID != *f.UserID {
		return false
	}
	if f.Unassigned {
		if ride.IsAssigned() {
			return false
		}
	} else if f.RiderID != nil && !ride.AssignedTo(*f.RiderID) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, ride.Status) {
		return false
	}
	if len(f.PreferredGenders) > 0 && !containsGender(f.PreferredGenders, ride.PreferredRiderGender) {
		return false
	}
	if f.HasUserRating && ride.UserRating == nil {
		return false
	}
	if f.HasRiderRating && ride.RiderRating == nil {
		return false
	}
	return true
}

func containsStatus(list []models.RideStatus, s models.RideStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsGender(list []models.GenderPreference, g models.GenderPreference) bool {
	for _, v := range list {
		if v == g {
			return true
		}
	}
	return false
}

func applyRideUpdates(ride *models.Ride, updates map[string]interface{}) error {
	for field, value := range updates {
		var ok bool
		switch field {
		case models.RideFieldStatus:
			ride.Status, ok = value.(models.RideStatus)
		case models.RideFieldRiderID:
			var id primitive.ObjectID
			if id, ok = value.(primitive.ObjectID); ok {
				ride.RiderID = &id
			}
		case models.RideFieldAcceptTime:
			ride.AcceptTime, ok = timeValue(value)
		case models.RideFieldPickupTime:
			ride.PickupTime, ok = timeValue(value)
		case models.RideFieldDropoffTime:
			ride.DropoffTime, ok = timeValue(value)
		case models.RideFieldUserRating:
			ride.UserRating, ok = floatValue(value)
		case models.RideFieldRiderRating:
			ride.RiderRating, ok = floatValue(value)
		case models.RideFieldUserFeedback:
			ride.UserFeedback, ok = value.(string)
		case models.RideFieldRiderFeedback:
			ride.RiderFeedback, ok = value.(string)
		default:
			return fmt.Errorf("unsupported ride field %q", field)
		}
		if !ok {
			return fmt.Errorf("invalid value %T for ride field %q", value, field)
		}
	}
	return nil
}

func timeValue(v interface{}) (*time.Time, bool) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, false
	}
	return &t, true
}

func floatValue(v interface{}) (*float64, bool) {
	f, ok := v.(float64)
	if !ok {
		return nil, false
	}
	return &f, true
}

func cloneRide(ride *models.Ride) *models.Ride {
	c := *ride
	if ride.RiderID != nil {
		id := *ride.RiderID
		c.RiderID = &id
	}
	c.AcceptTime = cloneTime(ride.AcceptTime)
	c.PickupTime = cloneTime(ride.PickupTime)
	c.DropoffTime = cloneTime(ride.DropoffTime)
	c.UserRating = cloneFloat(ride.UserRating)
	c.RiderRating = cloneFloat(ride.RiderRating)
	if ride.Route != nil {
		route := *ride.Route
		c.Route = &route
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
