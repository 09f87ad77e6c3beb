package mongodb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"
	"ridehail/pkg/database"
	"ridehail/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupTestDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("RIDEHAIL_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("RIDEHAIL_TEST_MONGODB_URI not set; skipping Mongo-backed repository tests")
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:      uri,
		Database: fmt.Sprintf("ridehail_test_%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Database.Drop(context.Background())
		_ = db.Close()
	})

	if err := database.NewMigrator(db.Database, logger.NewNop()).Up(context.Background()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db.Database
}

func newTestRide(userID primitive.ObjectID, pref models.GenderPreference) *models.Ride {
	return &models.Ride{
		UserID:               userID,
		PreferredRiderGender: pref,
		PickupLocation:       models.Location{Address: "A", Coordinates: models.Coordinates{Latitude: 1, Longitude: 1}},
		DropoffLocation:      models.Location{Address: "B", Coordinates: models.Coordinates{Latitude: 2, Longitude: 2}},
		Status:               models.RideStatusRequested,
	}
}

func TestConditionalUpdateSingleWinner(t *testing.T) {
	db := setupTestDatabase(t)
	repo := NewRideRepository(db, nil, 0)
	ctx := context.Background()

	ride := newTestRide(primitive.NewObjectID(), models.GenderPreferenceNone)
	if err := repo.Create(ctx, ride); err != nil {
		t.Fatalf("create: %v", err)
	}

	const contenders = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []primitive.ObjectID
	)
	for i := 0; i < contenders; i++ {
		riderID := primitive.NewObjectID()
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := repo.ConditionalUpdate(ctx, ride.ID,
				interfaces.RideCondition{Status: models.RideStatusRequested, RequireUnassigned: true},
				map[string]interface{}{
					models.RideFieldStatus:     models.RideStatusAccepted,
					models.RideFieldRiderID:    riderID,
					models.RideFieldAcceptTime: time.Now(),
				})
			if err != nil {
				t.Errorf("conditional update: %v", err)
				return
			}
			if applied {
				mu.Lock()
				wins = append(wins, riderID)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(wins) != 1 {
		t.Fatalf("winners = %d, want 1", len(wins))
	}

	stored, err := repo.GetByID(ctx, ride.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != models.RideStatusAccepted || !stored.AssignedTo(wins[0]) {
		t.Fatalf("stored ride = %s / %v, want accepted by %s", stored.Status, stored.RiderID, wins[0].Hex())
	}
}

func TestConditionalUpdateRequiresAssignedRider(t *testing.T) {
	db := setupTestDatabase(t)
	repo := NewRideRepository(db, nil, 0)
	ctx := context.Background()

	ride := newTestRide(primitive.NewObjectID(), models.GenderPreferenceNone)
	if err := repo.Create(ctx, ride); err != nil {
		t.Fatalf("create: %v", err)
	}
	riderID := primitive.NewObjectID()
	if _, err := repo.ConditionalUpdate(ctx, ride.ID,
		interfaces.RideCondition{Status: models.RideStatusRequested, RequireUnassigned: true},
		map[string]interface{}{models.RideFieldStatus: models.RideStatusAccepted, models.RideFieldRiderID: riderID}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	stranger := primitive.NewObjectID()
	applied, err := repo.ConditionalUpdate(ctx, ride.ID,
		interfaces.RideCondition{Status: models.RideStatusAccepted, RiderID: &stranger},
		map[string]interface{}{models.RideFieldStatus: models.RideStatusInProgress})
	if err != nil || applied {
		t.Fatalf("stranger update applied=%v err=%v", applied, err)
	}

	applied, err = repo.ConditionalUpdate(ctx, ride.ID,
		interfaces.RideCondition{Status: models.RideStatusAccepted, RiderID: &riderID},
		map[string]interface{}{models.RideFieldStatus: models.RideStatusInProgress})
	if err != nil || !applied {
		t.Fatalf("assigned update applied=%v err=%v", applied, err)
	}
}

func TestFindFilters(t *testing.T) {
	db := setupTestDatabase(t)
	repo := NewRideRepository(db, nil, 0)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	for _, pref := range []models.GenderPreference{models.GenderPreferenceNone, models.GenderPreferenceFemale, models.GenderPreferenceMale} {
		if err := repo.Create(ctx, newTestRide(userID, pref)); err != nil {
			t.Fatalf("create: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	open, err := repo.Find(ctx, interfaces.RideFilter{
		Statuses:         []models.RideStatus{models.RideStatusRequested},
		Unassigned:       true,
		PreferredGenders: []models.GenderPreference{models.GenderPreferenceNone, models.GenderPreferenceFemale},
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("open rides = %d, want 2", len(open))
	}

	history, err := repo.Find(ctx, interfaces.RideFilter{UserID: &userID})
	if err != nil {
		t.Fatalf("find history: %v", err)
	}
	if len(history) != 3 || history[0].PreferredRiderGender != models.GenderPreferenceMale {
		t.Fatalf("history not newest first: %d rides", len(history))
	}
}

func TestFindOrdersByRequestTime(t *testing.T) {
	db := setupTestDatabase(t)
	repo := NewRideRepository(db, nil, 0)
	ctx := context.Background()
	userID := primitive.NewObjectID()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// created_at follows insertion, request_time does not
	for _, off := range []time.Duration{2 * time.Hour, 0, 5 * time.Hour} {
		ride := newTestRide(userID, models.GenderPreferenceNone)
		ride.RequestTime = base.Add(off)
		if err := repo.Create(ctx, ride); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	rides, err := repo.Find(ctx, interfaces.RideFilter{UserID: &userID})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	want := []time.Duration{5 * time.Hour, 2 * time.Hour, 0}
	if len(rides) != len(want) {
		t.Fatalf("got %d rides, want %d", len(rides), len(want))
	}
	for i, off := range want {
		if !rides[i].RequestTime.Equal(base.Add(off)) {
			t.Errorf("rides[%d].RequestTime = %v, want %v", i, rides[i].RequestTime, base.Add(off))
		}
	}
}

func TestGetByIDNotFound(t *testing.T) {
	db := setupTestDatabase(t)
	repo := NewRideRepository(db, nil, 0)

	_, err := repo.GetByID(context.Background(), primitive.NewObjectID())
	if !utils.IsKind(err, utils.KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
