package services

import (
	"context"
	"math"
	"sync"
	"testing"

	"ridehail/internal/models"
	"ridehail/internal/realtime"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRequestRideEstimatesFareAndNotifiesPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	riderID := f.newRider(t, models.GenderMale)
	if err := f.rtSvc.HandleConnect(ctx, models.Actor{Kind: models.ActorKindRider, ID: riderID}, "r1"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := f.rtSvc.ToggleAvailability(ctx, riderID, "r1", true); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	ride := f.requestRide(t, f.newUser(t), "")

	if ride.Status != models.RideStatusRequested || ride.IsAssigned() {
		t.Fatalf("new ride status=%s assigned=%v", ride.Status, ride.IsAssigned())
	}
	if ride.PreferredRiderGender != models.GenderPreferenceNone {
		t.Fatalf("preference = %q, want no_preference", ride.PreferredRiderGender)
	}
	if ride.Fare.Total <= utils.BaseFare || ride.Route == nil {
		t.Fatalf("fare not estimated: %+v route=%v", ride.Fare, ride.Route)
	}
	if got := f.transport.count("r1", realtime.EventNewRideRequest); got != 1 {
		t.Fatalf("rider got %d ride requests, want 1", got)
	}
}

func TestRequestRideRejectsMissingCoordinates(t *testing.T) {
	f := newFixture(t)
	_, err := f.rideSvc.RequestRide(context.Background(), &models.RideRequest{
		UserID:          primitive.NewObjectID(),
		PickupLocation:  models.Location{Address: "1 Main St"},
		DropoffLocation: models.Location{Address: "2 Broadway", Coordinates: models.Coordinates{Latitude: 1, Longitude: 1}},
	})
	if !utils.IsKind(err, utils.KindValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestConcurrentAcceptExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.requestRide(t, f.newUser(t), models.GenderPreferenceNone)

	const contenders = 8
	riderIDs := make([]primitive.ObjectID, contenders)
	for i := range riderIDs {
		riderIDs[i] = f.newRider(t, models.GenderFemale)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, contenders)
	for _, id := range riderIDs {
		wg.Add(1)
		go func(riderID primitive.ObjectID) {
			defer wg.Done()
			<-start
			_, err := f.rideSvc.AcceptRide(ctx, ride.ID, riderID)
			errs <- err
		}(id)
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !utils.IsKind(err, utils.KindConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one success, got %d", success)
	}

	stored, err := f.rides.GetByID(ctx, ride.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if stored.Status != models.RideStatusAccepted || !stored.IsAssigned() || stored.AcceptTime == nil {
		t.Fatalf("stored ride = status %s rider %v accept %v", stored.Status, stored.RiderID, stored.AcceptTime)
	}
}

func TestAcceptRideConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	riderID := f.newRider(t, models.GenderMale)
	ride := f.acceptedRide(t, riderID)

	_, err := f.rideSvc.AcceptRide(ctx, ride.ID, f.newRider(t, models.GenderMale))
	if !utils.IsKind(err, utils.KindConflict) {
		t.Fatalf("accepting an accepted ride: got %v, want conflict", err)
	}

	_, err = f.rideSvc.AcceptRide(ctx, primitive.NewObjectID(), riderID)
	if !utils.IsKind(err, utils.KindNotFound) {
		t.Fatalf("accepting a missing ride: got %v, want not found", err)
	}
}

func TestAcceptRideHonoursGenderPreference(t *testing.T) {
	f := newFixture(t)
	ride := f.requestRide(t, f.newUser(t), models.GenderPreferenceFemale)

	_, err := f.rideSvc.AcceptRide(context.Background(), ride.ID, f.newRider(t, models.GenderMale))
	if !utils.IsKind(err, utils.KindForbidden) {
		t.Fatalf("got %v, want forbidden", err)
	}
}

func TestAcceptRideNotifiesRequester(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t)
	if err := f.rtSvc.HandleConnect(ctx, models.Actor{Kind: models.ActorKindUser, ID: userID}, "u1"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ride := f.requestRide(t, userID, models.GenderPreferenceNone)
	if _, err := f.rideSvc.AcceptRide(ctx, ride.ID, f.newRider(t, models.GenderMale)); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if got := f.transport.count("u1", realtime.EventRideAccepted); got != 1 {
		t.Fatalf("requester got %d rideAccepted events, want 1", got)
	}
	if !f.registry.IsMember("u1", realtime.RideChannel(ride.ID)) {
		t.Fatal("requester not joined to ride channel")
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].title != "Ride Accepted" {
		t.Fatalf("push notifications = %+v", f.notifier.sent)
	}
}

func TestUpdateStatusByOtherRiderIsForbidden(t *testing.T) {
	f := newFixture(t)
	ride := f.acceptedRide(t, f.newRider(t, models.GenderMale))

	_, err := f.rideSvc.UpdateStatus(context.Background(), ride.ID, f.newRider(t, models.GenderMale), models.RideStatusInProgress, nil)
	if !utils.IsKind(err, utils.KindForbidden) {
		t.Fatalf("got %v, want forbidden", err)
	}
}

func TestUpdateStatusTransitionTable(t *testing.T) {
	for _, from := range models.AllRideStatuses {
		for _, to := range models.AllRideStatuses {
			f := newFixture(t)
			riderID := f.newRider(t, models.GenderMale)
			ride := rideInStatus(t, f, riderID, from)

			_, err := f.rideSvc.UpdateStatus(context.Background(), ride.ID, riderID, to, nil)

			switch {
			case from == models.RideStatusRequested:
				// requested rides have no assigned rider; they move only through accept
				if !utils.IsKind(err, utils.KindForbidden) {
					t.Errorf("%s -> %s: got %v, want forbidden", from, to, err)
				}
			case models.CanTransition(from, to):
				if err != nil {
					t.Errorf("%s -> %s: unexpected error %v", from, to, err)
				}
			default:
				if !utils.IsKind(err, utils.KindInvalidTransition) {
					t.Errorf("%s -> %s: got %v, want invalid transition", from, to, err)
				}
			}
		}
	}
}

func TestUpdateStatusStampsTimesAndKeepsRider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	riderID := f.newRider(t, models.GenderMale)
	ride := f.acceptedRide(t, riderID)

	if _, err := f.rideSvc.UpdateStatus(ctx, ride.ID, riderID, models.RideStatusInProgress, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	stored, _ := f.rides.GetByID(ctx, ride.ID)
	if stored.PickupTime == nil || stored.DropoffTime != nil {
		t.Fatalf("after start pickup=%v dropoff=%v", stored.PickupTime, stored.DropoffTime)
	}

	if _, err := f.rideSvc.UpdateStatus(ctx, ride.ID, riderID, models.RideStatusCompleted, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	stored, _ = f.rides.GetByID(ctx, ride.ID)
	if stored.DropoffTime == nil {
		t.Fatal("dropoff time not stamped")
	}
	if !stored.AssignedTo(riderID) {
		t.Fatal("assigned rider changed during transitions")
	}
	if stored.Fare != ride.Fare || stored.PickupLocation != ride.PickupLocation {
		t.Fatal("transition modified unrelated fields")
	}
}

func TestUpdateStatusInProgressToAcceptedIsInvalid(t *testing.T) {
	f := newFixture(t)
	riderID := f.newRider(t, models.GenderMale)
	ride := rideInStatus(t, f, riderID, models.RideStatusInProgress)

	_, err := f.rideSvc.UpdateStatus(context.Background(), ride.ID, riderID, models.RideStatusAccepted, nil)
	if !utils.IsKind(err, utils.KindInvalidTransition) {
		t.Fatalf("got %v, want invalid transition", err)
	}
}

func TestCancelledAfterAcceptKeepsRider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	riderID := f.newRider(t, models.GenderMale)
	ride := rideInStatus(t, f, riderID, models.RideStatusCancelled)

	stored, _ := f.rides.GetByID(ctx, ride.ID)
	if stored.Status != models.RideStatusCancelled || !stored.AssignedTo(riderID) {
		t.Fatalf("cancelled ride status=%s rider=%v", stored.Status, stored.RiderID)
	}
}

func TestRateRideRecomputesAverageFromHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t)
	riderID := f.newRider(t, models.GenderMale)
	user := models.Actor{Kind: models.ActorKindUser, ID: userID}

	first := f.completedRide(t, userID, riderID)
	second := f.completedRide(t, userID, riderID)

	steps := []struct {
		ride   *models.Ride
		rating float64
		want   float64
	}{
		{first, 5, 5},
		{second, 3, 4},
		// re-rating replaces the stored value on that ride
		{second, 4, 4.5},
		{first, 1, 2.5},
	}
	for i, step := range steps {
		if _, err := f.rideSvc.RateRide(ctx, step.ride.ID, user, step.rating, "ok"); err != nil {
			t.Fatalf("step %d: rate: %v", i, err)
		}
		rider, _ := f.riders.GetByID(ctx, riderID)
		if math.Abs(rider.Rating-step.want) > 1e-9 {
			t.Fatalf("step %d: rider rating = %v, want %v", i, rider.Rating, step.want)
		}
	}
}

func TestRateRideKeepsRatingWhenAverageFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t)
	riderID := f.newRider(t, models.GenderMale)
	ride := f.completedRide(t, userID, riderID)

	svc := f.rideServiceWith(failingRatingRiderRepo{f.riders})
	rated, err := svc.RateRide(ctx, ride.ID, models.Actor{Kind: models.ActorKindUser, ID: userID}, 4, "fine")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rated.RiderRating == nil || *rated.RiderRating != 4 {
		t.Fatalf("returned rider rating = %v", rated.RiderRating)
	}

	stored, _ := f.rides.GetByID(ctx, ride.ID)
	if stored.RiderRating == nil || *stored.RiderRating != 4 {
		t.Fatalf("stored rider rating = %v", stored.RiderRating)
	}

	// the next recompute rebuilds the average from every stored rating
	if _, err := f.rideSvc.RateRide(ctx, f.completedRide(t, userID, riderID).ID, models.Actor{Kind: models.ActorKindUser, ID: userID}, 2, ""); err != nil {
		t.Fatalf("second rate: %v", err)
	}
	rider, _ := f.riders.GetByID(ctx, riderID)
	if rider.Rating != 3 {
		t.Fatalf("rider rating = %v, want 3", rider.Rating)
	}
}

func TestConcurrentRatingsSettleOnFullAverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	riderID := f.newRider(t, models.GenderMale)

	ratings := []float64{5, 4, 3, 2, 1, 5, 4, 3}
	type rated struct {
		rideID primitive.ObjectID
		user   models.Actor
		rating float64
	}
	jobs := make([]rated, 0, len(ratings))
	for _, r := range ratings {
		userID := f.newUser(t)
		ride := f.completedRide(t, userID, riderID)
		jobs = append(jobs, rated{ride.ID, models.Actor{Kind: models.ActorKindUser, ID: userID}, r})
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(jobs))
	for _, j := range jobs {
		wg.Add(1)
		go func(j rated) {
			defer wg.Done()
			if _, err := f.rideSvc.RateRide(ctx, j.rideID, j.user, j.rating, ""); err != nil {
				errs <- err
			}
		}(j)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("rate: %v", err)
	}

	rider, _ := f.riders.GetByID(ctx, riderID)
	if want := 3.375; math.Abs(rider.Rating-want) > 1e-9 {
		t.Fatalf("rider rating = %v, want %v", rider.Rating, want)
	}
}

func TestRateRideByRiderUpdatesUserRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t)
	riderID := f.newRider(t, models.GenderMale)
	ride := f.completedRide(t, userID, riderID)

	rated, err := f.rideSvc.RateRide(ctx, ride.ID, models.Actor{Kind: models.ActorKindRider, ID: riderID}, 4, "polite")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rated.UserRating == nil || *rated.UserRating != 4 {
		t.Fatalf("user rating on ride = %v", rated.UserRating)
	}
	user, _ := f.users.GetByID(ctx, userID)
	if user.Rating != 4 {
		t.Fatalf("user rating = %v, want 4", user.Rating)
	}
}

func TestRateRideRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t)
	riderID := f.newRider(t, models.GenderMale)
	done := f.completedRide(t, userID, riderID)
	active := f.acceptedRide(t, riderID)

	cases := []struct {
		name   string
		rideID primitive.ObjectID
		actor  models.Actor
		rating float64
		want   utils.ErrorKind
	}{
		{"not completed", active.ID, models.Actor{Kind: models.ActorKindRider, ID: riderID}, 5, utils.KindConflict},
		{"stranger", done.ID, models.Actor{Kind: models.ActorKindUser, ID: primitive.NewObjectID()}, 5, utils.KindForbidden},
		{"out of range", done.ID, models.Actor{Kind: models.ActorKindUser, ID: userID}, 7, utils.KindValidation},
		{"missing ride", primitive.NewObjectID(), models.Actor{Kind: models.ActorKindUser, ID: userID}, 5, utils.KindNotFound},
	}
	for _, tc := range cases {
		_, err := f.rideSvc.RateRide(ctx, tc.rideID, tc.actor, tc.rating, "")
		if !utils.IsKind(err, tc.want) {
			t.Errorf("%s: got %v, want %s", tc.name, err, tc.want)
		}
	}
}

func TestGetAvailableRidesFiltersByGender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t)

	open := f.requestRide(t, userID, models.GenderPreferenceNone)
	femaleOnly := f.requestRide(t, userID, models.GenderPreferenceFemale)
	f.requestRide(t, userID, models.GenderPreferenceMale)
	taken := f.requestRide(t, userID, models.GenderPreferenceNone)
	if _, err := f.rideSvc.AcceptRide(ctx, taken.ID, f.newRider(t, models.GenderMale)); err != nil {
		t.Fatalf("accept: %v", err)
	}

	rides, err := f.rideSvc.GetAvailableRides(ctx, f.newRider(t, models.GenderFemale))
	if err != nil {
		t.Fatalf("available rides: %v", err)
	}
	got := map[primitive.ObjectID]bool{}
	for _, r := range rides {
		got[r.ID] = true
	}
	if len(rides) != 2 || !got[open.ID] || !got[femaleOnly.ID] {
		t.Fatalf("available rides = %v, want open and female-only", got)
	}
}

func TestGetRideAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	riderID := f.newRider(t, models.GenderMale)
	ride := f.acceptedRide(t, riderID)

	if _, err := f.rideSvc.GetRide(ctx, ride.ID, models.Actor{Kind: models.ActorKindUser, ID: ride.UserID}); err != nil {
		t.Fatalf("requester: %v", err)
	}
	if _, err := f.rideSvc.GetRide(ctx, ride.ID, models.Actor{Kind: models.ActorKindRider, ID: riderID}); err != nil {
		t.Fatalf("assigned rider: %v", err)
	}
	_, err := f.rideSvc.GetRide(ctx, ride.ID, models.Actor{Kind: models.ActorKindRider, ID: primitive.NewObjectID()})
	if !utils.IsKind(err, utils.KindForbidden) {
		t.Fatalf("other rider: got %v, want forbidden", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t)
	first := f.requestRide(t, userID, models.GenderPreferenceNone)
	second := f.requestRide(t, userID, models.GenderPreferenceNone)
	f.requestRide(t, f.newUser(t), models.GenderPreferenceNone)

	rides, err := f.rideSvc.GetUserHistory(context.Background(), userID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rides) != 2 || rides[0].ID != second.ID || rides[1].ID != first.ID {
		t.Fatalf("history order wrong: %v", rides)
	}
}

// rideInStatus drives a fresh ride assigned to riderID into status.
func rideInStatus(t *testing.T, f *fixture, riderID primitive.ObjectID, status models.RideStatus) *models.Ride {
	t.Helper()
	ctx := context.Background()
	ride := f.requestRide(t, f.newUser(t), models.GenderPreferenceNone)
	if status == models.RideStatusRequested {
		return ride
	}
	if _, err := f.rideSvc.AcceptRide(ctx, ride.ID, riderID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	var path []models.RideStatus
	switch status {
	case models.RideStatusInProgress:
		path = []models.RideStatus{models.RideStatusInProgress}
	case models.RideStatusCompleted:
		path = []models.RideStatus{models.RideStatusInProgress, models.RideStatusCompleted}
	case models.RideStatusCancelled:
		path = []models.RideStatus{models.RideStatusCancelled}
	}
	for _, next := range path {
		if _, err := f.rideSvc.UpdateStatus(ctx, ride.ID, riderID, next, nil); err != nil {
			t.Fatalf("drive to %s: %v", next, err)
		}
	}
	stored, _ := f.rides.GetByID(ctx, ride.ID)
	return stored
}
