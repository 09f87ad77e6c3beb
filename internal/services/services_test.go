package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"ridehail/internal/models"
	"ridehail/internal/realtime"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/repositories/memory"
	"ridehail/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubTransport struct {
	mu     sync.Mutex
	events map[string][]string
	closed []string
}

func newStubTransport() *stubTransport {
	return &stubTransport{events: make(map[string][]string)}
}

func (t *stubTransport) EmitToSession(_ context.Context, sessionID, event string, _ interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[sessionID] = append(t.events[sessionID], event)
	return nil
}

func (t *stubTransport) CloseSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = append(t.closed, sessionID)
}

func (t *stubTransport) count(sessionID, event string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.events[sessionID] {
		if e == event {
			n++
		}
	}
	return n
}

type notification struct {
	userID primitive.ObjectID
	title  string
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *stubNotifier) NotifyUser(_ context.Context, userID primitive.ObjectID, title, _ string, _ map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{userID: userID, title: title})
}

type fixture struct {
	rides     *memory.RideRepository
	riders    *memory.RiderRepository
	users     *memory.UserRepository
	registry  *realtime.Registry
	transport *stubTransport
	notifier  *stubNotifier
	rideSvc   RideService
	rtSvc     RealtimeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	f := &fixture{
		rides:     memory.NewRideRepository(),
		riders:    memory.NewRiderRepository(),
		users:     memory.NewUserRepository(),
		registry:  realtime.NewRegistry(),
		transport: newStubTransport(),
		notifier:  &stubNotifier{},
	}
	router := realtime.NewRouter(f.registry, f.transport, f.rides, f.riders, log)
	f.rideSvc = NewRideService(f.rides, f.riders, f.users, router, f.notifier, NewFareService(nil, log), log, 0)
	f.rtSvc = NewRealtimeService(router, f.rides, f.riders, log, 0)
	return f
}

func (f *fixture) newUser(t *testing.T) primitive.ObjectID {
	t.Helper()
	u := &models.User{Name: "passenger"}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func (f *fixture) newRider(t *testing.T, gender models.Gender) primitive.ObjectID {
	t.Helper()
	r := &models.Rider{Name: "driver", Gender: gender}
	if err := f.riders.Create(context.Background(), r); err != nil {
		t.Fatalf("create rider: %v", err)
	}
	return r.ID
}

func (f *fixture) requestRide(t *testing.T, userID primitive.ObjectID, pref models.GenderPreference) *models.Ride {
	t.Helper()
	ride, err := f.rideSvc.RequestRide(context.Background(), &models.RideRequest{
		UserID:               userID,
		PickupLocation:       models.Location{Address: "1 Main St", Coordinates: models.Coordinates{Latitude: 40.7128, Longitude: -74.0060}},
		DropoffLocation:      models.Location{Address: "2 Broadway", Coordinates: models.Coordinates{Latitude: 40.7580, Longitude: -73.9855}},
		PreferredRiderGender: pref,
	})
	if err != nil {
		t.Fatalf("request ride: %v", err)
	}
	return ride
}

func (f *fixture) acceptedRide(t *testing.T, riderID primitive.ObjectID) *models.Ride {
	t.Helper()
	ride := f.requestRide(t, f.newUser(t), models.GenderPreferenceNone)
	accepted, err := f.rideSvc.AcceptRide(context.Background(), ride.ID, riderID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return accepted
}

func (f *fixture) completedRide(t *testing.T, userID, riderID primitive.ObjectID) *models.Ride {
	t.Helper()
	ctx := context.Background()
	ride := f.requestRide(t, userID, models.GenderPreferenceNone)
	if _, err := f.rideSvc.AcceptRide(ctx, ride.ID, riderID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.rideSvc.UpdateStatus(ctx, ride.ID, riderID, models.RideStatusInProgress, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	done, err := f.rideSvc.UpdateStatus(ctx, ride.ID, riderID, models.RideStatusCompleted, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return done
}

// gatedRiderRepo parks the first call of the gated operation after it has
// touched the store, until release is closed.
type gatedRiderRepo struct {
	*memory.RiderRepository
	op      string
	fired   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedRiderRepo(inner *memory.RiderRepository, op string) *gatedRiderRepo {
	return &gatedRiderRepo{
		RiderRepository: inner,
		op:              op,
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
}

func (g *gatedRiderRepo) hold(op string) {
	if op != g.op || !g.fired.CompareAndSwap(false, true) {
		return
	}
	close(g.entered)
	<-g.release
}

func (g *gatedRiderRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Rider, error) {
	rider, err := g.RiderRepository.GetByID(ctx, id)
	g.hold("get")
	return rider, err
}

func (g *gatedRiderRepo) UpdateAvailability(ctx context.Context, id primitive.ObjectID, available bool) error {
	err := g.RiderRepository.UpdateAvailability(ctx, id, available)
	if available {
		g.hold("availability")
	}
	return err
}

var errRatingStore = errors.New("rating store unavailable")

type failingRatingRiderRepo struct {
	*memory.RiderRepository
}

func (failingRatingRiderRepo) UpdateRating(context.Context, primitive.ObjectID, float64) error {
	return errRatingStore
}

// realtimeWith builds a realtime service over the fixture state with a
// different rider repository.
func (f *fixture) realtimeWith(riders interfaces.RiderRepository) RealtimeService {
	log := logger.NewNop()
	router := realtime.NewRouter(f.registry, f.transport, f.rides, riders, log)
	return NewRealtimeService(router, f.rides, riders, log, 0)
}

// rideServiceWith builds a ride service over the fixture state with a
// different rider repository.
func (f *fixture) rideServiceWith(riders interfaces.RiderRepository) RideService {
	log := logger.NewNop()
	router := realtime.NewRouter(f.registry, f.transport, f.rides, riders, log)
	return NewRideService(f.rides, riders, f.users, router, f.notifier, NewFareService(nil, log), log, 0)
}
