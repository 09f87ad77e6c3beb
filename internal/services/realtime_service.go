package services

import (
	"context"
	"strings"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/realtime"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"
	"ridehail/internal/validators"
	"ridehail/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RealtimeService handles the session lifecycle and the realtime events that
// do not change ride state.
type RealtimeService interface {
	HandleConnect(ctx context.Context, actor models.Actor, sessionID string) error
	HandleDisconnect(sessionID string)
	UpdateLocation(ctx context.Context, riderID primitive.ObjectID, coords models.Coordinates) error
	ToggleAvailability(ctx context.Context, riderID primitive.ObjectID, sessionID string, available bool) error
	SendChatMessage(ctx context.Context, sender models.Actor, rideID primitive.ObjectID, message string) (*realtime.ChatMessagePayload, error)
	RelayStatus(ctx context.Context, actor models.Actor, rideID primitive.ObjectID, status models.RideStatus, location *models.Coordinates) error
	EmitError(ctx context.Context, sessionID string, err error)
	Shutdown() int
}

type realtimeService struct {
	registry  *realtime.Registry
	router    *realtime.Router
	rideRepo  interfaces.RideRepository
	riderRepo interfaces.RiderRepository
	logger    *logger.Logger
	timeout   time.Duration

	// held across the stored availability flag and pool membership
	riderLocks *keyedMutex
}

func NewRealtimeService(
	router *realtime.Router,
	rideRepo interfaces.RideRepository,
	riderRepo interfaces.RiderRepository,
	log *logger.Logger,
	timeout time.Duration,
) RealtimeService {
	if timeout <= 0 {
		timeout = utils.DefaultOperationTimeout
	}
	return &realtimeService{
		registry:   router.Registry(),
		router:     router,
		rideRepo:   rideRepo,
		riderRepo:  riderRepo,
		logger:     log.WithComponent("realtime"),
		timeout:    timeout,
		riderLocks: newKeyedMutex(),
	}
}

// HandleConnect registers the session and restores derived membership: the
// availability pools for riders flagged available and the channels of the
// actor's active rides.
func (s *realtimeService) HandleConnect(ctx context.Context, actor models.Actor, sessionID string) error {
	replaced, err := s.registry.Connect(actor.Kind, actor.ID, sessionID)
	if err != nil {
		return err
	}

	log := s.logger.WithSession(sessionID).WithField("actor_kind", actor.Kind).WithField("actor_id", actor.ID.Hex())
	if replaced != "" {
		log.WithField("replaced_session", replaced).Info("Actor reconnected, closing previous session")
		s.router.CloseSession(replaced)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := interfaces.RideFilter{
		Statuses: []models.RideStatus{models.RideStatusAccepted, models.RideStatusInProgress},
	}
	switch actor.Kind {
	case models.ActorKindRider:
		if err := s.restoreAvailability(ctx, actor.ID, sessionID); err != nil {
			log.WithError(err).Warn("Cannot restore availability")
		}
		filter.RiderID = &actor.ID
	case models.ActorKindUser:
		filter.UserID = &actor.ID
	default:
		log.Info("Session connected")
		return nil
	}

	active, err := s.rideRepo.Find(ctx, filter)
	if err != nil {
		log.WithError(err).Warn("Cannot load active rides on connect")
		return nil
	}
	for _, ride := range active {
		if err := s.registry.Join(sessionID, realtime.RideChannel(ride.ID)); err != nil {
			log.WithError(err).Debug("Session closed while restoring ride channels")
			break
		}
	}

	log.WithField("active_rides", len(active)).Info("Session connected")
	return nil
}

// restoreAvailability puts the session into the pools when the stored flag
// says the rider is available.
func (s *realtimeService) restoreAvailability(ctx context.Context, riderID primitive.ObjectID, sessionID string) error {
	unlock := s.riderLocks.Lock(riderID)
	defer unlock()

	rider, err := s.riderRepo.GetByID(ctx, riderID)
	if err != nil {
		return err
	}
	if !rider.IsAvailable {
		return nil
	}
	return s.registry.SetAvailable(riderID, sessionID, true, rider.Gender)
}

func (s *realtimeService) HandleDisconnect(sessionID string) {
	if session, ok := s.registry.Disconnect(sessionID); ok {
		s.logger.WithSession(sessionID).WithField("actor_id", session.ActorID.Hex()).Info("Session disconnected")
	}
}

func (s *realtimeService) UpdateLocation(ctx context.Context, riderID primitive.ObjectID, coords models.Coordinates) error {
	if err := validators.Validate(&validators.UpdateLocationRequest{Coordinates: coords}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.router.OnLocationUpdate(ctx, riderID, coords)
}

// ToggleAvailability persists the flag and then aligns the rider's session
// with it. An empty sessionID uses the rider's live session if any.
func (s *realtimeService) ToggleAvailability(ctx context.Context, riderID primitive.ObjectID, sessionID string, available bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock := s.riderLocks.Lock(riderID)
	defer unlock()

	rider, err := s.riderRepo.GetByID(ctx, riderID)
	if err != nil {
		return utils.AsAppError(err, "failed to load rider")
	}
	if sessionID != "" {
		if session, ok := s.registry.Session(sessionID); !ok || session.Kind != models.ActorKindRider || session.ActorID != riderID {
			return utils.NewForbiddenError("session does not belong to rider %s", riderID.Hex())
		}
	}

	if err := s.riderRepo.UpdateAvailability(ctx, riderID, available); err != nil {
		return utils.AsAppError(err, "failed to update availability")
	}

	if sessionID == "" {
		live, ok := s.registry.Lookup(models.ActorKindRider, riderID)
		if !ok {
			return nil
		}
		sessionID = live
	}

	if err := s.registry.SetAvailable(riderID, sessionID, available, rider.Gender); err != nil {
		// the session went away after the flag was stored; it rejoins on connect
		if utils.IsKind(err, utils.KindNotFound) {
			return nil
		}
		return err
	}

	s.logger.WithRiderID(riderID).WithField("available", available).Info("Rider availability changed")
	return nil
}

func (s *realtimeService) SendChatMessage(ctx context.Context, sender models.Actor, rideID primitive.ObjectID, message string) (*realtime.ChatMessagePayload, error) {
	message = strings.TrimSpace(message)
	if err := validators.Validate(&validators.ChatMessageRequest{RideID: rideID.Hex(), Message: message}); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.rideForParty(ctx, sender, rideID); err != nil {
		return nil, err
	}

	payload := s.router.OnChatMessage(ctx, rideID, sender, message)
	return &payload, nil
}

// RelayStatus forwards a client reported status to the ride channel. Stored
// ride state is only changed through RideService.UpdateStatus.
func (s *realtimeService) RelayStatus(ctx context.Context, actor models.Actor, rideID primitive.ObjectID, status models.RideStatus, location *models.Coordinates) error {
	if !status.IsValid() {
		return utils.NewValidationError("unknown ride status", map[string]string{"status": string(status)})
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.rideForParty(ctx, actor, rideID); err != nil {
		return err
	}

	s.router.OnStatusUpdate(ctx, rideID, status, location)
	return nil
}

func (s *realtimeService) EmitError(ctx context.Context, sessionID string, err error) {
	s.router.EmitError(ctx, sessionID, err)
}

// Shutdown drops every session and returns how many were live.
func (s *realtimeService) Shutdown() int {
	ids := s.registry.Drain()
	for _, id := range ids {
		s.router.CloseSession(id)
	}
	return len(ids)
}

func (s *realtimeService) rideForParty(ctx context.Context, actor models.Actor, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, utils.AsAppError(err, "failed to load ride")
	}
	switch {
	case actor.Kind == models.ActorKindUser && ride.UserID == actor.ID:
	case actor.Kind == models.ActorKindRider && ride.AssignedTo(actor.ID):
	default:
		return nil, utils.NewForbiddenError("not a party to this ride")
	}
	return ride, nil
}
