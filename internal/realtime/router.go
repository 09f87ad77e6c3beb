package realtime

import (
	"context"
	"errors"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/observability"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transport delivers events to individual sessions. EmitToSession must not
// block on a slow peer.
type Transport interface {
	EmitToSession(ctx context.Context, sessionID, event string, payload interface{}) error
	CloseSession(sessionID string)
}

// Router resolves the audience of ride events and hands them to the
// transport. Delivery failures are logged and never returned.
type Router struct {
	registry  *Registry
	transport Transport
	rides     interfaces.RideRepository
	riders    interfaces.RiderRepository
	logger    *logger.Logger
	now       func() time.Time
}

func NewRouter(registry *Registry, transport Transport, rides interfaces.RideRepository, riders interfaces.RiderRepository, log *logger.Logger) *Router {
	return &Router{
		registry:  registry,
		transport: transport,
		rides:     rides,
		riders:    riders,
		logger:    log.WithComponent("router"),
		now:       time.Now,
	}
}

func (r *Router) Registry() *Registry {
	return r.registry
}

// OnRideCreated offers the ride to the pool matching its gender preference
// and returns the number of sessions it reached.
func (r *Router) OnRideCreated(ctx context.Context, ride *models.Ride) int {
	group := AudienceForPreference(ride.PreferredRiderGender)
	return r.deliver(ctx, EventNewRideRequest, r.registry.Members(group), ride)
}

// OnRideAccepted tells the requester, withdraws the offer from every other
// available rider and opens the ride channel for both parties.
func (r *Router) OnRideAccepted(ctx context.Context, ride *models.Ride, rider *models.Rider) {
	if !ride.IsAssigned() {
		return
	}

	riderSession, riderOnline := r.registry.Lookup(models.ActorKindRider, *ride.RiderID)
	userSession, userOnline := r.registry.Lookup(models.ActorKindUser, ride.UserID)

	payload := RideAcceptedPayload{Ride: ride}
	if rider != nil {
		payload.Rider = rider.Summary()
	}
	if userOnline {
		r.deliver(ctx, EventRideAccepted, []string{userSession}, payload)
	} else {
		r.logger.WithRideID(ride.ID).Debug("Requester not connected, skipping accept notification")
	}

	var exclude []string
	if riderOnline {
		exclude = append(exclude, riderSession)
	}
	r.deliver(ctx, EventRideUnavailable, r.registry.Members(AvailablePool(), exclude...), RideUnavailablePayload{RideID: ride.ID})

	channel := RideChannel(ride.ID)
	if riderOnline {
		r.joinChannel(riderSession, channel)
	}
	if userOnline {
		r.joinChannel(userSession, channel)
	}
}

// OnLocationUpdate persists the rider position and relays it on the channel
// of every ride the rider is actively serving.
func (r *Router) OnLocationUpdate(ctx context.Context, riderID primitive.ObjectID, coords models.Coordinates) error {
	if err := r.riders.UpdateLocation(ctx, riderID, coords); err != nil {
		return utils.AsAppError(err, "failed to persist rider location")
	}

	active, err := r.rides.Find(ctx, interfaces.RideFilter{
		RiderID:  &riderID,
		Statuses: []models.RideStatus{models.RideStatusAccepted, models.RideStatusInProgress},
	})
	if err != nil {
		return utils.AsAppError(err, "failed to load active rides")
	}

	now := r.now()
	for _, ride := range active {
		r.deliver(ctx, EventRiderLocation, r.registry.Members(RideChannel(ride.ID)), RiderLocationPayload{
			RideID:      ride.ID,
			RiderID:     riderID,
			Coordinates: coords,
			Timestamp:   now,
		})
	}
	return nil
}

// OnStatusUpdate relays a status change to the ride channel. It does not
// touch stored ride state.
func (r *Router) OnStatusUpdate(ctx context.Context, rideID primitive.ObjectID, status models.RideStatus, location *models.Coordinates) {
	r.deliver(ctx, EventRideStatusUpdated, r.registry.Members(RideChannel(rideID)), RideStatusPayload{
		RideID:    rideID,
		Status:    status,
		Location:  location,
		Timestamp: r.now(),
	})
}

// OnChatMessage stamps the message with the server clock and relays it to
// the ride channel.
func (r *Router) OnChatMessage(ctx context.Context, rideID primitive.ObjectID, sender models.Actor, message string) ChatMessagePayload {
	payload := ChatMessagePayload{
		RideID:     rideID,
		SenderID:   sender.ID,
		SenderKind: sender.Kind,
		Message:    message,
		Timestamp:  r.now(),
	}
	r.deliver(ctx, EventNewMessage, r.registry.Members(RideChannel(rideID)), payload)
	return payload
}

// EmitError sends an errorMessage event to a single session.
func (r *Router) EmitError(ctx context.Context, sessionID string, err error) {
	payload := ErrorPayload{Kind: string(utils.ErrorKindOf(err)), Message: err.Error()}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		payload.Message = appErr.Message
	}
	r.deliver(ctx, EventError, []string{sessionID}, payload)
}

// CloseSession asks the transport to drop a session displaced by a newer
// connection.
func (r *Router) CloseSession(sessionID string) {
	r.transport.CloseSession(sessionID)
}

func (r *Router) joinChannel(sessionID string, channel GroupID) {
	if err := r.registry.Join(sessionID, channel); err != nil {
		r.logger.WithSession(sessionID).WithError(err).Debugf("Session left before joining %s", channel)
	}
}

func (r *Router) deliver(ctx context.Context, event string, sessions []string, payload interface{}) int {
	if len(sessions) == 0 {
		r.logger.WithField("event", event).Debug("No audience for event")
		return 0
	}

	delivered := 0
	for _, sessionID := range sessions {
		if err := r.transport.EmitToSession(ctx, sessionID, event, payload); err != nil {
			observability.BroadcastsTotal.WithLabelValues(event, observability.OutcomeFailed).Inc()
			r.logger.LogDeliveryFailure(event, sessionID, err)
			continue
		}
		observability.BroadcastsTotal.WithLabelValues(event, observability.OutcomeDelivered).Inc()
		delivered++
	}
	return delivered
}
