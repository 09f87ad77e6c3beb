package shared

import (
	"context"
	"encoding/json"
	"errors"

	"ridehail/internal/models"
	"ridehail/internal/services"
	"ridehail/internal/utils"
	"ridehail/internal/validators"
	"ridehail/pkg/logger"
	"ridehail/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Inbound websocket events.
const (
	EventRequestRide        = "requestRide"
	EventAcceptRide         = "acceptRide"
	EventUpdateRideStatus   = "updateRideStatus"
	EventUpdateLocation     = "updateLocation"
	EventToggleAvailability = "toggleAvailability"
	EventSendMessage        = "sendMessage"
)

// SocketHandler dispatches websocket events to the services. Failures are
// reported to the originating session as errorMessage events.
type SocketHandler struct {
	rides    services.RideService
	realtime services.RealtimeService
	logger   *logger.Logger
}

func NewSocketHandler(rides services.RideService, rt services.RealtimeService, log *logger.Logger) *SocketHandler {
	return &SocketHandler{
		rides:    rides,
		realtime: rt,
		logger:   log.WithComponent("socket"),
	}
}

func (h *SocketHandler) OnConnect(ctx context.Context, client *websocket.Client) error {
	return h.realtime.HandleConnect(ctx, actorOf(client), client.SessionID)
}

func (h *SocketHandler) OnDisconnect(client *websocket.Client) {
	h.realtime.HandleDisconnect(client.SessionID)
}

func (h *SocketHandler) OnInvalidFrame(ctx context.Context, client *websocket.Client, err error) {
	h.realtime.EmitError(ctx, client.SessionID, utils.NewValidationError("malformed event frame", nil))
}

func (h *SocketHandler) OnEvent(ctx context.Context, client *websocket.Client, event string, data json.RawMessage) {
	if err := h.dispatch(ctx, client, event, data); err != nil {
		h.logger.WithSession(client.SessionID).WithField("event", event).WithError(err).Debug("Event rejected")
		h.realtime.EmitError(ctx, client.SessionID, err)
	}
}

func (h *SocketHandler) dispatch(ctx context.Context, client *websocket.Client, event string, data json.RawMessage) error {
	actor := actorOf(client)

	switch event {
	case EventRequestRide:
		if actor.Kind != models.ActorKindUser {
			return utils.NewForbiddenError("only users can request rides")
		}
		var req models.RideRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		req.UserID = actor.ID
		_, err := h.rides.RequestRide(ctx, &req)
		return err

	case EventAcceptRide:
		if actor.Kind != models.ActorKindRider {
			return utils.NewForbiddenError("only riders can accept rides")
		}
		rideID, _, err := decodeRideEvent(data)
		if err != nil {
			return err
		}
		_, err = h.rides.AcceptRide(ctx, rideID, actor.ID)
		return err

	case EventUpdateRideStatus:
		rideID, req, err := decodeRideEvent(data)
		if err != nil {
			return err
		}
		if req.Status == "" {
			return utils.NewValidationError("status is required", map[string]string{"status": "required"})
		}
		if actor.Kind == models.ActorKindRider {
			_, err = h.rides.UpdateStatus(ctx, rideID, actor.ID, req.Status, req.Location)
			return err
		}
		return h.realtime.RelayStatus(ctx, actor, rideID, req.Status, req.Location)

	case EventUpdateLocation:
		if actor.Kind != models.ActorKindRider {
			return utils.NewForbiddenError("only riders can share location")
		}
		var req validators.UpdateLocationRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		return h.realtime.UpdateLocation(ctx, actor.ID, req.Coordinates)

	case EventToggleAvailability:
		if actor.Kind != models.ActorKindRider {
			return utils.NewForbiddenError("only riders can change availability")
		}
		var req validators.ToggleAvailabilityRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		if err := validators.Validate(&req); err != nil {
			return err
		}
		return h.realtime.ToggleAvailability(ctx, actor.ID, client.SessionID, *req.IsAvailable)

	case EventSendMessage:
		var req validators.ChatMessageRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		rideID, err := primitive.ObjectIDFromHex(req.RideID)
		if err != nil {
			return utils.NewValidationError("invalid ride id", map[string]string{"ride_id": req.RideID})
		}
		_, err = h.realtime.SendChatMessage(ctx, actor, rideID, req.Message)
		return err
	}

	return utils.NewValidationError("unknown event", map[string]string{"event": event})
}

func actorOf(client *websocket.Client) models.Actor {
	return models.Actor{Kind: models.ActorKind(client.UserType), ID: client.UserID}
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return utils.NewValidationError("event payload is required", nil)
	}
	if err := json.Unmarshal(data, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return utils.NewValidationError("invalid event payload", map[string]string{typeErr.Field: "invalid type"})
		}
		return utils.NewValidationError("invalid event payload", nil)
	}
	return nil
}

func decodeRideEvent(data json.RawMessage) (primitive.ObjectID, *validators.RideEventRequest, error) {
	var req validators.RideEventRequest
	if err := decode(data, &req); err != nil {
		return primitive.NilObjectID, nil, err
	}
	if err := validators.Validate(&req); err != nil {
		return primitive.NilObjectID, nil, err
	}
	rideID, _ := primitive.ObjectIDFromHex(req.RideID)
	return rideID, &req, nil
}
