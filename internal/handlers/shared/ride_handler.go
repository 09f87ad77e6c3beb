package shared

import (
	"ridehail/internal/middleware"
	"ridehail/internal/models"
	"ridehail/internal/services"
	"ridehail/internal/utils"
	"ridehail/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideHandler struct {
	rideService     services.RideService
	realtimeService services.RealtimeService
}

func NewRideHandler(rideService services.RideService, realtimeService services.RealtimeService) *RideHandler {
	return &RideHandler{
		rideService:     rideService,
		realtimeService: realtimeService,
	}
}

// RequestRide creates a ride for the calling user and notifies riders
func (h *RideHandler) RequestRide(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request models.RideRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	request.UserID = actor.ID

	ride, err := h.rideService.RequestRide(c.Request.Context(), &request)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Ride requested successfully", ride)
}

func (h *RideHandler) GetRide(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	ride, err := h.rideService.GetRide(c.Request.Context(), rideID, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved successfully", ride)
}

func (h *RideHandler) GetAvailableRides(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	rides, err := h.rideService.GetAvailableRides(c.Request.Context(), actor.ID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Available rides retrieved successfully", rides, &utils.Meta{Count: len(rides)})
}

func (h *RideHandler) GetUserHistory(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	rides, err := h.rideService.GetUserHistory(c.Request.Context(), actor.ID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Ride history retrieved successfully", rides, &utils.Meta{Count: len(rides)})
}

func (h *RideHandler) GetRiderHistory(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	rides, err := h.rideService.GetRiderHistory(c.Request.Context(), actor.ID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Ride history retrieved successfully", rides, &utils.Meta{Count: len(rides)})
}

// AcceptRide assigns the calling rider to a requested ride
func (h *RideHandler) AcceptRide(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	ride, err := h.rideService.AcceptRide(c.Request.Context(), rideID, actor.ID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride accepted successfully", ride)
}

func (h *RideHandler) UpdateRideStatus(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	var request validators.UpdateRideStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if err := validators.Validate(&request); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	ride, err := h.rideService.UpdateStatus(c.Request.Context(), rideID, actor.ID, request.Status, request.Location)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride status updated successfully", ride)
}

func (h *RideHandler) RateRide(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	var request validators.RateRideRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if err := validators.Validate(&request); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	ride, err := h.rideService.RateRide(c.Request.Context(), rideID, actor, request.Rating, request.Feedback)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride rated successfully", ride)
}

// UpdateAvailability is the HTTP mirror of the toggleAvailability event. A
// connected rider's session joins or leaves the pools as well.
func (h *RideHandler) UpdateAvailability(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.ToggleAvailabilityRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if err := validators.Validate(&request); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	if err := h.realtimeService.ToggleAvailability(c.Request.Context(), actor.ID, "", *request.IsAvailable); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Availability updated successfully", gin.H{"is_available": *request.IsAvailable})
}

func rideIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return primitive.NilObjectID, false
	}
	return rideID, true
}
