package routes

import (
	handlers "ridehail/internal/handlers/shared"
	"ridehail/internal/middleware"
	"ridehail/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes sets up routes for the ride lifecycle
func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler, jwtSecret string) {
	rides := r.Group("/rides")
	rides.Use(middleware.AuthRequired(jwtSecret))
	{
		rides.POST("", middleware.UserRequired(), rideHandler.RequestRide)
		rides.GET("/available", middleware.RiderRequired(), rideHandler.GetAvailableRides)
		rides.GET("/history", middleware.UserRequired(), rideHandler.GetUserHistory)
		rides.GET("/rider-history", middleware.RiderRequired(), rideHandler.GetRiderHistory)
		rides.GET("/:id", rideHandler.GetRide)

		rides.PUT("/:id/accept", middleware.RiderRequired(), rideHandler.AcceptRide)
		rides.PUT("/:id/status", middleware.RiderRequired(), rideHandler.UpdateRideStatus)
		rides.POST("/:id/rate", rideHandler.RateRide)
	}

	riders := r.Group("/riders")
	riders.Use(middleware.AuthRequired(jwtSecret), middleware.RiderRequired())
	{
		riders.PUT("/availability", rideHandler.UpdateAvailability)
	}
}

// SetupRealtimeRoutes mounts the websocket endpoint. Browsers pass the token
// as a query parameter.
func SetupRealtimeRoutes(r *gin.Engine, path string, wsHandler *websocket.Handler, jwtSecret string) {
	r.GET(path, middleware.AuthRequired(jwtSecret), wsHandler.HandleWebSocket)
}
