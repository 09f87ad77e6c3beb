package utils

import "time"

const (
	AppName    = "RideHail"
	AppVersion = "1.0.0"

	// Fare estimation
	BaseFare            = 2.5
	PerKilometerRate    = 1.5
	PerMinuteRate       = 0.3
	AverageCitySpeedKMH = 30.0

	// Ratings
	MinRating = 1.0
	MaxRating = 5.0

	// Realtime
	DefaultOperationTimeout = 5 * time.Second
	MaxChatMessageLength    = 1000

	JWTAccessTokenTTL = 30 * 24 * time.Hour
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	ErrInternalServer = "internal server error"
	ErrUnauthorized   = "unauthorized"
	ErrInvalidToken   = "invalid token"
	ErrRideNotFound   = "ride"
	ErrRiderNotFound  = "rider"
	ErrUserNotFound   = "user"
)
