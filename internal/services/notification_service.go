package services

import (
	"context"
	"strings"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/pkg/logger"
	"ridehail/pkg/push"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	titleRideAccepted = "Ride Accepted"
	bodyRideAccepted  = "Your ride request has been accepted"
)

type NotificationService interface {
	NotifyUser(ctx context.Context, userID primitive.ObjectID, title, body string, data map[string]string)
}

type notificationService struct {
	provider push.PushProvider
	users    interfaces.UserRepository
	logger   *logger.Logger
}

// NewNotificationService returns a best effort push notifier. A nil provider
// disables delivery.
func NewNotificationService(provider push.PushProvider, users interfaces.UserRepository, log *logger.Logger) NotificationService {
	return &notificationService{
		provider: provider,
		users:    users,
		logger:   log.WithComponent("notification"),
	}
}

func (s *notificationService) NotifyUser(ctx context.Context, userID primitive.ObjectID, title, body string, data map[string]string) {
	log := s.logger.WithUserID(userID).WithField("title", title)
	if s.provider == nil {
		log.Debug("Push disabled, skipping notification")
		return
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("Cannot load user for push notification")
		return
	}
	if user.FCMToken == "" {
		log.Debug("User has no device token")
		return
	}

	_, err = s.provider.SendNotification(ctx, &push.NotificationRequest{
		Token:    user.FCMToken,
		Title:    title,
		Body:     body,
		Data:     data,
		Priority: "high",
		Sound:    "default",
	})
	if err != nil {
		log.WithError(err).Warn("Push notification failed")
	}
}

// statusNotification returns the push title and body for a status change.
func statusNotification(status models.RideStatus) (string, string) {
	s := string(status)
	title := "Ride " + strings.ToUpper(s[:1]) + s[1:]

	switch status {
	case models.RideStatusInProgress:
		return title, "Your ride has started"
	case models.RideStatusCompleted:
		return title, "Your ride has been completed"
	case models.RideStatusCancelled:
		return title, "Your ride has been cancelled"
	default:
		return title, "Your ride status has been updated to " + s
	}
}
