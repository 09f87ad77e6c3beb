package services

import (
	"context"

	"ridehail/internal/models"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"
	"ridehail/pkg/maps"
)

type FareService interface {
	Estimate(ctx context.Context, pickup, dropoff models.Coordinates) (*models.Fare, *models.Route)
}

type fareService struct {
	routes maps.RouteProvider
	logger *logger.Logger
}

// NewFareService prices rides from the route provider when one is set and
// from the straight line distance otherwise.
func NewFareService(routes maps.RouteProvider, log *logger.Logger) FareService {
	return &fareService{
		routes: routes,
		logger: log.WithComponent("fare"),
	}
}

func (s *fareService) Estimate(ctx context.Context, pickup, dropoff models.Coordinates) (*models.Fare, *models.Route) {
	route := s.estimateRoute(ctx, pickup, dropoff)
	return CalculateFare(route.Distance, route.Duration), route
}

func (s *fareService) estimateRoute(ctx context.Context, pickup, dropoff models.Coordinates) *models.Route {
	if s.routes != nil {
		estimate, err := s.routes.EstimateRoute(ctx,
			maps.Location{Latitude: pickup.Latitude, Longitude: pickup.Longitude},
			maps.Location{Latitude: dropoff.Latitude, Longitude: dropoff.Longitude},
		)
		if err == nil {
			return &models.Route{
				Distance: utils.RoundTo(estimate.DistanceMeters/1000, 2),
				Duration: (estimate.DurationSeconds + 59) / 60,
				Polyline: estimate.Polyline,
			}
		}
		s.logger.WithError(err).Warn("Route provider failed, using straight line estimate")
	}

	distance := utils.CalculateDistance(pickup.Latitude, pickup.Longitude, dropoff.Latitude, dropoff.Longitude)
	return &models.Route{
		Distance: utils.RoundTo(distance, 2),
		Duration: utils.EstimateDurationMinutes(distance, utils.AverageCitySpeedKMH),
	}
}

// CalculateFare prices a trip of distanceKM kilometers lasting minutes.
func CalculateFare(distanceKM float64, minutes int) *models.Fare {
	distanceCost := utils.RoundTo(distanceKM*utils.PerKilometerRate, 2)
	durationCost := utils.RoundTo(float64(minutes)*utils.PerMinuteRate, 2)
	return &models.Fare{
		BaseFare: utils.BaseFare,
		Distance: distanceCost,
		Duration: durationCost,
		Total:    utils.RoundTo(utils.BaseFare+distanceCost+durationCost, 2),
	}
}
