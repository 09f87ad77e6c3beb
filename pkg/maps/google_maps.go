package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"
)

type GoogleMapsProvider struct {
	client *maps.Client
}

func NewGoogleMapsProvider(apiKey string) (*GoogleMapsProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return &GoogleMapsProvider{client: client}, nil
}

func (g *GoogleMapsProvider) EstimateRoute(ctx context.Context, origin, destination Location) (*RouteEstimate, error) {
	req := &maps.DirectionsRequest{
		Origin:      formatLatLng(origin),
		Destination: formatLatLng(destination),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := g.client.Directions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	if len(routes) == 0 {
		return nil, errors.New("directions returned no routes")
	}

	route := routes[0]
	estimate := &RouteEstimate{Polyline: route.OverviewPolyline.Points}
	for _, leg := range route.Legs {
		estimate.DistanceMeters += float64(leg.Distance.Meters)
		estimate.DurationSeconds += int(leg.Duration.Seconds())
	}

	return estimate, nil
}

func formatLatLng(l Location) string {
	return fmt.Sprintf("%f,%f", l.Latitude, l.Longitude)
}
