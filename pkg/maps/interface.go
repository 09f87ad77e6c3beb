package maps

import "context"

// RouteProvider estimates the driving route between two points.
type RouteProvider interface {
	EstimateRoute(ctx context.Context, origin, destination Location) (*RouteEstimate, error)
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type RouteEstimate struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds int     `json:"duration_seconds"`
	Polyline        string  `json:"polyline,omitempty"`
}
