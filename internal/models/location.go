package models

import (
	"time"
)

type Coordinates struct {
	Latitude  float64 `json:"latitude" bson:"latitude" validate:"coordinates_lat"`
	Longitude float64 `json:"longitude" bson:"longitude" validate:"coordinates_lng"`
}

type Location struct {
	Address     string      `json:"address" bson:"address" validate:"required"`
	Coordinates Coordinates `json:"coordinates" bson:"coordinates"`
}

type CurrentLocation struct {
	Coordinates Coordinates `json:"coordinates" bson:"coordinates"`
	LastUpdated time.Time   `json:"last_updated" bson:"last_updated"`
}
