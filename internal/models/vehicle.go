package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FullBatteryLevel is the battery percentage a vehicle holds right after a swap.
const FullBatteryLevel = 100.0

// Vehicle represents a shared fleet vehicle.
type Vehicle struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LicensePlate string             `bson:"license_plate" json:"license_plate"`
	Model        string             `bson:"model" json:"model"`
	BatteryLevel float64            `bson:"battery_level" json:"battery_level"`
	InUse        bool               `bson:"in_use" json:"in_use"`
	// CurrentLocation is what the API exposes; Geo is the same point in
	// GeoJSON form for the 2dsphere index, kept in sync by the db layer.
	CurrentLocation Location  `bson:"current_location" json:"current_location"`
	Geo             GeoPoint  `bson:"geo" json:"-"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// VehicleDistance pairs a vehicle with its distance from a query point.
type VehicleDistance struct {
	Vehicle       Vehicle `json:"vehicle"`
	DistanceMiles float64 `json:"distance_miles"`
}
