package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Shift is a batch of vehicles undergoing battery service. A shift starts
// active and flips to completed once every assigned vehicle has had its
// battery swapped. Completed implies not active.
type Shift struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Active    bool               `bson:"active" json:"active"`
	Completed bool               `bson:"completed" json:"completed"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// AddVehiclesRequest is the body for adding vehicles to a shift.
type AddVehiclesRequest struct {
	VehicleIDs []string `json:"vehicle_ids"`
}

// AutoShiftRequest is the body for automatic shift creation from a point.
type AutoShiftRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
