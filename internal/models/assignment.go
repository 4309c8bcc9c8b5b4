package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Assignment links one vehicle to one shift and tracks its swap status.
// A vehicle belongs to at most one assignment at a time; the assignments
// collection carries a unique index on vehicle_id to enforce that.
// SwapCompleted only ever moves from false to true.
type Assignment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID     primitive.ObjectID `bson:"vehicle_id" json:"vehicle_id"`
	ShiftID       primitive.ObjectID `bson:"shift_id" json:"shift_id"`
	SwapCompleted bool               `bson:"swap_completed" json:"swap_completed"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}
