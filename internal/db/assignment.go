package db

import (
	"context"
	"errors"
	"time"

	"github.com/bardiab/shift-manager/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const duplicateKeyCode = 11000

// AssignmentCollection defines the interface for assignment database operations
type AssignmentCollection interface {
	InsertAssignments(ctx context.Context, assignments []models.Assignment) ([]models.Assignment, error)
	FindAssignmentsByShift(ctx context.Context, shiftID primitive.ObjectID) ([]models.Assignment, error)
	FindAssignmentByVehicle(ctx context.Context, vehicleID primitive.ObjectID) (*models.Assignment, error)
	FindAssignmentByVehicleAndShift(ctx context.Context, vehicleID, shiftID primitive.ObjectID) (*models.Assignment, error)
	MarkSwapCompleted(ctx context.Context, id primitive.ObjectID) error
}

// MongoAssignmentCollection implements AssignmentCollection for MongoDB
type MongoAssignmentCollection struct {
	Collection *mongo.Collection
}

// InsertAssignments bulk-inserts assignments with duplicate-key tolerance.
// The insert is unordered, so a vehicle that raced into another shift only
// knocks out its own document; the rest still land. The returned slice holds
// the assignments actually inserted, in input order.
func (c *MongoAssignmentCollection) InsertAssignments(ctx context.Context, assignments []models.Assignment) ([]models.Assignment, error) {
	if len(assignments) == 0 {
		return nil, nil
	}

	now := time.Now()
	docs := make([]interface{}, 0, len(assignments))
	for i := range assignments {
		if assignments[i].ID.IsZero() {
			assignments[i].ID = primitive.NewObjectID()
		}
		assignments[i].CreatedAt = now
		assignments[i].UpdatedAt = now
		docs = append(docs, assignments[i])
	}

	opts := options.InsertMany().SetOrdered(false)
	_, err := c.Collection.InsertMany(ctx, docs, opts)
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && duplicatesOnly(bwe) {
			return withoutConflicted(assignments, bwe), nil
		}
		return nil, err
	}
	return assignments, nil
}

// duplicatesOnly reports whether every write error in bwe is a duplicate key
// violation. Anything else is a real failure and must surface.
func duplicatesOnly(bwe mongo.BulkWriteException) bool {
	if bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

// withoutConflicted drops the assignments whose inserts were rejected as
// duplicates, preserving input order for the rest.
func withoutConflicted(assignments []models.Assignment, bwe mongo.BulkWriteException) []models.Assignment {
	conflicted := make(map[int]bool, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		conflicted[we.Index] = true
	}
	inserted := make([]models.Assignment, 0, len(assignments))
	for i, a := range assignments {
		if !conflicted[i] {
			inserted = append(inserted, a)
		}
	}
	return inserted
}

// FindAssignmentsByShift returns all assignments for a shift. An unknown or
// empty shift yields an empty slice, not an error.
func (c *MongoAssignmentCollection) FindAssignmentsByShift(ctx context.Context, shiftID primitive.ObjectID) ([]models.Assignment, error) {
	cursor, err := c.Collection.Find(ctx, bson.M{"shift_id": shiftID})
	if err != nil {
		return nil, err
	}
	var assignments []models.Assignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// FindAssignmentByVehicle finds the assignment for a vehicle, in any shift.
// There is at most one thanks to the unique vehicle_id index.
func (c *MongoAssignmentCollection) FindAssignmentByVehicle(ctx context.Context, vehicleID primitive.ObjectID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := c.Collection.FindOne(ctx, bson.M{"vehicle_id": vehicleID}).Decode(&assignment)
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindAssignmentByVehicleAndShift finds the assignment matching both IDs
func (c *MongoAssignmentCollection) FindAssignmentByVehicleAndShift(ctx context.Context, vehicleID, shiftID primitive.ObjectID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := c.Collection.FindOne(ctx, bson.M{"vehicle_id": vehicleID, "shift_id": shiftID}).Decode(&assignment)
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// MarkSwapCompleted records a completed battery swap on an assignment.
// The flag only ever moves from false to true.
func (c *MongoAssignmentCollection) MarkSwapCompleted(ctx context.Context, id primitive.ObjectID) error {
	result, err := c.Collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"swap_completed": true, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
