package db

import (
	"context"
	"time"

	"github.com/bardiab/shift-manager/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ShiftCollection defines the interface for shift database operations
type ShiftCollection interface {
	InsertShift(ctx context.Context) (*models.Shift, error)
	FindShiftByID(ctx context.Context, id primitive.ObjectID) (*models.Shift, error)
	MarkShiftCompleted(ctx context.Context, id primitive.ObjectID) error
}

// MongoShiftCollection implements ShiftCollection for MongoDB
type MongoShiftCollection struct {
	Collection *mongo.Collection
}

// InsertShift creates a new shift. Shifts start active and not completed.
func (c *MongoShiftCollection) InsertShift(ctx context.Context) (*models.Shift, error) {
	shift := models.Shift{
		ID:        primitive.NewObjectID(),
		Active:    true,
		Completed: false,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if _, err := c.Collection.InsertOne(ctx, shift); err != nil {
		return nil, err
	}
	return &shift, nil
}

// FindShiftByID finds a shift by its ID
func (c *MongoShiftCollection) FindShiftByID(ctx context.Context, id primitive.ObjectID) (*models.Shift, error) {
	var shift models.Shift
	err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&shift)
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

// MarkShiftCompleted flips a shift to completed and inactive. Calling it on
// an already-completed shift is a no-op, so concurrent completion checks can
// both issue the write safely.
func (c *MongoShiftCollection) MarkShiftCompleted(ctx context.Context, id primitive.ObjectID) error {
	result, err := c.Collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"completed": true, "active": false, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
