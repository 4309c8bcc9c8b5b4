package db

import (
	"context"
	"fmt"
	"time"

	"github.com/bardiab/shift-manager/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const metersPerMile = 1609.344

// VehicleCollection defines the interface for vehicle database operations
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) (*models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error)
	FindVehiclesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Vehicle, error)
	FindVehicles(ctx context.Context, filter bson.M) ([]models.Vehicle, error)
	ResetBattery(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error)
	FindNearest(ctx context.Context, loc models.Location, maxDistanceMiles float64, limit int64) ([]models.VehicleDistance, error)
}

// MongoVehicleCollection implements VehicleCollection for MongoDB
type MongoVehicleCollection struct {
	Collection *mongo.Collection
}

// InsertVehicle inserts a new vehicle, deriving the GeoJSON point used by
// the 2dsphere index from the flat current_location coordinates.
func (c *MongoVehicleCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) (*models.Vehicle, error) {
	if vehicle.ID.IsZero() {
		vehicle.ID = primitive.NewObjectID()
	}
	vehicle.Geo = models.NewGeoPoint(vehicle.CurrentLocation)
	vehicle.CreatedAt = time.Now()
	vehicle.UpdatedAt = time.Now()

	if _, err := c.Collection.InsertOne(ctx, vehicle); err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// FindVehicleByID finds a vehicle by its ID
func (c *MongoVehicleCollection) FindVehicleByID(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&vehicle)
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// FindVehiclesByIDs returns the vehicles whose IDs appear in ids. IDs with
// no matching vehicle are simply absent from the result, not an error.
func (c *MongoVehicleCollection) FindVehiclesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Vehicle, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := c.Collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var vehicles []models.Vehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// FindVehicles finds vehicles with optional filtering
func (c *MongoVehicleCollection) FindVehicles(ctx context.Context, filter bson.M) ([]models.Vehicle, error) {
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := c.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var vehicles []models.Vehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// ResetBattery sets a vehicle's battery level to full and returns the
// updated document. Returns mongo.ErrNoDocuments for an unknown ID.
func (c *MongoVehicleCollection) ResetBattery(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error) {
	after := options.After
	opts := &options.FindOneAndUpdateOptions{ReturnDocument: &after}

	var vehicle models.Vehicle
	err := c.Collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"battery_level": models.FullBatteryLevel, "updated_at": time.Now()}},
		opts,
	).Decode(&vehicle)
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// nearestResult is the $geoNear output shape: the vehicle document plus the
// computed distance in meters.
type nearestResult struct {
	models.Vehicle `bson:",inline"`
	DistanceMeters float64 `bson:"distance_meters"`
}

// FindNearest returns up to limit vehicles within maxDistanceMiles of loc,
// ordered nearest first. An empty result is not an error.
func (c *MongoVehicleCollection) FindNearest(ctx context.Context, loc models.Location, maxDistanceMiles float64, limit int64) ([]models.VehicleDistance, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: models.NewGeoPoint(loc)},
			{Key: "key", Value: "geo"},
			{Key: "distanceField", Value: "distance_meters"},
			{Key: "maxDistance", Value: maxDistanceMiles * metersPerMile},
			{Key: "spherical", Value: true},
		}}},
		bson.D{{Key: "$limit", Value: limit}},
	}

	cursor, err := c.Collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("geoNear aggregation failed: %w", err)
	}
	var results []nearestResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	nearest := make([]models.VehicleDistance, 0, len(results))
	for _, r := range results {
		nearest = append(nearest, models.VehicleDistance{
			Vehicle:       r.Vehicle,
			DistanceMiles: r.DistanceMeters / metersPerMile,
		})
	}
	return nearest, nil
}
