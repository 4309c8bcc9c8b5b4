package shifts

import (
	"context"
	"errors"
	"fmt"

	"github.com/bardiab/shift-manager/internal/db"
	"github.com/bardiab/shift-manager/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrShiftNotFound      = errors.New("shift not found")
	ErrVehicleNotFound    = errors.New("vehicle not found")
	ErrAssignmentNotFound = errors.New("vehicle is not assigned to a shift")
	ErrEmptyShift         = errors.New("shift has no assigned vehicles")
)

const (
	// AutoShiftRadiusMiles bounds how far from the query point automatic
	// shift creation will look for vehicles.
	AutoShiftRadiusMiles = 50.0
	// AutoShiftMaxVehicles caps how many vehicles an automatic shift takes.
	AutoShiftMaxVehicles = 20
)

// Service owns the vehicle-to-shift membership rules: which vehicles may
// enter a shift, how swaps are recorded, and how shift completion is derived.
type Service struct {
	vehicles    db.VehicleCollection
	shifts      db.ShiftCollection
	assignments db.AssignmentCollection
}

// NewService creates a shift service backed by the given collections.
func NewService(vehicles db.VehicleCollection, shifts db.ShiftCollection, assignments db.AssignmentCollection) *Service {
	return &Service{
		vehicles:    vehicles,
		shifts:      shifts,
		assignments: assignments,
	}
}

// CreateShift creates a new, empty, active shift.
func (s *Service) CreateShift(ctx context.Context) (*models.Shift, error) {
	return s.shifts.InsertShift(ctx)
}

// GetShift returns a shift by ID.
func (s *Service) GetShift(ctx context.Context, shiftID primitive.ObjectID) (*models.Shift, error) {
	shift, err := s.shifts.FindShiftByID(ctx, shiftID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrShiftNotFound
		}
		return nil, err
	}
	return shift, nil
}

// GetVehicle returns a vehicle by ID.
func (s *Service) GetVehicle(ctx context.Context, vehicleID primitive.ObjectID) (*models.Vehicle, error) {
	vehicle, err := s.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return vehicle, nil
}

// ListVehicles returns all vehicles in the fleet.
func (s *Service) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	return s.vehicles.FindVehicles(ctx, nil)
}

// AddVehiclesToShift assigns vehicles to a shift and returns the assignments
// actually created, in input order.
//
// Unknown vehicle IDs are filtered out silently, and so is any vehicle that
// already holds an assignment, in this shift or any other. A vehicle that
// races into another shift between the membership check and the insert is
// caught by the unique index and likewise dropped from the result instead of
// failing the batch.
func (s *Service) AddVehiclesToShift(ctx context.Context, vehicleIDs []primitive.ObjectID, shiftID primitive.ObjectID) ([]models.Assignment, error) {
	shift, err := s.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}

	vehicles, err := s.vehicles.FindVehiclesByIDs(ctx, vehicleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vehicles: %w", err)
	}
	found := make(map[primitive.ObjectID]bool, len(vehicles))
	for _, v := range vehicles {
		found[v.ID] = true
	}

	var toCreate []models.Assignment
	for _, vehicleID := range vehicleIDs {
		if !found[vehicleID] {
			continue
		}
		// don't add a vehicle to a shift if it's already in one
		_, err := s.assignments.FindAssignmentByVehicle(ctx, vehicleID)
		if err == nil {
			continue
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to check existing assignment: %w", err)
		}
		toCreate = append(toCreate, models.Assignment{
			VehicleID: vehicleID,
			ShiftID:   shift.ID,
		})
	}

	created, err := s.assignments.InsertAssignments(ctx, toCreate)
	if err != nil {
		return nil, fmt.Errorf("failed to insert assignments: %w", err)
	}
	return created, nil
}

// GetVehiclesInShift returns the vehicles currently assigned to a shift.
// A shift with no members yields an empty slice.
func (s *Service) GetVehiclesInShift(ctx context.Context, shiftID primitive.ObjectID) ([]models.Vehicle, error) {
	assignments, err := s.assignments.FindAssignmentsByShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return []models.Vehicle{}, nil
	}

	vehicleIDs := make([]primitive.ObjectID, 0, len(assignments))
	for _, a := range assignments {
		vehicleIDs = append(vehicleIDs, a.VehicleID)
	}
	return s.vehicles.FindVehiclesByIDs(ctx, vehicleIDs)
}

// AutoCreateShift selects the closest vehicles within AutoShiftRadiusMiles
// of (lat, lon) and adds them to a newly created shift, nearest first.
//
// The returned vehicles are the candidates from the geo query. A candidate
// already assigned elsewhere is excluded from the shift by the membership
// rules, so the caller must not assume every returned vehicle was assigned.
func (s *Service) AutoCreateShift(ctx context.Context, lat, lon float64) ([]models.VehicleDistance, *models.Shift, error) {
	loc := models.Location{Lat: lat, Lon: lon}
	nearest, err := s.vehicles.FindNearest(ctx, loc, AutoShiftRadiusMiles, AutoShiftMaxVehicles)
	if err != nil {
		return nil, nil, fmt.Errorf("nearest-vehicle query failed: %w", err)
	}

	shift, err := s.CreateShift(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create shift: %w", err)
	}

	vehicleIDs := make([]primitive.ObjectID, 0, len(nearest))
	for _, n := range nearest {
		vehicleIDs = append(vehicleIDs, n.Vehicle.ID)
	}
	if _, err := s.AddVehiclesToShift(ctx, vehicleIDs, shift.ID); err != nil {
		return nil, nil, err
	}

	return nearest, shift, nil
}
