package shifts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bardiab/shift-manager/internal/models"
)

// MockVehicleCollection is a mock implementation of db.VehicleCollection
type MockVehicleCollection struct {
	mock.Mock
}

func (m *MockVehicleCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) (*models.Vehicle, error) {
	args := m.Called(ctx, vehicle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleCollection) FindVehicleByID(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleCollection) FindVehiclesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Vehicle, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func (m *MockVehicleCollection) FindVehicles(ctx context.Context, filter bson.M) ([]models.Vehicle, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func (m *MockVehicleCollection) ResetBattery(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleCollection) FindNearest(ctx context.Context, loc models.Location, maxDistanceMiles float64, limit int64) ([]models.VehicleDistance, error) {
	args := m.Called(ctx, loc, maxDistanceMiles, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VehicleDistance), args.Error(1)
}

// MockShiftCollection is a mock implementation of db.ShiftCollection
type MockShiftCollection struct {
	mock.Mock
}

func (m *MockShiftCollection) InsertShift(ctx context.Context) (*models.Shift, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shift), args.Error(1)
}

func (m *MockShiftCollection) FindShiftByID(ctx context.Context, id primitive.ObjectID) (*models.Shift, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shift), args.Error(1)
}

func (m *MockShiftCollection) MarkShiftCompleted(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockAssignmentCollection is a mock implementation of db.AssignmentCollection
type MockAssignmentCollection struct {
	mock.Mock
}

func (m *MockAssignmentCollection) InsertAssignments(ctx context.Context, assignments []models.Assignment) ([]models.Assignment, error) {
	args := m.Called(ctx, assignments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Assignment), args.Error(1)
}

func (m *MockAssignmentCollection) FindAssignmentsByShift(ctx context.Context, shiftID primitive.ObjectID) ([]models.Assignment, error) {
	args := m.Called(ctx, shiftID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Assignment), args.Error(1)
}

func (m *MockAssignmentCollection) FindAssignmentByVehicle(ctx context.Context, vehicleID primitive.ObjectID) (*models.Assignment, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assignment), args.Error(1)
}

func (m *MockAssignmentCollection) FindAssignmentByVehicleAndShift(ctx context.Context, vehicleID, shiftID primitive.ObjectID) (*models.Assignment, error) {
	args := m.Called(ctx, vehicleID, shiftID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assignment), args.Error(1)
}

func (m *MockAssignmentCollection) MarkSwapCompleted(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type testEnv struct {
	vehicles    *MockVehicleCollection
	shifts      *MockShiftCollection
	assignments *MockAssignmentCollection
	service     *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		vehicles:    new(MockVehicleCollection),
		shifts:      new(MockShiftCollection),
		assignments: new(MockAssignmentCollection),
	}
	env.service = NewService(env.vehicles, env.shifts, env.assignments)
	return env
}

// manhattanVehicles returns n vehicles at increasing latitude in Manhattan.
func manhattanVehicles(n int) []models.Vehicle {
	vehicles := make([]models.Vehicle, 0, n)
	for i := 0; i < n; i++ {
		vehicles = append(vehicles, models.Vehicle{
			ID:           primitive.NewObjectID(),
			LicensePlate: string(rune('A'+i)) + "-PLATE",
			Model:        "Leaf",
			BatteryLevel: 40,
			CurrentLocation: models.Location{
				Lat: 40.70 + float64(i)*0.01,
				Lon: -73.99,
			},
		})
	}
	return vehicles
}

func vehicleIDs(vehicles []models.Vehicle) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(vehicles))
	for _, v := range vehicles {
		ids = append(ids, v.ID)
	}
	return ids
}

func activeShift() *models.Shift {
	return &models.Shift{ID: primitive.NewObjectID(), Active: true, Completed: false}
}

// expectedAssignments mirrors what the service hands to InsertAssignments
// for the given vehicles: bare membership records, swap not yet completed.
func expectedAssignments(ids []primitive.ObjectID, shiftID primitive.ObjectID) []models.Assignment {
	assignments := make([]models.Assignment, 0, len(ids))
	for _, id := range ids {
		assignments = append(assignments, models.Assignment{VehicleID: id, ShiftID: shiftID})
	}
	return assignments
}

func TestAddVehiclesToShift_CreatesAssignments(t *testing.T) {
	env := newTestEnv()
	shift := activeShift()
	vehicles := manhattanVehicles(3)
	ids := vehicleIDs(vehicles)

	env.shifts.On("FindShiftByID", mock.Anything, shift.ID).Return(shift, nil)
	env.vehicles.On("FindVehiclesByIDs", mock.Anything, ids).Return(vehicles, nil)
	for _, id := range ids {
		env.assignments.On("FindAssignmentByVehicle", mock.Anything, id).Return(nil, mongo.ErrNoDocuments)
	}
	expected := expectedAssignments(ids, shift.ID)
	env.assignments.On("InsertAssignments", mock.Anything, expected).Return(expected, nil)

	created, err := env.service.AddVehiclesToShift(context.Background(), ids, shift.ID)
	assert.NoError(t, err)
	assert.Len(t, created, 3)
	for i, a := range created {
		assert.Equal(t, ids[i], a.VehicleID, "assignments should follow input vehicle order")
		assert.Equal(t, shift.ID, a.ShiftID)
		assert.False(t, a.SwapCompleted)
	}
}

func TestAddVehiclesToShift_ShiftNotFound(t *testing.T) {
	env := newTestEnv()
	shiftID := primitive.NewObjectID()

	env.shifts.On("FindShiftByID", mock.Anything, shiftID).Return(nil, mongo.ErrNoDocuments)

	_, err := env.service.AddVehiclesToShift(context.Background(), vehicleIDs(manhattanVehicles(1)), shiftID)
	assert.ErrorIs(t, err, ErrShiftNotFound)
	env.assignments.AssertNotCalled(t, "InsertAssignments", mock.Anything, mock.Anything)
}

func TestAddVehiclesToShift_UnknownVehiclesFiltered(t *testing.T) {
	env := newTestEnv()
	shift := activeShift()
	vehicles := manhattanVehicles(2)
	unknownID := primitive.NewObjectID()
	requested := append(vehicleIDs(vehicles), unknownID)

	env.shifts.On("FindShiftByID", mock.Anything, shift.ID).Return(shift, nil)
	env.vehicles.On("FindVehiclesByIDs", mock.Anything, requested).Return(vehicles, nil)
	for _, v := range vehicles {
		env.assignments.On("FindAssignmentByVehicle", mock.Anything, v.ID).Return(nil, mongo.ErrNoDocuments)
	}
	expected := expectedAssignments(vehicleIDs(vehicles), shift.ID)
	env.assignments.On("InsertAssignments", mock.Anything, expected).Return(expected, nil)

	created, err := env.service.AddVehiclesToShift(context.Background(), requested, shift.ID)
	assert.NoError(t, err)
	assert.Len(t, created, 2)
	env.assignments.AssertNotCalled(t, "FindAssignmentByVehicle", mock.Anything, unknownID)
}

func TestAddVehiclesToShift_AlreadyAssignedSkipped(t *testing.T) {
	// Adding a vehicle to a second shift must not create a second
	// assignment: membership anywhere blocks re-assignment.
	env := newTestEnv()
	firstShift := activeShift()
	secondShift := activeShift()
	vehicles := manhattanVehicles(3)
	ids := vehicleIDs(vehicles)

	env.shifts.On("FindShiftByID", mock.Anything, secondShift.ID).Return(secondShift, nil)
	env.vehicles.On("FindVehiclesByIDs", mock.Anything, ids).Return(vehicles, nil)
	for i, id := range ids {
		existing := &models.Assignment{
			ID:        primitive.NewObjectID(),
			VehicleID: ids[i],
			ShiftID:   firstShift.ID,
		}
		env.assignments.On("FindAssignmentByVehicle", mock.Anything, id).Return(existing, nil)
	}
	env.assignments.On("InsertAssignments", mock.Anything, mock.MatchedBy(func(toCreate []models.Assignment) bool {
		return len(toCreate) == 0
	})).Return(nil, nil)

	created, err := env.service.AddVehiclesToShift(context.Background(), ids, secondShift.ID)
	assert.NoError(t, err)
	assert.Empty(t, created)
}

func TestAddVehiclesToShift_ConcurrentDuplicateDropped(t *testing.T) {
	// A vehicle that races into another shift between the membership check
	// and the insert is dropped by the storage layer; the call still
	// succeeds with the surviving assignments.
	env := newTestEnv()
	shift := activeShift()
	vehicles := manhattanVehicles(2)
	ids := vehicleIDs(vehicles)

	env.shifts.On("FindShiftByID", mock.Anything, shift.ID).Return(shift, nil)
	env.vehicles.On("FindVehiclesByIDs", mock.Anything, ids).Return(vehicles, nil)
	for _, id := range ids {
		env.assignments.On("FindAssignmentByVehicle", mock.Anything, id).Return(nil, mongo.ErrNoDocuments)
	}
	expected := expectedAssignments(ids, shift.ID)
	// the second insert lost the race and was suppressed as a duplicate
	env.assignments.On("InsertAssignments", mock.Anything, expected).Return(expected[:1], nil)

	created, err := env.service.AddVehiclesToShift(context.Background(), ids, shift.ID)
	assert.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Equal(t, ids[0], created[0].VehicleID)
}

func TestGetVehiclesInShift_Empty(t *testing.T) {
	env := newTestEnv()
	shiftID := primitive.NewObjectID()

	env.assignments.On("FindAssignmentsByShift", mock.Anything, shiftID).Return([]models.Assignment{}, nil)

	vehicles, err := env.service.GetVehiclesInShift(context.Background(), shiftID)
	assert.NoError(t, err)
	assert.Empty(t, vehicles)
	env.vehicles.AssertNotCalled(t, "FindVehiclesByIDs", mock.Anything, mock.Anything)
}

func TestSwapBattery(t *testing.T) {
	env := newTestEnv()
	shift := activeShift()
	vehicle := manhattanVehicles(1)[0]
	assignment := &models.Assignment{
		ID:        primitive.NewObjectID(),
		VehicleID: vehicle.ID,
		ShiftID:   shift.ID,
	}

	swapped := vehicle
	swapped.BatteryLevel = models.FullBatteryLevel
	env.vehicles.On("ResetBattery", mock.Anything, vehicle.ID).Return(&swapped, nil)
	env.assignments.On("FindAssignmentByVehicle", mock.Anything, vehicle.ID).Return(assignment, nil)
	env.assignments.On("MarkSwapCompleted", mock.Anything, assignment.ID).Return(nil)

	// recording twice leaves the same state both times
	for i := 0; i < 2; i++ {
		result, err := env.service.SwapBattery(context.Background(), vehicle.ID)
		assert.NoError(t, err)
		assert.Equal(t, models.FullBatteryLevel, result.BatteryLevel)
	}
	env.assignments.AssertNumberOfCalls(t, "MarkSwapCompleted", 2)
}

func TestSwapBattery_VehicleNotFound(t *testing.T) {
	env := newTestEnv()
	vehicleID := primitive.NewObjectID()

	env.vehicles.On("ResetBattery", mock.Anything, vehicleID).Return(nil, mongo.ErrNoDocuments)

	_, err := env.service.SwapBattery(context.Background(), vehicleID)
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}

func TestSwapBattery_NotAssigned(t *testing.T) {
	env := newTestEnv()
	vehicle := manhattanVehicles(1)[0]

	swapped := vehicle
	swapped.BatteryLevel = models.FullBatteryLevel
	env.vehicles.On("ResetBattery", mock.Anything, vehicle.ID).Return(&swapped, nil)
	env.assignments.On("FindAssignmentByVehicle", mock.Anything, vehicle.ID).Return(nil, mongo.ErrNoDocuments)

	_, err := env.service.SwapBattery(context.Background(), vehicle.ID)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestIsSwapCompleted(t *testing.T) {
	env := newTestEnv()
	vehicleID := primitive.NewObjectID()
	shiftID := primitive.NewObjectID()

	env.assignments.On("FindAssignmentByVehicleAndShift", mock.Anything, vehicleID, shiftID).
		Return(&models.Assignment{VehicleID: vehicleID, ShiftID: shiftID, SwapCompleted: true}, nil)

	completed, err := env.service.IsSwapCompleted(context.Background(), vehicleID, shiftID)
	assert.NoError(t, err)
	assert.True(t, completed)
}

func TestIsSwapCompleted_NotAssigned(t *testing.T) {
	env := newTestEnv()
	vehicleID := primitive.NewObjectID()
	shiftID := primitive.NewObjectID()

	env.assignments.On("FindAssignmentByVehicleAndShift", mock.Anything, vehicleID, shiftID).
		Return(nil, mongo.ErrNoDocuments)

	_, err := env.service.IsSwapCompleted(context.Background(), vehicleID, shiftID)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestIsShiftCompleted_EmptyShift(t *testing.T) {
	env := newTestEnv()
	shiftID := primitive.NewObjectID()

	env.assignments.On("FindAssignmentsByShift", mock.Anything, shiftID).Return([]models.Assignment{}, nil)

	_, err := env.service.IsShiftCompleted(context.Background(), shiftID)
	assert.ErrorIs(t, err, ErrEmptyShift)
	env.shifts.AssertNotCalled(t, "MarkShiftCompleted", mock.Anything, mock.Anything)
}

func TestIsShiftCompleted_PartialThenComplete(t *testing.T) {
	env := newTestEnv()
	shift := activeShift()
	assignments := make([]models.Assignment, 4)
	for i := range assignments {
		assignments[i] = models.Assignment{
			ID:            primitive.NewObjectID(),
			VehicleID:     primitive.NewObjectID(),
			ShiftID:       shift.ID,
			SwapCompleted: i < 3, // three of four swapped
		}
	}

	env.assignments.On("FindAssignmentsByShift", mock.Anything, shift.ID).Return(assignments, nil).Once()
	env.shifts.On("FindShiftByID", mock.Anything, shift.ID).Return(shift, nil)

	completed, err := env.service.IsShiftCompleted(context.Background(), shift.ID)
	assert.NoError(t, err)
	assert.False(t, completed)
	env.shifts.AssertNotCalled(t, "MarkShiftCompleted", mock.Anything, mock.Anything)

	// swap the fourth vehicle and check again
	assignments[3].SwapCompleted = true
	env.assignments.On("FindAssignmentsByShift", mock.Anything, shift.ID).Return(assignments, nil).Once()
	env.shifts.On("MarkShiftCompleted", mock.Anything, shift.ID).Return(nil).Once()

	completed, err = env.service.IsShiftCompleted(context.Background(), shift.ID)
	assert.NoError(t, err)
	assert.True(t, completed)
	env.shifts.AssertCalled(t, "MarkShiftCompleted", mock.Anything, shift.ID)
}

func TestIsShiftCompleted_CachedFlagShortCircuits(t *testing.T) {
	// Once a shift is marked completed, the stored flag answers without
	// re-deriving from assignments, regardless of their state.
	env := newTestEnv()
	shift := activeShift()
	shift.Completed = true
	shift.Active = false

	env.assignments.On("FindAssignmentsByShift", mock.Anything, shift.ID).Return([]models.Assignment{
		{ID: primitive.NewObjectID(), ShiftID: shift.ID, SwapCompleted: false},
	}, nil)
	env.shifts.On("FindShiftByID", mock.Anything, shift.ID).Return(shift, nil)

	completed, err := env.service.IsShiftCompleted(context.Background(), shift.ID)
	assert.NoError(t, err)
	assert.True(t, completed)
	env.shifts.AssertNotCalled(t, "MarkShiftCompleted", mock.Anything, mock.Anything)
}

func TestAutoCreateShift(t *testing.T) {
	env := newTestEnv()
	shift := activeShift()
	vehicles := manhattanVehicles(4)

	nearest := make([]models.VehicleDistance, 0, len(vehicles))
	for i, v := range vehicles {
		nearest = append(nearest, models.VehicleDistance{
			Vehicle:       v,
			DistanceMiles: float64(i) * 0.7,
		})
	}

	loc := models.Location{Lat: 40.7484, Lon: -73.9857}
	env.vehicles.On("FindNearest", mock.Anything, loc, AutoShiftRadiusMiles, int64(AutoShiftMaxVehicles)).
		Return(nearest, nil)
	env.shifts.On("InsertShift", mock.Anything).Return(shift, nil)
	env.shifts.On("FindShiftByID", mock.Anything, shift.ID).Return(shift, nil)
	env.vehicles.On("FindVehiclesByIDs", mock.Anything, vehicleIDs(vehicles)).Return(vehicles, nil)
	for _, v := range vehicles {
		env.assignments.On("FindAssignmentByVehicle", mock.Anything, v.ID).Return(nil, mongo.ErrNoDocuments)
	}
	expected := expectedAssignments(vehicleIDs(vehicles), shift.ID)
	env.assignments.On("InsertAssignments", mock.Anything, expected).Return(expected, nil)

	candidates, created, err := env.service.AutoCreateShift(context.Background(), loc.Lat, loc.Lon)
	assert.NoError(t, err)
	assert.Equal(t, shift.ID, created.ID)
	assert.Len(t, candidates, 4)
	for i := 1; i < len(candidates); i++ {
		assert.LessOrEqual(t, candidates[i-1].DistanceMiles, candidates[i].DistanceMiles,
			"candidates should be ordered nearest first")
	}
	env.assignments.AssertExpectations(t)
}

func TestAutoCreateShift_NoVehiclesInRange(t *testing.T) {
	env := newTestEnv()
	shift := activeShift()
	loc := models.Location{Lat: 40.7484, Lon: -73.9857}

	env.vehicles.On("FindNearest", mock.Anything, loc, AutoShiftRadiusMiles, int64(AutoShiftMaxVehicles)).
		Return([]models.VehicleDistance{}, nil)
	env.shifts.On("InsertShift", mock.Anything).Return(shift, nil)
	env.shifts.On("FindShiftByID", mock.Anything, shift.ID).Return(shift, nil)
	env.vehicles.On("FindVehiclesByIDs", mock.Anything, mock.Anything).Return(nil, nil)
	env.assignments.On("InsertAssignments", mock.Anything, mock.Anything).Return(nil, nil)

	candidates, created, err := env.service.AutoCreateShift(context.Background(), loc.Lat, loc.Lon)
	assert.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, shift.ID, created.ID)
}
