package shifts

import (
	"context"
	"errors"
	"fmt"

	"github.com/bardiab/shift-manager/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// SwapBattery records a battery swap for a vehicle: the battery level is
// reset to full and the vehicle's assignment is marked swap-completed.
// Swapping a battery means replacing it from an effectively infinite supply
// of batteries charged to 100%. Returns the updated vehicle.
func (s *Service) SwapBattery(ctx context.Context, vehicleID primitive.ObjectID) (*models.Vehicle, error) {
	vehicle, err := s.vehicles.ResetBattery(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrVehicleNotFound
		}
		return nil, fmt.Errorf("failed to reset battery: %w", err)
	}

	assignment, err := s.assignments.FindAssignmentByVehicle(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	if err := s.assignments.MarkSwapCompleted(ctx, assignment.ID); err != nil {
		return nil, fmt.Errorf("failed to mark swap completed: %w", err)
	}

	return vehicle, nil
}

// IsSwapCompleted reports whether the vehicle's swap has been recorded for
// the given shift.
func (s *Service) IsSwapCompleted(ctx context.Context, vehicleID, shiftID primitive.ObjectID) (bool, error) {
	assignment, err := s.assignments.FindAssignmentByVehicleAndShift(ctx, vehicleID, shiftID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, ErrAssignmentNotFound
		}
		return false, err
	}
	return assignment.SwapCompleted, nil
}

// IsShiftCompleted reports whether every vehicle in the shift has had its
// swap recorded. The first time that holds, the shift itself is marked
// completed as a side effect, and later calls short-circuit on the stored
// flag without re-scanning assignments. A shift with no assignments fails
// with ErrEmptyShift.
func (s *Service) IsShiftCompleted(ctx context.Context, shiftID primitive.ObjectID) (bool, error) {
	assignments, err := s.assignments.FindAssignmentsByShift(ctx, shiftID)
	if err != nil {
		return false, err
	}
	if len(assignments) == 0 {
		return false, ErrEmptyShift
	}

	shift, err := s.GetShift(ctx, shiftID)
	if err != nil {
		return false, err
	}
	if shift.Completed {
		return true, nil
	}

	for _, a := range assignments {
		if !a.SwapCompleted {
			return false, nil
		}
	}
	if err := s.shifts.MarkShiftCompleted(ctx, shiftID); err != nil {
		return false, fmt.Errorf("failed to mark shift completed: %w", err)
	}
	return true, nil
}
