package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/bardiab/shift-manager/internal/models"
	"github.com/bardiab/shift-manager/internal/shifts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ShiftHandler handles shift lifecycle and membership requests
type ShiftHandler struct {
	service *shifts.Service
}

// NewShiftHandler creates a new shift handler
func NewShiftHandler(service *shifts.Service) *ShiftHandler {
	return &ShiftHandler{service: service}
}

// CreateShift handles POST /api/shifts
func (h *ShiftHandler) CreateShift(w http.ResponseWriter, r *http.Request) {
	shift, err := h.service.CreateShift(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to create shift")
		http.Error(w, "Failed to create shift", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(shift)
}

// AutoCreateShift handles POST /api/shifts/auto. It creates a shift from the
// closest available vehicles around the given point and returns both the new
// shift and the geo candidates with their distances.
func (h *ShiftHandler) AutoCreateShift(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req models.AutoShiftRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
		http.Error(w, "Invalid coordinates", http.StatusBadRequest)
		return
	}

	vehicles, shift, err := h.service.AutoCreateShift(r.Context(), req.Lat, req.Lon)
	if err != nil {
		log.WithError(err).Error("Failed to auto-create shift")
		http.Error(w, "Failed to auto-create shift", http.StatusInternalServerError)
		return
	}

	log.WithFields(log.Fields{
		"shift_id":   shift.ID.Hex(),
		"candidates": len(vehicles),
	}).Info("Auto-created shift")

	response := struct {
		Shift    *models.Shift            `json:"shift"`
		Vehicles []models.VehicleDistance `json:"vehicles"`
	}{Shift: shift, Vehicles: vehicles}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// GetShift handles GET /api/shifts/{id}
func (h *ShiftHandler) GetShift(w http.ResponseWriter, r *http.Request) {
	shiftID, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	shift, err := h.service.GetShift(r.Context(), shiftID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(shift)
}

// AddVehicles handles POST /api/shifts/{id}/vehicles. Vehicle IDs that do
// not resolve to a known, unassigned vehicle are skipped, not rejected; the
// response carries only the assignments actually created.
func (h *ShiftHandler) AddVehicles(w http.ResponseWriter, r *http.Request) {
	shiftID, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req models.AddVehiclesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	vehicleIDs := make([]primitive.ObjectID, 0, len(req.VehicleIDs))
	for _, hex := range req.VehicleIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			// malformed IDs cannot match a vehicle; filter like unknown ones
			continue
		}
		vehicleIDs = append(vehicleIDs, id)
	}

	assignments, err := h.service.AddVehiclesToShift(r.Context(), vehicleIDs, shiftID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if assignments == nil {
		assignments = []models.Assignment{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(assignments)
}

// GetVehicles handles GET /api/shifts/{id}/vehicles
func (h *ShiftHandler) GetVehicles(w http.ResponseWriter, r *http.Request) {
	shiftID, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	vehicles, err := h.service.GetVehiclesInShift(r.Context(), shiftID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(vehicles)
}

// IsCompleted handles GET /api/shifts/{id}/completed
func (h *ShiftHandler) IsCompleted(w http.ResponseWriter, r *http.Request) {
	shiftID, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	completed, err := h.service.IsShiftCompleted(r.Context(), shiftID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"completed": completed})
}

// IsSwapCompleted handles GET /api/shifts/{id}/vehicles/{vehicleID}/swap
func (h *ShiftHandler) IsSwapCompleted(w http.ResponseWriter, r *http.Request) {
	shiftID, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}
	vehicleID, ok := pathObjectID(w, r, "vehicleID")
	if !ok {
		return
	}

	completed, err := h.service.IsSwapCompleted(r.Context(), vehicleID, shiftID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"swap_completed": completed})
}

// pathObjectID parses an ObjectID path parameter, writing a 400 on failure.
func pathObjectID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(r.PathValue(name))
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return primitive.NilObjectID, false
	}
	return id, true
}

// writeServiceError maps shift service errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shifts.ErrShiftNotFound),
		errors.Is(err, shifts.ErrVehicleNotFound),
		errors.Is(err, shifts.ErrAssignmentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, shifts.ErrEmptyShift):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.WithError(err).Error("Shift operation failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
