package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/bardiab/shift-manager/internal/db"
	"github.com/bardiab/shift-manager/internal/models"
	"github.com/bardiab/shift-manager/internal/shifts"
)

// VehicleHandler handles vehicle onboarding, reads, and battery swaps
type VehicleHandler struct {
	service  *shifts.Service
	vehicles db.VehicleCollection
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(service *shifts.Service, vehicles db.VehicleCollection) *VehicleHandler {
	return &VehicleHandler{service: service, vehicles: vehicles}
}

// CreateVehicle handles POST /api/vehicles (fleet onboarding)
func (h *VehicleHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var vehicle models.Vehicle
	if err := json.Unmarshal(body, &vehicle); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if vehicle.LicensePlate == "" {
		http.Error(w, "License plate is required", http.StatusBadRequest)
		return
	}
	if vehicle.BatteryLevel < 0 || vehicle.BatteryLevel > models.FullBatteryLevel {
		http.Error(w, "Battery level must be between 0 and 100", http.StatusBadRequest)
		return
	}

	created, err := h.vehicles.InsertVehicle(r.Context(), vehicle)
	if err != nil {
		log.WithError(err).Error("Failed to create vehicle")
		http.Error(w, "Failed to create vehicle", http.StatusInternalServerError)
		return
	}

	log.WithFields(log.Fields{
		"vehicle_id":    created.ID.Hex(),
		"license_plate": created.LicensePlate,
	}).Info("Onboarded vehicle")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// ListVehicles handles GET /api/vehicles
func (h *VehicleHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.service.ListVehicles(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list vehicles")
		http.Error(w, "Failed to list vehicles", http.StatusInternalServerError)
		return
	}
	if vehicles == nil {
		vehicles = []models.Vehicle{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(vehicles)
}

// GetVehicle handles GET /api/vehicles/{id}
func (h *VehicleHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	vehicle, err := h.service.GetVehicle(r.Context(), vehicleID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(vehicle)
}

// SwapBattery handles POST /api/vehicles/{id}/swap. The vehicle's battery is
// reset to full and its assignment is marked swap-completed.
func (h *VehicleHandler) SwapBattery(w http.ResponseWriter, r *http.Request) {
	vehicleID, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	vehicle, err := h.service.SwapBattery(r.Context(), vehicleID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	log.WithField("vehicle_id", vehicle.ID.Hex()).Info("Recorded battery swap")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(vehicle)
}
