package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bardiab/shift-manager/internal/models"
)

func TestVehicleHandler_CreateVehicle(t *testing.T) {
	env := newHandlerEnv()
	handler := NewVehicleHandler(env.service, env.vehicles)

	input := models.Vehicle{
		LicensePlate: "EV-1234",
		Model:        "Nissan Leaf",
		BatteryLevel: 42.5,
		CurrentLocation: models.Location{
			Lat: 40.7484,
			Lon: -73.9857,
		},
	}
	created := input
	created.ID = primitive.NewObjectID()
	env.vehicles.On("InsertVehicle", mock.Anything, input).Return(&created, nil)

	body, _ := json.Marshal(input)
	req := httptest.NewRequest(http.MethodPost, "/api/vehicles", bytes.NewBuffer(body))
	w := httptest.NewRecorder()
	handler.CreateVehicle(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var got models.Vehicle
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "EV-1234", got.LicensePlate)
}

func TestVehicleHandler_CreateVehicle_Validation(t *testing.T) {
	env := newHandlerEnv()
	handler := NewVehicleHandler(env.service, env.vehicles)

	t.Run("missing license plate", func(t *testing.T) {
		body, _ := json.Marshal(models.Vehicle{BatteryLevel: 50})
		req := httptest.NewRequest(http.MethodPost, "/api/vehicles", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		handler.CreateVehicle(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("battery out of range", func(t *testing.T) {
		body, _ := json.Marshal(models.Vehicle{LicensePlate: "EV-1", BatteryLevel: 150})
		req := httptest.NewRequest(http.MethodPost, "/api/vehicles", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		handler.CreateVehicle(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestVehicleHandler_GetVehicle_NotFound(t *testing.T) {
	env := newHandlerEnv()
	handler := NewVehicleHandler(env.service, env.vehicles)

	vehicleID := primitive.NewObjectID()
	env.vehicles.On("FindVehicleByID", mock.Anything, vehicleID).Return(nil, mongo.ErrNoDocuments)

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles/"+vehicleID.Hex(), nil)
	req.SetPathValue("id", vehicleID.Hex())
	w := httptest.NewRecorder()
	handler.GetVehicle(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVehicleHandler_SwapBattery(t *testing.T) {
	env := newHandlerEnv()
	handler := NewVehicleHandler(env.service, env.vehicles)

	vehicle := &models.Vehicle{ID: primitive.NewObjectID(), LicensePlate: "EV-9", BatteryLevel: models.FullBatteryLevel}
	assignment := &models.Assignment{ID: primitive.NewObjectID(), VehicleID: vehicle.ID, ShiftID: primitive.NewObjectID()}

	env.vehicles.On("ResetBattery", mock.Anything, vehicle.ID).Return(vehicle, nil)
	env.assignments.On("FindAssignmentByVehicle", mock.Anything, vehicle.ID).Return(assignment, nil)
	env.assignments.On("MarkSwapCompleted", mock.Anything, assignment.ID).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/vehicles/"+vehicle.ID.Hex()+"/swap", nil)
	req.SetPathValue("id", vehicle.ID.Hex())
	w := httptest.NewRecorder()
	handler.SwapBattery(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var got models.Vehicle
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, models.FullBatteryLevel, got.BatteryLevel)
}

func TestVehicleHandler_SwapBattery_NotAssigned(t *testing.T) {
	env := newHandlerEnv()
	handler := NewVehicleHandler(env.service, env.vehicles)

	vehicle := &models.Vehicle{ID: primitive.NewObjectID(), BatteryLevel: models.FullBatteryLevel}
	env.vehicles.On("ResetBattery", mock.Anything, vehicle.ID).Return(vehicle, nil)
	env.assignments.On("FindAssignmentByVehicle", mock.Anything, vehicle.ID).Return(nil, mongo.ErrNoDocuments)

	req := httptest.NewRequest(http.MethodPost, "/api/vehicles/"+vehicle.ID.Hex()+"/swap", nil)
	req.SetPathValue("id", vehicle.ID.Hex())
	w := httptest.NewRecorder()
	handler.SwapBattery(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
