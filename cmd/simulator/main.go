package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Vehicle mirrors the API's vehicle representation.
type Vehicle struct {
	ID              string   `json:"id"`
	LicensePlate    string   `json:"license_plate"`
	Model           string   `json:"model"`
	BatteryLevel    float64  `json:"battery_level"`
	InUse           bool     `json:"in_use"`
	CurrentLocation Location `json:"current_location"`
}

// Shift mirrors the API's shift representation.
type Shift struct {
	ID        string `json:"id"`
	Active    bool   `json:"active"`
	Completed bool   `json:"completed"`
}

// AutoShiftResponse is the body returned by POST /api/shifts/auto.
type AutoShiftResponse struct {
	Shift    Shift `json:"shift"`
	Vehicles []struct {
		Vehicle       Vehicle `json:"vehicle"`
		DistanceMiles float64 `json:"distance_miles"`
	} `json:"vehicles"`
}

var evModels = []string{"Model 3", "Leaf", "Bolt", "Mach-E", "e-tron", "Zoe"}

// Depot defaults to midtown Manhattan.
var depot = Location{Lat: 40.7484, Lon: -73.9857}

func jitterLocation(base Location, meters float64) Location {
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (rand.Float64()*2 - 1) * (meters / lonMetersPerDeg)
	return Location{Lat: base.Lat + dLat, Lon: base.Lon + dLon}
}

func haversineKm(a, b Location) float64 {
	R := 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return R * c
}

var authToken string

func authorizedRequest(method, url string, body *bytes.Buffer) (*http.Response, error) {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func createVehicle(apiURL string, n int) (*Vehicle, error) {
	vehicle := Vehicle{
		LicensePlate:    fmt.Sprintf("SIM-%d-%04d", time.Now().Unix()%100000, n),
		Model:           evModels[rand.Intn(len(evModels))],
		BatteryLevel:    10 + rand.Float64()*40, // arrive low on charge
		CurrentLocation: jitterLocation(depot, 3000),
	}

	data, err := json.Marshal(vehicle)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vehicle: %w", err)
	}

	resp, err := authorizedRequest(http.MethodPost, apiURL+"/vehicles", bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("vehicle creation failed with status: %d", resp.StatusCode)
	}

	var created Vehicle
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	log.WithFields(log.Fields{
		"vehicle_id":    created.ID,
		"license_plate": created.LicensePlate,
		"battery":       created.BatteryLevel,
		"depot_km":      fmt.Sprintf("%.2f", haversineKm(depot, created.CurrentLocation)),
	}).Info("Created vehicle")

	return &created, nil
}

func autoCreateShift(apiURL string) (*AutoShiftResponse, error) {
	body := map[string]float64{"lat": depot.Lat, "lon": depot.Lon}
	data, _ := json.Marshal(body)

	resp, err := authorizedRequest(http.MethodPost, apiURL+"/shifts/auto", bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to auto-create shift: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("shift creation failed with status: %d", resp.StatusCode)
	}

	var result AutoShiftResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func reportSwapHTTP(apiURL, vehicleID string) error {
	resp, err := authorizedRequest(http.MethodPost, apiURL+"/vehicles/"+vehicleID+"/swap", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("swap report failed with status: %d", resp.StatusCode)
	}
	return nil
}

func reportSwapMQTT(client mqtt.Client, vehicleID string) error {
	token := client.Publish("fleet/swaps/"+vehicleID, 1, false, []byte("swapped"))
	token.Wait()
	return token.Error()
}

func isShiftCompleted(apiURL, shiftID string) (bool, error) {
	resp, err := authorizedRequest(http.MethodGet, apiURL+"/shifts/"+shiftID+"/completed", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("completion check failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Completed bool `json:"completed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.Completed, nil
}

func main() {
	// Optional JWT for protected API
	authToken = os.Getenv("SIM_AUTH_TOKEN")

	fleetSize := 10
	if val := os.Getenv("FLEET_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			fleetSize = n
		}
	}

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	if v := os.Getenv("DEPOT_LAT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			depot.Lat = f
		}
	}
	if v := os.Getenv("DEPOT_LON"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			depot.Lon = f
		}
	}

	interval := 2 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	var mqttClient mqtt.Client
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID("depot-simulator")
		mqttClient = mqtt.NewClient(opts)
		if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
			log.WithError(token.Error()).Fatal("Failed to connect to MQTT broker")
		}
		defer mqttClient.Disconnect(250)
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    apiURL,
		"depot":      fmt.Sprintf("%.4f,%.4f", depot.Lat, depot.Lon),
		"mqtt":       mqttClient != nil,
	}).Info("Starting depot simulation")

	created := 0
	for i := 0; i < fleetSize; i++ {
		if _, err := createVehicle(apiURL, i+1); err != nil {
			log.WithError(err).Error("Failed to create vehicle")
			continue
		}
		created++
	}
	log.WithField("created_vehicles", created).Info("Vehicle creation completed")
	if created == 0 {
		log.Error("No vehicles created. Ensure SIM_AUTH_TOKEN is valid and API is reachable. Exiting.")
		return
	}

	shift, err := autoCreateShift(apiURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to create shift")
	}
	log.WithFields(log.Fields{
		"shift_id":   shift.Shift.ID,
		"candidates": len(shift.Vehicles),
	}).Info("Shift created from depot location")

	// Work through the shift nearest-first, the order the geo query returned.
	for _, candidate := range shift.Vehicles {
		time.Sleep(interval)

		var err error
		if mqttClient != nil {
			err = reportSwapMQTT(mqttClient, candidate.Vehicle.ID)
		} else {
			err = reportSwapHTTP(apiURL, candidate.Vehicle.ID)
		}
		if err != nil {
			log.WithError(err).WithField("vehicle_id", candidate.Vehicle.ID).Error("Failed to report swap")
			continue
		}
		log.WithFields(log.Fields{
			"vehicle_id": candidate.Vehicle.ID,
			"distance":   fmt.Sprintf("%.2fmi", candidate.DistanceMiles),
		}).Info("Reported battery swap")
	}

	// The MQTT path is asynchronous, so poll until the engine agrees.
	for attempt := 0; attempt < 30; attempt++ {
		completed, err := isShiftCompleted(apiURL, shift.Shift.ID)
		if err != nil {
			log.WithError(err).Error("Failed to check shift completion")
		} else if completed {
			log.WithField("shift_id", shift.Shift.ID).Info("Shift completed")
			return
		}
		time.Sleep(interval)
	}
	log.WithField("shift_id", shift.Shift.ID).Warn("Shift did not complete in time")
}
