package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/bardiab/shift-manager/internal/models"
	"github.com/bardiab/shift-manager/internal/shifts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SwapTopic is the subscription filter for depot swap reports. Depot
// stations publish an empty (or ignored) payload to fleet/swaps/<vehicleID>
// when they finish a battery swap.
const SwapTopic = "fleet/swaps/+"

const swapTimeout = 10 * time.Second

// swapService is the part of the shift service the ingester needs.
type swapService interface {
	SwapBattery(ctx context.Context, vehicleID primitive.ObjectID) (*models.Vehicle, error)
}

// SwapIngester subscribes to depot swap reports over MQTT and records them
// through the shift service.
type SwapIngester struct {
	service swapService
	client  mqtt.Client
}

// Start connects to the broker and subscribes to the swap report topic.
func Start(brokerURL, clientID string, service swapService) (*SwapIngester, error) {
	ingester := &SwapIngester{service: service}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(swapTimeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect failed: %w", token.Error())
	}
	if token := client.Subscribe(SwapTopic, 1, ingester.handleSwap); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("mqtt subscribe failed: %w", token.Error())
	}

	ingester.client = client
	log.WithFields(log.Fields{"broker": brokerURL, "topic": SwapTopic}).Info("Swap ingester started")
	return ingester, nil
}

// Close disconnects from the broker.
func (i *SwapIngester) Close() {
	if i.client != nil {
		i.client.Disconnect(250)
	}
}

// handleSwap records a single swap report.
func (i *SwapIngester) handleSwap(_ mqtt.Client, msg mqtt.Message) {
	vehicleID, err := vehicleIDFromTopic(msg.Topic())
	if err != nil {
		log.WithError(err).WithField("topic", msg.Topic()).Warn("Ignoring malformed swap report")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), swapTimeout)
	defer cancel()

	vehicle, err := i.service.SwapBattery(ctx, vehicleID)
	if err != nil {
		entry := log.WithError(err).WithField("vehicle_id", vehicleID.Hex())
		if errors.Is(err, shifts.ErrVehicleNotFound) || errors.Is(err, shifts.ErrAssignmentNotFound) {
			entry.Warn("Swap report for unknown or unassigned vehicle")
		} else {
			entry.Error("Failed to record swap report")
		}
		return
	}

	log.WithFields(log.Fields{
		"vehicle_id":    vehicle.ID.Hex(),
		"license_plate": vehicle.LicensePlate,
	}).Info("Recorded swap report")
}

// vehicleIDFromTopic extracts the vehicle ID from a swap report topic,
// e.g. fleet/swaps/507f1f77bcf86cd799439011.
func vehicleIDFromTopic(topic string) (primitive.ObjectID, error) {
	parts := strings.Split(topic, "/")
	hex := parts[len(parts)-1]
	if hex == "" {
		return primitive.NilObjectID, fmt.Errorf("no vehicle ID in topic %q", topic)
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid vehicle ID in topic %q: %w", topic, err)
	}
	return id, nil
}
