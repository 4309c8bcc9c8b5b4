package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/bardiab/shift-manager/internal/auth"
	"github.com/bardiab/shift-manager/internal/db"
	"github.com/bardiab/shift-manager/internal/handlers"
	"github.com/bardiab/shift-manager/internal/ingest"
	"github.com/bardiab/shift-manager/internal/middleware"
	"github.com/bardiab/shift-manager/internal/shifts"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment")
	}

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	database := client.Database(db.DatabaseName())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.EnsureIndexes(ctx, database); err != nil {
		log.WithError(err).Fatal("Failed to create indexes")
	}

	vehicles := &db.MongoVehicleCollection{Collection: database.Collection("vehicles")}
	shiftCollection := &db.MongoShiftCollection{Collection: database.Collection("shifts")}
	assignments := &db.MongoAssignmentCollection{Collection: database.Collection("assignments")}
	users := &db.MongoUserCollection{Collection: database.Collection("users")}

	service := shifts.NewService(vehicles, shiftCollection, assignments)

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}

	authHandler := handlers.NewAuthHandler(authService, users)
	shiftHandler := handlers.NewShiftHandler(service)
	vehicleHandler := handlers.NewVehicleHandler(service, vehicles)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("GET /api/auth/profile", authHandler.GetProfile)

	mux.HandleFunc("POST /api/shifts", shiftHandler.CreateShift)
	mux.HandleFunc("POST /api/shifts/auto", shiftHandler.AutoCreateShift)
	mux.HandleFunc("GET /api/shifts/{id}", shiftHandler.GetShift)
	mux.HandleFunc("POST /api/shifts/{id}/vehicles", shiftHandler.AddVehicles)
	mux.HandleFunc("GET /api/shifts/{id}/vehicles", shiftHandler.GetVehicles)
	mux.HandleFunc("GET /api/shifts/{id}/completed", shiftHandler.IsCompleted)
	mux.HandleFunc("GET /api/shifts/{id}/vehicles/{vehicleID}/swap", shiftHandler.IsSwapCompleted)

	mux.HandleFunc("POST /api/vehicles", vehicleHandler.CreateVehicle)
	mux.HandleFunc("GET /api/vehicles", vehicleHandler.ListVehicles)
	mux.HandleFunc("GET /api/vehicles/{id}", vehicleHandler.GetVehicle)
	mux.HandleFunc("POST /api/vehicles/{id}/swap", vehicleHandler.SwapBattery)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimiter := middleware.NewRateLimitMiddleware()
	handler := rateLimiter.RateLimit(300, 60)(authMiddleware.Authenticate(mux))

	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		clientID := os.Getenv("MQTT_CLIENT_ID")
		if clientID == "" {
			clientID = "shift-manager"
		}
		ingester, err := ingest.Start(broker, clientID, service)
		if err != nil {
			log.WithError(err).Fatal("Failed to start swap ingester")
		}
		defer ingester.Close()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("HTTP server listening")
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
