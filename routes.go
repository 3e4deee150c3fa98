package main

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

func setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health and version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// Session establishment and diagnostics
	mux.HandleFunc("POST /api/auth/login", handleLogin)
	mux.HandleFunc("GET /api/config", handleConfig)

	// Business catalog
	mux.HandleFunc("GET /api/groupings", handleGroupings)
	mux.HandleFunc("POST /api/objects", handleObjects)
	mux.HandleFunc("GET /api/objects/{id}/sensors", handleObjectSensors)

	// Dashboard configuration
	mux.HandleFunc("GET /api/configured-sensors", handleListSensors)
	mux.HandleFunc("POST /api/configured-sensors", handleCreateSensor)
	mux.HandleFunc("PATCH /api/configured-sensors/{id}", handleUpdateSensor)
	mux.HandleFunc("DELETE /api/configured-sensors/{id}", handleDeleteSensor)
	mux.HandleFunc("GET /api/dashboard-planes", handleListPlanes)
	mux.HandleFunc("POST /api/dashboard-planes", handleAddPlane)
	mux.HandleFunc("PATCH /api/dashboard-planes/order", handleReorderPlanes)
	mux.HandleFunc("DELETE /api/dashboard-planes/{id}", handleRemovePlane)

	// Telemetry series
	mux.HandleFunc("POST /api/sparklines", handleSparklines)
	mux.HandleFunc("POST /api/sensor-history", handleSensorHistory)
	mux.HandleFunc("POST /api/latest-values", handleLatestValues)
	mux.HandleFunc("GET /api/live", handleLive)

	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	})
}
