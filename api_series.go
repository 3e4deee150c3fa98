package main

import (
	"net/http"

	"github.com/AndyMelnik/sensoriqua/warehouse"
)

type pairsRequest struct {
	Pairs []warehouse.Pair `json:"pairs"`
}

func handleSparklines(w http.ResponseWriter, r *http.Request) {
	conn, _, err := sessionWarehouse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req pairsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	series, err := conn.BatchRecent(r.Context(), req.Pairs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"series": series})
}

func handleSensorHistory(w http.ResponseWriter, r *http.Request) {
	conn, _, err := sessionWarehouse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		DeviceID int64  `json:"device_id"`
		Label    string `json:"sensor_input_label"`
		Source   string `json:"sensor_source"`
		Hours    int    `json:"hours"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	points, err := conn.History(r.Context(), req.DeviceID, req.Label, req.Source, req.Hours)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"series": points})
}

func handleLatestValues(w http.ResponseWriter, r *http.Request) {
	conn, _, err := sessionWarehouse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req pairsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	values, err := conn.BatchLatest(r.Context(), req.Pairs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"values": values})
}
