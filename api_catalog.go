package main

import (
	"net/http"
	"strconv"

	"github.com/AndyMelnik/sensoriqua/apperr"
	"github.com/AndyMelnik/sensoriqua/warehouse"
)

func handleGroupings(w http.ResponseWriter, r *http.Request) {
	conn, _, err := sessionWarehouse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	typ := r.URL.Query().Get("type")
	if typ == "" {
		typ = "groups"
	}
	groupings, err := conn.Groupings(r.Context(), typ, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"groupings": groupings})
}

func handleObjects(w http.ResponseWriter, r *http.Request) {
	conn, _, err := sessionWarehouse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var filter warehouse.ObjectFilter
	if err := decodeJSON(r, &filter); err != nil {
		writeError(w, r, err)
		return
	}
	objects, err := conn.Objects(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"objects": objects})
}

func handleObjectSensors(w http.ResponseWriter, r *http.Request) {
	conn, _, err := sessionWarehouse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	objectID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, apperr.New(apperr.InvalidInput, "object id must be an integer"))
		return
	}
	sensors, err := conn.SensorsForObject(r.Context(), objectID, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sensors": sensors})
}
