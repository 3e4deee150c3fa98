package main

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/AndyMelnik/sensoriqua/apperr"
	"github.com/AndyMelnik/sensoriqua/appstate"
	"github.com/AndyMelnik/sensoriqua/auth"
)

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.InvalidInput, "id must be an integer")
	}
	return id, nil
}

func handleListSensors(w http.ResponseWriter, r *http.Request) {
	store, session, err := sessionState(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sensors, err := store.ListSensors(r.Context(), session.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	objectIDs := make([]int64, 0, len(sensors))
	for _, s := range sensors {
		objectIDs = append(objectIDs, s.ObjectID)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sensors":       sensors,
		"object_labels": objectLabels(r, session, objectIDs),
	})
}

// objectLabels resolves object ids to labels from the session warehouse.
// Lookup failures degrade to an unannotated listing.
func objectLabels(r *http.Request, session *auth.Session, objectIDs []int64) map[string]string {
	if session.WarehouseDSN == "" {
		return nil
	}
	seen := make(map[int64]bool)
	ids := make([]int64, 0, len(objectIDs))
	for _, id := range objectIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	conn, err := warehouses.ForDSN(r.Context(), session.WarehouseDSN)
	if err != nil {
		serverLogger.Debug("Label lookup skipped, warehouse unavailable", "error", err)
		return nil
	}
	labels, err := conn.ObjectLabels(r.Context(), ids)
	if err != nil {
		serverLogger.Debug("Label lookup failed", "error", err)
		return nil
	}
	out := make(map[string]string, len(labels))
	for id, label := range labels {
		out[strconv.FormatInt(id, 10)] = label
	}
	return out
}

func handleCreateSensor(w http.ResponseWriter, r *http.Request) {
	store, session, err := sessionState(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in appstate.SensorInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sensor, err := store.CreateSensor(r.Context(), session.TenantID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sensor)
}

func handleUpdateSensor(w http.ResponseWriter, r *http.Request) {
	store, session, err := sessionState(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch appstate.SensorPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	sensor, err := store.UpdateSensor(r.Context(), session.TenantID, id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sensor)
}

func handleDeleteSensor(w http.ResponseWriter, r *http.Request) {
	store, session, err := sessionState(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := store.DeleteSensor(r.Context(), session.TenantID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func handleListPlanes(w http.ResponseWriter, r *http.Request) {
	store, session, err := sessionState(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	planes, err := store.ListPlanes(r.Context(), session.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	objectIDs := make([]int64, 0, len(planes))
	for _, p := range planes {
		if p.Sensor != nil {
			objectIDs = append(objectIDs, p.Sensor.ObjectID)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"planes":        planes,
		"object_labels": objectLabels(r, session, objectIDs),
	})
}

func handleAddPlane(w http.ResponseWriter, r *http.Request) {
	store, session, err := sessionState(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		ConfiguredSensorID int64 `json:"configured_sensor_id"`
		PositionIndex      *int  `json:"position_index"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	plane, err := store.AddPlane(r.Context(), session.TenantID, req.ConfiguredSensorID, req.PositionIndex)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plane)
}

func handleRemovePlane(w http.ResponseWriter, r *http.Request) {
	store, session, err := sessionState(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := store.RemovePlane(r.Context(), session.TenantID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type planeOrderEntry struct {
	DashboardPlaneID int64 `json:"dashboard_plane_id"`
	PositionIndex    int   `json:"position_index"`
}

func handleReorderPlanes(w http.ResponseWriter, r *http.Request) {
	store, session, err := sessionState(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Order []planeOrderEntry `json:"order"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sort.SliceStable(req.Order, func(i, j int) bool {
		return req.Order[i].PositionIndex < req.Order[j].PositionIndex
	})
	ids := make([]int64, 0, len(req.Order))
	for _, entry := range req.Order {
		ids = append(ids, entry.DashboardPlaneID)
	}
	if err := store.ReorderPlanes(r.Context(), session.TenantID, ids); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
