package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/AndyMelnik/sensoriqua/apperr"
	"github.com/AndyMelnik/sensoriqua/appstate"
	"github.com/AndyMelnik/sensoriqua/auth"
	"github.com/AndyMelnik/sensoriqua/warehouse"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		serverLogger.Warn("Failed to encode response", "error", err)
	}
}

// writeError maps an error to its HTTP status and a safe client message.
// The underlying cause is logged server-side only, so connection strings and
// driver details never reach the wire.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= 500 {
		serverLogger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		serverLogger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"detail": apperr.Message(err)})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.InvalidInput, "invalid JSON request body", err)
	}
	return nil
}

// requireSession resolves the caller's session. In strict mode a valid bearer
// token is mandatory and there is no fallback, so tenants stay isolated. In
// standalone mode the warehouse DSN comes from the X-Sensoriqua-DSN header or
// the configured default, and the tenant from the user_id query parameter.
func requireSession(r *http.Request) (*auth.Session, error) {
	session, err := sessionResolver.Resolve(r)
	if err == nil {
		return session, nil
	}
	if sessionResolver.Codec().Strict() {
		return nil, err
	}

	dsn := strings.TrimSpace(r.Header.Get("X-Sensoriqua-DSN"))
	if dsn == "" {
		dsn = serverConfig.Storage.DefaultWarehouseDSN
	}
	tenantID := serverConfig.Auth.DefaultTenantID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apperr.New(apperr.InvalidInput, "user_id must be an integer")
		}
		tenantID = id
	}
	return &auth.Session{
		UserID:   "standalone",
		TenantID: tenantID,
		Credentials: auth.Credentials{
			WarehouseDSN: dsn,
		},
	}, nil
}

func sessionState(r *http.Request) (*appstate.Store, *auth.Session, error) {
	session, err := requireSession(r)
	if err != nil {
		return nil, nil, err
	}
	store, err := stateStores.ForSession(r.Context(), session.AppStateDSN)
	if err != nil {
		return nil, nil, err
	}
	return store, session, nil
}

func sessionWarehouse(r *http.Request) (*warehouse.Conn, *auth.Session, error) {
	session, err := requireSession(r)
	if err != nil {
		return nil, nil, err
	}
	conn, err := warehouses.ForDSN(r.Context(), session.WarehouseDSN)
	if err != nil {
		return nil, nil, err
	}
	return conn, session, nil
}
