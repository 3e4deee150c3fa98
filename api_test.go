package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AndyMelnik/sensoriqua/appstate"
	"github.com/AndyMelnik/sensoriqua/auth"
	"github.com/AndyMelnik/sensoriqua/logger"
	"github.com/AndyMelnik/sensoriqua/warehouse"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// setupTestServer wires the package globals against a throwaway sqlite state
// store and returns a running test server plus a bearer token for one tenant.
func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	serverLogger = logger.New(logger.ERROR, "", 100)
	t.Cleanup(func() { serverLogger.Close() })

	serverConfig = DefaultConfig()
	serverConfig.Auth.JWTSecret = testSecret

	codec := auth.NewCodec(testSecret)
	sessionResolver = auth.NewResolver(codec, auth.NewRegistry())

	stateStores = appstate.NewManager(filepath.Join(t.TempDir(), "state.db"))
	t.Cleanup(stateStores.Close)
	warehouses = warehouse.NewManager()
	t.Cleanup(warehouses.Close)

	// No warehouse DSN on the shared test session: state endpoints must
	// work without one and label enrichment silently skips.
	session := sessionResolver.Registry().Register(auth.Credentials{
		Email: "ops@example.com",
	})
	token, err := codec.Issue(session.UserID, session.Email, "admin")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	srv := httptest.NewServer(setupRoutes())
	t.Cleanup(srv.Close)
	return srv, token
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]interface{}
	decodeBody(t, resp, &body)
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp, err := http.Get(srv.URL + "/api/version")
	if err != nil {
		t.Fatalf("GET /api/version: %v", err)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["version"] == "" {
		t.Error("version field missing")
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	srv, _ := setupTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{"GET", "/api/configured-sensors"},
		{"GET", "/api/dashboard-planes"},
		{"GET", "/api/config"},
		{"POST", "/api/sparklines"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			resp := doJSON(t, p.method, srv.URL+p.path, "", nil)
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp := doJSON(t, "GET", srv.URL+"/api/configured-sensors", "not-a-jwt", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLoginRequiresStrictMode(t *testing.T) {
	srv, _ := setupTestServer(t)

	// Swap in a codec without an operator secret; login must refuse rather
	// than hand out tokens that die with the process.
	sessionResolver = auth.NewResolver(auth.NewCodec(""), sessionResolver.Registry())

	resp := doJSON(t, "POST", srv.URL+"/api/auth/login", "", map[string]string{
		"email":    "ops@example.com",
		"iotDbUrl": "postgres://u:p@db.example.com:5432/iot",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", resp.StatusCode)
	}
}

func TestLoginFlow(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/auth/login", "", map[string]string{
		"email":    "fleet@example.com",
		"iotDbUrl": "postgres://u:p@db.example.com:5432/iot",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var body loginResponse
	decodeBody(t, resp, &body)
	if !body.Success || body.Token == "" {
		t.Fatalf("login response = %+v", body)
	}
	if body.User.Email != "fleet@example.com" || body.User.Role != "admin" {
		t.Errorf("user = %+v", body.User)
	}

	// The issued token must work on the config endpoint and must not echo
	// the warehouse password back.
	cfgResp := doJSON(t, "GET", srv.URL+"/api/config", body.Token, nil)
	if cfgResp.StatusCode != http.StatusOK {
		t.Fatalf("config status = %d, want 200", cfgResp.StatusCode)
	}
	var cfg map[string]interface{}
	decodeBody(t, cfgResp, &cfg)
	placeholder, _ := cfg["dsn_placeholder"].(string)
	if strings.Contains(placeholder, ":p@") {
		t.Errorf("dsn_placeholder leaks password: %q", placeholder)
	}
	if !strings.Contains(placeholder, "db.example.com") {
		t.Errorf("dsn_placeholder = %q, want host preserved", placeholder)
	}
}

func TestLoginRejectsBadDSN(t *testing.T) {
	srv, _ := setupTestServer(t)

	cases := []struct {
		name string
		dsn  string
	}{
		{"wrong scheme", "mysql://u:p@db.example.com/iot"},
		{"private host", "postgres://u:p@127.0.0.1:5432/iot"},
		{"no host", "postgres:///iot"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, "POST", srv.URL+"/api/auth/login", "", map[string]string{
				"email":    "ops@example.com",
				"iotDbUrl": tc.dsn,
			})
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestSensorCRUDOverHTTP(t *testing.T) {
	srv, token := setupTestServer(t)

	create := doJSON(t, "POST", srv.URL+"/api/configured-sensors", token, map[string]interface{}{
		"object_id":           10,
		"device_id":           42,
		"sensor_input_label":  "fuel_level",
		"sensor_source":       "input",
		"sensor_label_custom": "Fuel",
		"min_threshold":       0.0,
		"max_threshold":       100.0,
	})
	if create.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", create.StatusCode)
	}
	var sensor appstate.ConfiguredSensor
	decodeBody(t, create, &sensor)
	if sensor.ID == 0 || sensor.CustomLabel != "Fuel" {
		t.Fatalf("created sensor = %+v", sensor)
	}

	list := doJSON(t, "GET", srv.URL+"/api/configured-sensors", token, nil)
	var listBody struct {
		Sensors []appstate.ConfiguredSensor `json:"sensors"`
	}
	decodeBody(t, list, &listBody)
	if len(listBody.Sensors) != 1 {
		t.Fatalf("list returned %d sensors, want 1", len(listBody.Sensors))
	}

	patch := doJSON(t, "PATCH", srv.URL+fmt.Sprintf("/api/configured-sensors/%d", sensor.ID), token, map[string]interface{}{
		"sensor_label_custom": "Fuel Level",
	})
	if patch.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, want 200", patch.StatusCode)
	}
	var patched appstate.ConfiguredSensor
	decodeBody(t, patch, &patched)
	if patched.CustomLabel != "Fuel Level" || patched.MaxThreshold == nil || *patched.MaxThreshold != 100 {
		t.Errorf("patched sensor = %+v", patched)
	}

	// Inverted thresholds must be rejected against the merged state.
	bad := doJSON(t, "PATCH", srv.URL+fmt.Sprintf("/api/configured-sensors/%d", sensor.ID), token, map[string]interface{}{
		"min_threshold": 200.0,
	})
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("inverted thresholds status = %d, want 400", bad.StatusCode)
	}

	del := doJSON(t, "DELETE", srv.URL+fmt.Sprintf("/api/configured-sensors/%d", sensor.ID), token, nil)
	del.Body.Close()
	if del.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", del.StatusCode)
	}

	again := doJSON(t, "GET", srv.URL+"/api/configured-sensors", token, nil)
	var afterDelete struct {
		Sensors []appstate.ConfiguredSensor `json:"sensors"`
	}
	decodeBody(t, again, &afterDelete)
	if len(afterDelete.Sensors) != 0 {
		t.Errorf("list after delete returned %d sensors, want 0", len(afterDelete.Sensors))
	}
}

func TestPlaneLifecycleOverHTTP(t *testing.T) {
	srv, token := setupTestServer(t)

	var sensors [2]appstate.ConfiguredSensor
	for i := range sensors {
		resp := doJSON(t, "POST", srv.URL+"/api/configured-sensors", token, map[string]interface{}{
			"object_id":           3,
			"device_id":           7,
			"sensor_input_label":  fmt.Sprintf("signal_%d", i),
			"sensor_source":       "state",
			"sensor_label_custom": fmt.Sprintf("Signal %d", i),
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create sensor %d status = %d", i, resp.StatusCode)
		}
		decodeBody(t, resp, &sensors[i])
	}

	var planes [2]appstate.DashboardPlane
	for i, s := range sensors {
		resp := doJSON(t, "POST", srv.URL+"/api/dashboard-planes", token, map[string]interface{}{
			"configured_sensor_id": s.ID,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("pin sensor %d status = %d", i, resp.StatusCode)
		}
		decodeBody(t, resp, &planes[i])
	}
	if planes[0].PositionIndex != 0 || planes[1].PositionIndex != 1 {
		t.Fatalf("positions = %d, %d, want 0, 1", planes[0].PositionIndex, planes[1].PositionIndex)
	}

	// Reverse the order; entries arrive unsorted and the server orders them
	// by the requested position.
	reorder := doJSON(t, "PATCH", srv.URL+"/api/dashboard-planes/order", token, map[string]interface{}{
		"order": []map[string]interface{}{
			{"dashboard_plane_id": planes[0].ID, "position_index": 1},
			{"dashboard_plane_id": planes[1].ID, "position_index": 0},
		},
	})
	reorder.Body.Close()
	if reorder.StatusCode != http.StatusOK {
		t.Fatalf("reorder status = %d, want 200", reorder.StatusCode)
	}

	list := doJSON(t, "GET", srv.URL+"/api/dashboard-planes", token, nil)
	var listBody struct {
		Planes []appstate.DashboardPlane `json:"planes"`
	}
	decodeBody(t, list, &listBody)
	if len(listBody.Planes) != 2 {
		t.Fatalf("list returned %d planes, want 2", len(listBody.Planes))
	}
	if listBody.Planes[0].ID != planes[1].ID {
		t.Errorf("first plane after reorder = %d, want %d", listBody.Planes[0].ID, planes[1].ID)
	}
	if listBody.Planes[0].Sensor == nil || listBody.Planes[0].Sensor.CustomLabel == "" {
		t.Error("plane listing missing joined sensor")
	}

	remove := doJSON(t, "DELETE", srv.URL+fmt.Sprintf("/api/dashboard-planes/%d", planes[0].ID), token, nil)
	remove.Body.Close()
	if remove.StatusCode != http.StatusOK {
		t.Fatalf("remove status = %d, want 200", remove.StatusCode)
	}

	missing := doJSON(t, "DELETE", srv.URL+fmt.Sprintf("/api/dashboard-planes/%d", planes[0].ID), token, nil)
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("double remove status = %d, want 404", missing.StatusCode)
	}
}

func TestTenantIsolationOverHTTP(t *testing.T) {
	srv, token := setupTestServer(t)

	create := doJSON(t, "POST", srv.URL+"/api/configured-sensors", token, map[string]interface{}{
		"object_id":           1,
		"device_id":           1,
		"sensor_input_label":  "rpm",
		"sensor_source":       "input",
		"sensor_label_custom": "RPM",
	})
	var sensor appstate.ConfiguredSensor
	decodeBody(t, create, &sensor)

	other := sessionResolver.Registry().Register(auth.Credentials{
		Email:        "rival@example.com",
		WarehouseDSN: "postgres://u:p@db.example.com:5432/iot",
	})
	otherToken, err := sessionResolver.Codec().Issue(other.UserID, other.Email, "admin")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	resp := doJSON(t, "DELETE", srv.URL+fmt.Sprintf("/api/configured-sensors/%d", sensor.ID), otherToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cross-tenant delete status = %d, want 404", resp.StatusCode)
	}

	pin := doJSON(t, "POST", srv.URL+"/api/dashboard-planes", otherToken, map[string]interface{}{
		"configured_sensor_id": sensor.ID,
	})
	pin.Body.Close()
	if pin.StatusCode != http.StatusForbidden {
		t.Errorf("cross-tenant pin status = %d, want 403", pin.StatusCode)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	srv, token := setupTestServer(t)

	req, _ := http.NewRequest("POST", srv.URL+"/api/configured-sensors", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
