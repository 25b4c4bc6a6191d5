package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/bridge"
	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
	"github.com/nerrad567/hcbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hcbridge/internal/session"
)

const testDeviceID = "BOSCH-DWF97RV60-68A40E000001"

const testDescription = `{
  "info": {"brand": "BOSCH", "type": "Hood", "vib": "DWF97RV60", "deviceID": "BOSCH-DWF97RV60-68A40E000001",
           "mac": "68-A4-0E-00-00-01"},
  "status": [
    {"uid": 527, "name": "BSH.Common.Status.DoorState", "access": "read",
     "enumeration": {"0": "Open", "1": "Closed"}, "initValue": 1}
  ],
  "setting": [
    {"uid": 539, "name": "BSH.Common.Setting.PowerState", "access": "readWrite",
     "enumeration": {"1": "Off", "2": "On"}, "initValue": 2}
  ],
  "option": [
    {"uid": 55307, "name": "Cooking.Common.Option.Hood.VentingLevel", "access": "readWrite",
     "enumeration": {"0": "FanOff", "1": "FanStage01", "2": "FanStage02"}, "initValue": 0},
    {"uid": 558, "name": "BSH.Common.Option.StartInRelative", "access": "readWrite", "min": 0, "max": 86400, "initValue": 0}
  ],
  "program": [
    {"uid": 53250, "name": "Cooking.Common.Program.Hood.Venting", "options": [55307, 558]}
  ],
  "activeProgram": {"uid": 256, "name": "BSH.Common.Root.ActiveProgram", "access": "read", "initValue": 0},
  "selectedProgram": {"uid": 257, "name": "BSH.Common.Root.SelectedProgram", "access": "readWrite", "initValue": 0}
}`

const testSecret = "test-secret-key-at-least-32-characters-long"

// testServer creates a Server over one started bridge on a memory session.
func testServer(t *testing.T, mutate ...func(*Deps)) (*Server, *session.Memory) {
	t.Helper()

	manager := bridge.NewManager(bridge.ManagerOptions{})
	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:     logging.Discard(),
		Appliances: manager,
		Version:    "test",
	}
	for _, m := range mutate {
		m(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	desc, err := appliance.ParseDescription([]byte(testDescription))
	if err != nil {
		t.Fatalf("ParseDescription: %v", err)
	}
	mem := session.NewMemory()
	app, err := appliance.New(desc, mem)
	if err != nil {
		t.Fatalf("appliance.New: %v", err)
	}
	b, err := bridge.New(bridge.Options{Appliance: app, Sinks: []bridge.StateSink{srv.Hub()}})
	if err != nil {
		t.Fatalf("bridge.New: %v", err)
	}
	if err := manager.Add(b); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = manager.Stop() })
	waitUntil(t, b.Connected)

	return srv, mem
}

// waitUntil polls cond for up to two seconds.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// do runs a request against the router.
func do(t *testing.T, srv *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}
