package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/loop-logic-core/internal/circuit"
	"github.com/nerrad567/loop-logic-core/internal/commissioning"
	"github.com/nerrad567/loop-logic-core/internal/infrastructure/config"
	"github.com/nerrad567/loop-logic-core/internal/infrastructure/logging"
)

// testServer creates a Server over a fresh in-memory commissioning service.
func testServer(t *testing.T) (*Server, *commissioning.Service) {
	t.Helper()

	svc := commissioning.NewService(commissioning.Options{
		Limits:             circuit.Limits{MaxDevices: 10, MaxAddress: 10, MaxCurrent: 7.0},
		RespectLocks:       true,
		ValidateElectrical: true,
	}, nil)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:  log,
		Service: svc,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, svc
}

// seedPanels initializes the service with a small two-circuit panel.
func seedPanels(t *testing.T, router http.Handler) {
	t.Helper()

	body := `[
		{"id": "d1", "type": "detector", "circuit_id": "p1-c1", "address": 1, "current_draw": 0.1},
		{"id": "d2", "type": "detector", "circuit_id": "p1-c1", "current_draw": 0.1},
		{"id": "d3", "type": "sounder", "circuit_id": "p1-c2", "current_draw": 0.2}
	]`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/panels/initialize", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("seed initialize status = %d: %s", w.Code, w.Body.String())
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody(t, w)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

// ─── Panel Endpoint Tests ──────────────────────────────────────────

func TestInitializePanels(t *testing.T) {
	srv, svc := testServer(t)
	router := srv.buildRouter()
	seedPanels(t, router)

	if got := len(svc.Panels()); got != 1 {
		t.Errorf("service has %d panels, want 1", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/panels/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list panels status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	panels, ok := resp["panels"].([]any)
	if !ok || len(panels) != 1 || panels[0] != "p1" {
		t.Errorf("panels = %v, want [p1]", resp["panels"])
	}
}

func TestInitializePanels_EmptyBody(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/panels/initialize", strings.NewReader("[]"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestValidatePanel_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/panels/ghost/validation", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestValidatePanel(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	seedPanels(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/panels/p1/validation", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["is_valid"] != true {
		t.Errorf("is_valid = %v, want true", resp["is_valid"])
	}
}

// ─── Assignment Endpoint Tests ─────────────────────────────────────

func TestAutoAssign(t *testing.T) {
	srv, svc := testServer(t)
	router := srv.buildRouter()
	seedPanels(t, router)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assignments/auto", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	// d1 already holds address 1; d2 and d3 are newly assigned.
	if got := resp["assigned"].(float64); got != 2 {
		t.Errorf("assigned = %v, want 2", got)
	}
	if d := svc.Device("d2"); !d.Assigned() {
		t.Error("d2 should hold an address after auto-assignment")
	}
}

func TestAutoAssign_BadStrategy(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"strategy": "fancy"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assignments/auto", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestBalance(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	seedPanels(t, router)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assignments/balance", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if _, ok := resp["imbalance_before"]; !ok {
		t.Errorf("response missing imbalance_before: %v", resp)
	}
}

// ─── Reporting Endpoint Tests ──────────────────────────────────────

func TestCircuitUtilization(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	seedPanels(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/circuits/utilization", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	circuits, ok := resp["circuits"].([]any)
	if !ok || len(circuits) != 2 {
		t.Fatalf("circuits = %v, want 2 entries", resp["circuits"])
	}
}

func TestStatistics(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	seedPanels(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/statistics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	if got := resp["devices"].(float64); got != 3 {
		t.Errorf("devices = %v, want 3", got)
	}
}

// ─── Device Endpoint Tests ─────────────────────────────────────────

func TestAssignDevice(t *testing.T) {
	srv, svc := testServer(t)
	router := srv.buildRouter()
	seedPanels(t, router)

	body := `{"circuit_id": "p1-c2", "options": {"auto_assign_address": true}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/d2/assign", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if d := svc.Device("d2"); d.CircuitID != "p1-c2" {
		t.Errorf("d2 circuit = %s, want p1-c2", d.CircuitID)
	}
}

func TestAssignDevice_UnknownDevice(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	seedPanels(t, router)

	body := `{"circuit_id": "p1-c1", "options": {"auto_assign_address": true}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/ghost/assign", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestUpdateAddress_Conflict(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	seedPanels(t, router)

	// Put d2 somewhere first so it has a circuit.
	assign := `{"circuit_id": "p1-c1", "options": {"auto_assign_address": true}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/d2/assign", strings.NewReader(assign))
	router.ServeHTTP(httptest.NewRecorder(), req)

	// Address 1 is held by d1: expect a validation failure with issues.
	body := `{"address": 1}`
	req = httptest.NewRequest(http.MethodPut, "/api/v1/devices/d2/address", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusUnprocessableEntity, w.Body.String())
	}
	resp := decodeBody(t, w)
	if _, ok := resp["issues"]; !ok {
		t.Errorf("conflict response missing issues: %v", resp)
	}
}

func TestRemoveDevice(t *testing.T) {
	srv, svc := testServer(t)
	router := srv.buildRouter()
	seedPanels(t, router)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/devices/d1/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if d := svc.Device("d1"); d.Assigned() {
		t.Error("d1 should be unassigned after removal")
	}

	// Second removal reports not found.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/devices/d1/", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Snapshot Endpoint Tests ───────────────────────────────────────

func TestSnapshotExportImport(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	seedPanels(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot/?format=csv", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	exported := w.Body.Bytes()

	// Import into a fresh server.
	srv2, svc2 := testServer(t)
	router2 := srv2.buildRouter()

	req = httptest.NewRequest(http.MethodPost, "/api/v1/snapshot/?format=csv", bytes.NewReader(exported))
	w = httptest.NewRecorder()
	router2.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if got := resp["imported"].(float64); got != 3 {
		t.Errorf("imported = %v, want 3", got)
	}
	if svc2.Device("d1") == nil {
		t.Error("d1 missing after import")
	}
}

func TestSnapshotExport_BadFormat(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot/?format=pdf", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Transaction Endpoint Tests ────────────────────────────────────

func TestTransactionLifecycle(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transaction/begin", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("begin status = %d", w.Code)
	}
	if resp := decodeBody(t, w); resp["batch_id"] == "" {
		t.Error("begin returned empty batch_id")
	}

	seedPanels(t, router)

	// No store configured: commit conflicts rather than silently dropping.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/transaction/commit", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("commit status = %d, want %d", w.Code, http.StatusConflict)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/transaction/rollback", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("rollback status = %d", w.Code)
	}
}

func TestTransactionHistory_NoStore(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transaction/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}
