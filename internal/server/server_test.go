package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/fleetyard/internal/analytics"
	"github.com/zulandar/fleetyard/internal/cycle"
	"github.com/zulandar/fleetyard/internal/db"
	"github.com/zulandar/fleetyard/internal/models"
)

const testSecret = "test-secret"

type testAPI struct {
	router *gin.Engine
	clock  *testclock.Clock
}

func newTestAPI(t *testing.T, secret string) *testAPI {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gormDB))

	loc := uint(1)
	require.NoError(t, gormDB.Create(&[]models.Location{{ID: 1, Name: "Dock A"}, {ID: 3, Name: "Charging bay"}}).Error)
	require.NoError(t, gormDB.Create(&[]models.Operator{{ID: 1, Name: "Ana"}, {ID: 2, Name: "Ben"}}).Error)
	require.NoError(t, gormDB.Create(&[]models.Vehicle{
		{ID: 7, Code: "FL-07", Status: models.VehicleOperational, LocationID: &loc},
		{ID: 8, Code: "FL-08", Status: models.VehicleBlocked},
	}).Error)

	clk := testclock.NewClock(time.Date(2026, 3, 2, 6, 0, 0, 0, time.Local))
	reg := prometheus.NewRegistry()
	rec, err := cycle.NewPromRecorder(reg)
	require.NoError(t, err)
	engine, err := cycle.New(gormDB, cycle.WithClock(clk), cycle.WithRecorder(rec))
	require.NoError(t, err)
	svc, err := analytics.New(gormDB, analytics.WithClock(clk))
	require.NoError(t, err)

	router, err := newRouter(StartOpts{Engine: engine, Analytics: svc, JWTSecret: secret, Gatherer: reg})
	require.NoError(t, err)
	return &testAPI{router: router, clock: clk}
}

// call sends a request as the given operator (0 for anonymous) in header
// mode.
func (a *testAPI) call(t *testing.T, method, path string, operator uint, body string) *httptest.ResponseRecorder {
	t.Helper()
	headers := map[string]string{}
	if operator != 0 {
		headers[headerOperatorID] = fmt.Sprint(operator)
	}
	return a.send(t, method, path, headers, body)
}

func (a *testAPI) send(t *testing.T, method, path string, headers map[string]string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func TestNewRouter_RequiresCollaborators(t *testing.T) {
	_, err := newRouter(StartOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine is required")
}

func TestStart_NilEngine(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	require.Error(t, err)
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t, "")
	w := a.call(t, http.MethodGet, "/healthz", 0, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestRequestIDIsEchoed(t *testing.T) {
	a := newTestAPI(t, "")
	w := a.send(t, http.MethodGet, "/healthz", map[string]string{headerRequestID: "abc-123"}, "")
	assert.Equal(t, "abc-123", w.Header().Get(headerRequestID))
}

func TestPickupAndBusy(t *testing.T) {
	a := newTestAPI(t, "")

	w := a.call(t, http.MethodPost, "/vehicles/7/pickup", 1, `{"battery_pct": 80}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.NotZero(t, body["cycle_id"])
	assert.Equal(t, false, body["early_pickup"])

	w = a.call(t, http.MethodPost, "/vehicles/7/pickup", 2, `{"battery_pct": 50}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	body = decode(t, w)
	assert.Equal(t, "ResourceBusy", body["error"])
	assert.Equal(t, float64(1), body["holder_id"])
	assert.Equal(t, "Ana", body["holder_name"])
}

func TestPickup_ErrorMapping(t *testing.T) {
	a := newTestAPI(t, "")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		kind   string
	}{
		{"blocked", "/vehicles/8/pickup", `{"battery_pct": 80}`, http.StatusForbidden, "VehicleBlocked"},
		{"unknown vehicle", "/vehicles/99/pickup", `{"battery_pct": 80}`, http.StatusNotFound, "NotFound"},
		{"battery out of range", "/vehicles/7/pickup", `{"battery_pct": 180}`, http.StatusBadRequest, "InvalidBattery"},
		{"missing battery", "/vehicles/7/pickup", `{}`, http.StatusBadRequest, "BadRequest"},
		{"malformed json", "/vehicles/7/pickup", `{`, http.StatusBadRequest, "BadRequest"},
		{"bad id", "/vehicles/abc/pickup", `{"battery_pct": 80}`, http.StatusBadRequest, "BadRequest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.call(t, http.MethodPost, tt.path, 1, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.kind, decode(t, w)["error"])
		})
	}
}

func TestChargeWaitOverHTTP(t *testing.T) {
	a := newTestAPI(t, "")

	w := a.call(t, http.MethodPost, "/vehicles/7/pickup", 1, `{"battery_pct": 90}`)
	require.Equal(t, http.StatusOK, w.Code)
	cycleID := uint(decode(t, w)["cycle_id"].(float64))

	w = a.call(t, http.MethodPost, fmt.Sprintf("/cycles/%d/return", cycleID), 1, `{"battery_pct": 40, "return_type": "charge"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "charging", body["status"])
	assert.Equal(t, []interface{}{"insufficient depletion"}, body["warnings"])

	w = a.call(t, http.MethodPost, "/vehicles/7/pickup", 2, `{"battery_pct": 40}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body = decode(t, w)
	assert.Equal(t, "InsufficientCharge", body["error"])
	assert.Equal(t, float64(180), body["remaining_minutes"])

	w = a.call(t, http.MethodPost, "/vehicles/7/pickup", 2, `{"battery_pct": 40, "early_reason": "rush"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, body["early_pickup"])
	assert.Equal(t, float64(cycleID), body["closed_cycle_id"])
}

func TestTakeoverOverHTTP(t *testing.T) {
	a := newTestAPI(t, "")

	w := a.call(t, http.MethodPost, "/vehicles/7/takeover", 2, `{"battery_pct": 50}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NoActiveUsage", decode(t, w)["error"])

	w = a.call(t, http.MethodPost, "/vehicles/7/pickup", 1, `{"battery_pct": 80}`)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode(t, w)["cycle_id"]

	w = a.call(t, http.MethodPost, "/vehicles/7/takeover", 1, `{"battery_pct": 50}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SelfTakeover", decode(t, w)["error"])

	w = a.call(t, http.MethodPost, "/vehicles/7/takeover", 2, `{"battery_pct": 50}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, decode(t, w)["closed_cycle_id"])

	w = a.call(t, http.MethodGet, fmt.Sprintf("/cycles/%v", first), 2, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "takeover", body["return_type"])
	assert.Equal(t, true, body["forgot_return"])
	assert.Equal(t, "FL-07", body["vehicle_code"])
}

func TestReturnOverHTTP(t *testing.T) {
	a := newTestAPI(t, "")

	w := a.call(t, http.MethodPost, "/vehicles/7/pickup", 1, `{"battery_pct": 80}`)
	require.Equal(t, http.StatusOK, w.Code)
	path := fmt.Sprintf("/cycles/%v/return", decode(t, w)["cycle_id"])

	w = a.call(t, http.MethodPost, path, 1, `{"battery_pct": 15, "return_type": "park"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "LocationRequired", decode(t, w)["error"])

	w = a.call(t, http.MethodPost, path, 1, `{"battery_pct": 15, "return_type": "swap"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidReturnType", decode(t, w)["error"])

	w = a.call(t, http.MethodPost, path, 1, `{"battery_pct": 15, "return_type": "park", "location_id": 3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "parked", body["status"])
	assert.Equal(t, []interface{}{"critical battery left unattended"}, body["warnings"])

	w = a.call(t, http.MethodPost, path, 1, `{"battery_pct": 15, "return_type": "park", "location_id": 3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidState", decode(t, w)["error"])

	w = a.call(t, http.MethodPost, "/cycles/999/return", 1, `{"battery_pct": 15, "return_type": "charge"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.call(t, http.MethodGet, "/vehicles", 1, "")
	require.Equal(t, http.StatusOK, w.Code)
	var fleet struct {
		Vehicles []analytics.FleetEntry `json:"vehicles"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fleet))
	require.Len(t, fleet.Vehicles, 2)
	assert.Equal(t, analytics.ChargeParked, fleet.Vehicles[0].ChargeStatus)
	assert.Equal(t, "Charging bay", fleet.Vehicles[0].Location)
}

func TestWriteError_LockTimeoutIsRetryable(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeError(c, fmt.Errorf("%w: vehicle 7", cycle.ErrLockTimeout))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Unavailable", body["error"])
	assert.Equal(t, true, body["retryable"])
}

func TestWriteError_InfrastructureHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeError(c, fmt.Errorf("cycle: open cycle: %w", errors.New("disk I/O error")))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk")
	assert.Len(t, c.Errors, 1)
}

func TestStatusFor(t *testing.T) {
	tests := map[cycle.Kind]int{
		cycle.KindVehicleBlocked:     http.StatusForbidden,
		cycle.KindResourceBusy:       http.StatusConflict,
		cycle.KindInsufficientCharge: http.StatusUnprocessableEntity,
		cycle.KindNoActiveUsage:      http.StatusBadRequest,
		cycle.KindSelfTakeover:       http.StatusBadRequest,
		cycle.KindNotFound:           http.StatusNotFound,
		cycle.KindInvalidState:       http.StatusBadRequest,
		cycle.KindInvalidReturnType:  http.StatusBadRequest,
		cycle.KindLocationRequired:   http.StatusUnprocessableEntity,
		cycle.KindInvalidBattery:     http.StatusBadRequest,
	}
	for kind, want := range tests {
		assert.Equal(t, want, statusFor(kind), string(kind))
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	a := newTestAPI(t, "")

	w := a.call(t, http.MethodPost, "/vehicles/7/pickup", 1, `{"battery_pct": 80}`)
	require.Equal(t, http.StatusOK, w.Code)
	a.clock.Advance(time.Hour)

	w = a.call(t, http.MethodGet, "/dashboard?days=7", 0, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["in_use"])
	assert.Equal(t, float64(1), body["total_cycles"])
	assert.Equal(t, float64(7), body["window_days"])

	w = a.call(t, http.MethodGet, "/history?operator_id=1&limit=10", 0, "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(10), body["limit"])

	w = a.call(t, http.MethodGet, "/vehicles/7/history", 0, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = a.call(t, http.MethodGet, "/vehicles/404/history", 0, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.call(t, http.MethodGet, "/operators/stats", 0, "")
	require.Equal(t, http.StatusOK, w.Code)
	ops := decode(t, w)["operators"].([]interface{})
	require.Len(t, ops, 1)
	assert.Equal(t, "Ana", ops[0].(map[string]interface{})["name"])

	for _, bad := range []string{"/dashboard?days=x", "/dashboard?days=-1", "/history?status=lost", "/history?page=two"} {
		w = a.call(t, http.MethodGet, bad, 0, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t, "")
	a.call(t, http.MethodPost, "/vehicles/7/pickup", 1, `{"battery_pct": 80}`)

	w := a.call(t, http.MethodGet, "/metrics", 0, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `fleetyard_cycle_operations_total{operation="pickup",outcome="ok"} 1`)
}

func TestWritesNeedOperator(t *testing.T) {
	a := newTestAPI(t, "")

	w := a.call(t, http.MethodPost, "/vehicles/7/pickup", 0, `{"battery_pct": 80}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.send(t, http.MethodPost, "/vehicles/7/pickup", map[string]string{headerOperatorID: "ana"}, `{"battery_pct": 80}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func signToken(t *testing.T, secret, subject string, caps ...string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Caps: caps,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + s
}

func TestJWTPrincipal(t *testing.T) {
	a := newTestAPI(t, testSecret)

	w := a.call(t, http.MethodGet, "/dashboard", 1, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "header identity is ignored when tokens are required")

	reader := signToken(t, testSecret, "2", CapAnalyticsRead)
	w = a.send(t, http.MethodGet, "/dashboard", map[string]string{"Authorization": reader}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.send(t, http.MethodPost, "/vehicles/7/pickup", map[string]string{"Authorization": reader}, `{"battery_pct": 80}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Forbidden", decode(t, w)["error"])

	writer := signToken(t, testSecret, "2", CapCyclesWrite)
	w = a.send(t, http.MethodPost, "/vehicles/7/pickup", map[string]string{"Authorization": writer}, `{"battery_pct": 80}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	forged := signToken(t, "other-secret", "2", CapCyclesWrite)
	w = a.send(t, http.MethodPost, "/vehicles/7/pickup", map[string]string{"Authorization": forged}, `{"battery_pct": 80}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	badSubject := signToken(t, testSecret, "ana", CapCyclesWrite)
	w = a.send(t, http.MethodPost, "/vehicles/7/pickup", map[string]string{"Authorization": badSubject}, `{"battery_pct": 80}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthzNeedsNoToken(t *testing.T) {
	a := newTestAPI(t, testSecret)
	w := a.call(t, http.MethodGet, "/healthz", 0, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEventsStream(t *testing.T) {
	api := newTestAPI(t, "")
	require.Equal(t, http.StatusOK, api.call(t, http.MethodPost, "/vehicles/7/pickup", 1, `{"battery_pct": 80}`).Code)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set(headerOperatorID, "2")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: connected\n"), body)
	require.Contains(t, body, "event: fleet\ndata: ")
	assert.Contains(t, body, `"charge_status":"in_use"`)
	assert.Contains(t, body, `"operator_name":"Ana"`)
	assert.Equal(t, 1, strings.Count(body, "event: fleet"), "unchanged fleet is sent once")
}

func TestWriteSSE(t *testing.T) {
	var buf strings.Builder
	writeSSE(&buf, "fleet", []byte(`[]`))
	assert.Equal(t, "event: fleet\ndata: []\n\n", buf.String())
}
