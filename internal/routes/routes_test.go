package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"smart-stay/internal/devices"
	"smart-stay/internal/jwt"
	"smart-stay/internal/power"
	"smart-stay/internal/scheduler"
	"smart-stay/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var anchor = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type memoryHistory struct {
	mu      sync.Mutex
	entries []storage.PowerHistoryEntry
	err     error
	since   time.Time
	limit   int
}

func (m *memoryHistory) AppendPowerHistory(ctx context.Context, e storage.PowerHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryHistory) ListPowerHistory(ctx context.Context, since time.Time, limit int) ([]storage.PowerHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since, m.limit = since, limit
	return m.entries, nil
}

type fakeController struct {
	calls  []devices.Action
	result devices.ActionResult
}

func (f *fakeController) ControlByAction(ctx context.Context, action devices.Action) devices.ActionResult {
	f.calls = append(f.calls, action)
	r := f.result
	r.Action = action
	return r
}

type fakeReconciler struct {
	passes int
	steps  []scheduler.Step
	err    error
}

func (f *fakeReconciler) Pass(ctx context.Context) (scheduler.Summary, error) {
	f.passes++
	steps := f.steps
	if steps == nil {
		steps = []scheduler.Step{}
	}
	return scheduler.Summary{At: anchor, Steps: steps}, f.err
}

type fakeAlerter struct {
	subjects []string
	err      error
}

func (f *fakeAlerter) Alert(ctx context.Context, subject string, body string) error {
	f.subjects = append(f.subjects, subject)
	return f.err
}

type fixture struct {
	engine     *gin.Engine
	history    *memoryHistory
	controller *fakeController
	reconciler *fakeReconciler
	alerter    *fakeAlerter
	recorder   *power.Recorder
}

func newFixture(t *testing.T, guard *Guard) *fixture {
	t.Helper()
	now := func() time.Time { return anchor }
	f := &fixture{
		history: &memoryHistory{},
		controller: &fakeController{result: devices.ActionResult{
			Result: devices.Result{Success: true, DeviceID: "dev-1", Command: "on"},
		}},
		reconciler: &fakeReconciler{},
		alerter:    &fakeAlerter{},
	}
	f.recorder = power.NewRecorder(power.NewState(anchor), f.history, now)
	filter := power.NewNoiseFilter(power.NewMemoryBuckets(), time.Minute)

	h := &Handlers{
		Recorder:   f.recorder,
		Intake:     power.NewIntake(f.recorder, filter, now),
		Controller: f.controller,
		History:    f.history,
		Reconciler: f.reconciler,
		Alerter:    f.alerter,
		Guard:      guard,
		StartedAt:  anchor.Add(-time.Hour),
		Version:    "test",
		Now:        now,
	}

	r := gin.New()
	r.Use(ErrorHandler())
	h.Register(r)
	f.engine = r
	return f
}

func (f *fixture) do(method string, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthAndStatus(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || decode(t, w)["message"] != "pong" {
		t.Fatalf("unexpected health response: %d %s", w.Code, w.Body.String())
	}

	w = f.do(http.MethodGet, "/status", "", nil)
	body := decode(t, w)
	if body["online"] != true || body["powerState"] != "off" || body["version"] != "test" {
		t.Errorf("unexpected status body: %v", body)
	}
	if body["uptime"] != float64(3600) {
		t.Errorf("expected uptime 3600, got %v", body["uptime"])
	}
}

func TestStatusReport_AcceptedThenSuppressed(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/api/power/status", `{"is_on":"вкл","source":"tasker","battery":"85%"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	received := decode(t, w)["received"].(map[string]any)
	if received["outcome"] != "accepted" || received["is_on"] != true || received["battery"] != float64(85) {
		t.Errorf("unexpected received block: %v", received)
	}
	if !f.recorder.Current().IsOn {
		t.Errorf("expected power state on")
	}

	w = f.do(http.MethodPost, "/api/power-status", `{"is_on":"on","source":"tasker"}`, nil)
	body := decode(t, w)
	if body["message"] != "Duplicate status suppressed" {
		t.Errorf("expected suppression, got %v", body)
	}
	if len(f.history.entries) != 2 {
		t.Errorf("expected audit row for suppressed report, got %d entries", len(f.history.entries))
	}
}

func TestStatusReport_Form(t *testing.T) {
	f := newFixture(t, nil)

	form := url.Values{"state": {"off"}, "source": {"phone"}, "force_log": {"true"}}
	req := httptest.NewRequest(http.MethodPost, "/api/power/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	received := decode(t, w)["received"].(map[string]any)
	if received["source"] != "phone" || received["force_log"] != true {
		t.Errorf("unexpected received block: %v", received)
	}
}

func TestStatusReport_Invalid(t *testing.T) {
	f := newFixture(t, nil)

	for _, body := range []string{`{"is_on":"maybe"}`, `{}`, `not json`} {
		w := f.do(http.MethodPost, "/api/power/status", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
			continue
		}
		resp := decode(t, w)
		if resp["success"] != false || resp["status"] != "error" {
			t.Errorf("%s: unexpected error body %v", body, resp)
		}
	}
	if len(f.history.entries) != 0 || f.recorder.Current().Source != power.SourceSystem {
		t.Errorf("invalid reports must not change state or history")
	}
}

func TestPowerStatus(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodGet, "/api/power-status", "", nil)
	body := decode(t, w)
	if body["isOn"] != false || body["source"] != power.SourceSystem || body["online"] != true {
		t.Errorf("unexpected power status: %v", body)
	}
}

func TestMeter_RecordsRemoteCommand(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/api/meter", `{"action":"включи"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["action"] != "on" || body["logged"] != true || body["device_id"] != "dev-1" {
		t.Errorf("unexpected meter response: %v", body)
	}
	snap := f.recorder.Current()
	if !snap.IsOn || snap.Source != power.SourceRemoteCommand {
		t.Errorf("unexpected state after meter on: %+v", snap)
	}

	f.do(http.MethodPost, "/api/meter/off", "", nil)
	if len(f.controller.calls) != 2 || f.controller.calls[1] != devices.ActionOff {
		t.Errorf("unexpected controller calls: %v", f.controller.calls)
	}
	if f.recorder.Current().IsOn {
		t.Errorf("expected power off")
	}
}

func TestMeter_UnknownAction(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/api/meter", `{"action":"sideways"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(f.controller.calls) != 0 {
		t.Errorf("no command expected for an unknown action")
	}
}

func TestMeter_CommandFailureLeavesState(t *testing.T) {
	f := newFixture(t, nil)
	f.controller.result = devices.ActionResult{Result: devices.Result{Err: errors.New("403")}}

	w := f.do(http.MethodPost, "/api/meter/on", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if f.recorder.Current().IsOn || len(f.history.entries) != 0 {
		t.Errorf("failed command must not record a transition")
	}
	codes, _ := decode(t, w)["code"].([]any)
	if len(codes) != 1 || codes[0] != "COMMAND_FAILED" {
		t.Errorf("unexpected stop codes: %v", codes)
	}
}

func TestMeter_LogFailureStillSucceeds(t *testing.T) {
	f := newFixture(t, nil)
	f.history.err = storage.ErrPersistence

	w := f.do(http.MethodPost, "/api/meter/on", "", nil)
	body := decode(t, w)
	if w.Code != http.StatusOK || body["logged"] != false || body["log_error"] == nil {
		t.Fatalf("unexpected response: %d %v", w.Code, body)
	}
	if !f.recorder.Current().IsOn {
		t.Errorf("state must stand when the history write fails")
	}
}

func TestPowerHistory(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/api/power-history", "", nil)
	body := decode(t, w)
	if body["count"] != float64(0) {
		t.Errorf("expected empty history, got %v", body)
	}
	if data, ok := body["data"].([]any); !ok || len(data) != 0 {
		t.Errorf("expected empty data array, got %v", body["data"])
	}
	if f.history.limit != historyLimit || !f.history.since.Equal(anchor.Add(-30*24*time.Hour)) {
		t.Errorf("unexpected query: since %v limit %d", f.history.since, f.history.limit)
	}

	f.do(http.MethodGet, "/api/power-history?days=7", "", nil)
	if !f.history.since.Equal(anchor.Add(-7 * 24 * time.Hour)) {
		t.Errorf("days not applied: %v", f.history.since)
	}

	w = f.do(http.MethodGet, "/api/power-history?days=-1", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative days, got %d", w.Code)
	}
}

func TestReservationSync(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/api/reservations/sync", "", nil)
	if w.Code != http.StatusOK || f.reconciler.passes != 1 {
		t.Fatalf("expected one pass, got %d passes, status %d", f.reconciler.passes, w.Code)
	}

	f.reconciler.err = storage.ErrPersistence
	w = f.do(http.MethodPost, "/api/reservations/sync", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestReservationSync_PartialFailureReportsSteps(t *testing.T) {
	f := newFixture(t, nil)
	f.reconciler.steps = []scheduler.Step{{Kind: scheduler.KindCheckIn, BookingID: 3, ReservationCode: "HM3"}}
	f.reconciler.err = storage.ErrPersistence

	w := f.do(http.MethodPost, "/api/reservations/sync", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	body := decode(t, w)
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body)
	}
	summary, ok := body["summary"].(map[string]any)
	if !ok {
		t.Fatalf("expected summary in error response: %v", body)
	}
	steps, _ := summary["steps"].([]any)
	if len(steps) != 1 {
		t.Errorf("expected the applied step in the response, got %v", summary["steps"])
	}
}

func TestAlert(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/api/alert", `{"message":"meter offline"}`, nil)
	if w.Code != http.StatusOK || len(f.alerter.subjects) != 1 || f.alerter.subjects[0] != "Alert" {
		t.Fatalf("unexpected alert handling: %d %v", w.Code, f.alerter.subjects)
	}

	w = f.do(http.MethodPost, "/api/alert", `{"subject":"x"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without message, got %d", w.Code)
	}

	f.alerter.err = errors.New("smtp down")
	w = f.do(http.MethodPost, "/api/alert", `{"message":"y"}`, nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestGuard_APIKey(t *testing.T) {
	f := newFixture(t, NewGuard("s3cret", "signing-secret", 0, 0))

	w := f.do(http.MethodPost, "/api/meter/on", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing key: expected 401, got %d", w.Code)
	}
	w = f.do(http.MethodPost, "/api/meter/on", "", map[string]string{API_KEY_HEADER: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: expected 401, got %d", w.Code)
	}
	if len(f.controller.calls) != 0 {
		t.Fatalf("guarded route ran without credentials")
	}

	w = f.do(http.MethodPost, "/api/meter/on", "", map[string]string{API_KEY_HEADER: "s3cret"})
	if w.Code != http.StatusOK {
		t.Errorf("header key: expected 200, got %d", w.Code)
	}
	w = f.do(http.MethodPost, "/api/meter/off?apiKey=s3cret", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("query key: expected 200, got %d", w.Code)
	}

	// Read-only routes stay open
	w = f.do(http.MethodGet, "/api/power-status", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("power-status: expected 200, got %d", w.Code)
	}
}

func TestGuard_OperatorToken(t *testing.T) {
	f := newFixture(t, NewGuard("s3cret", "signing-secret", 0, 0))

	token, err := jwt.NewOperatorToken("signing-secret", "alice", time.Hour)
	if err != nil {
		t.Fatalf("NewOperatorToken failed: %v", err)
	}
	w := f.do(http.MethodPost, "/api/meter/on", "", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Errorf("operator token: expected 200, got %d", w.Code)
	}

	forged, _ := jwt.NewOperatorToken("other-secret", "mallory", time.Hour)
	w = f.do(http.MethodPost, "/api/meter/on", "", map[string]string{"Authorization": "Bearer " + forged})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("forged token: expected 401, got %d", w.Code)
	}
}

func TestGuard_OpenWithoutKey(t *testing.T) {
	f := newFixture(t, NewGuard("", "", 0, 0))
	w := f.do(http.MethodPost, "/api/meter/on", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected open guard, got %d", w.Code)
	}
}

func TestGuard_RateLimit(t *testing.T) {
	f := newFixture(t, NewGuard("", "", 1, 2))

	for i := 0; i < 2; i++ {
		if w := f.do(http.MethodPost, "/api/reservations/sync", "", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	w := f.do(http.MethodPost, "/api/reservations/sync", "", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Errorf("expected Retry-After header")
	}
}

func TestGetErrorStatus(t *testing.T) {
	cases := map[error]int{
		power.ErrInvalidInput:      http.StatusBadRequest,
		storage.ErrNotFound:        http.StatusNotFound,
		ErrTooManyRequests:         http.StatusTooManyRequests,
		errors.New("unknown"):      http.StatusInternalServerError,
		devices.ErrUnknownAction:   http.StatusBadRequest,
		NewHTTPError(418, nil, ""): http.StatusTeapot,
	}
	for err, want := range cases {
		if got := GetErrorStatus(err); got != want {
			t.Errorf("%v: expected %d, got %d", err, want, got)
		}
	}

	if info := GetErrorInfo(errors.New("boom")); info.Message != "An internal error occurred" {
		t.Errorf("internal errors must not leak: %q", info.Message)
	}
}
