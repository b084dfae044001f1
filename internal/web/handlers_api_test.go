package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"purifier-go-home/internal/coordinator"
	"purifier-go-home/internal/device"
	"purifier-go-home/internal/store"
	"purifier-go-home/internal/zcl"
	"purifier-go-home/internal/zcl/clusters"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeDevice struct {
	mu    sync.Mutex
	state coordinator.DeviceState
	cmds  []coordinator.Command
}

func (d *fakeDevice) Execute(cmd coordinator.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmds = append(d.cmds, cmd)
	if m, ok := cmd.(coordinator.SetMode); ok {
		d.state.Mode = m.Mode
	}
	return nil
}

func (d *fakeDevice) State() coordinator.DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *fakeDevice) commands() []coordinator.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]coordinator.Command(nil), d.cmds...)
}

type fakeButtons struct {
	events []device.ButtonEvent
}

func (b *fakeButtons) Push(ev device.ButtonEvent) { b.events = append(b.events, ev) }

type testEnv struct {
	srv     *Server
	dev     *fakeDevice
	store   *store.MemoryStore
	buttons *fakeButtons
	events  *coordinator.EventBus
}

func setupTestServer(t *testing.T, opts ...ServerOption) *testEnv {
	t.Helper()
	logger := testLogger()
	registry := zcl.NewRegistry(logger)
	clusters.RegisterAll(registry)
	st, err := store.NewMemoryStore(registry, clusters.Layout(), logger)
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{dev: &fakeDevice{}, store: st, buttons: &fakeButtons{}, events: coordinator.NewEventBus(logger)}
	opts = append([]ServerOption{WithStore(st), WithButtons(env.buttons), WithVersion("test")}, opts...)
	srv, err := NewServer(env.dev, env.events, logger, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(srv.Stop)
	env.srv = srv
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	env.srv.ServeHTTP(w, req)
	return w
}

func TestIndexPage(t *testing.T) {
	env := setupTestServer(t, WithName("Bedroom"))
	env.dev.state.Mode = device.FanModeHigh

	w := env.do(t, "GET", "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<h1>Bedroom</h1>") {
		t.Error("page missing device name")
	}
	if !strings.Contains(body, `<td id="mode">high</td>`) {
		t.Error("page missing current mode")
	}
}

func TestAPIState(t *testing.T) {
	env := setupTestServer(t)
	env.dev.state = coordinator.DeviceState{Mode: device.FanModeAuto, Percentage: 30, AutoModeActive: true, Brightness: 2}

	w := env.do(t, "GET", "/api/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["mode"] != "auto" || got["percentage"] != float64(30) || got["auto_mode_active"] != true {
		t.Errorf("state = %v", got)
	}
}

func TestAPIFan(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		want     []coordinator.Command
	}{
		{"mode", `{"mode":"low"}`, http.StatusOK, []coordinator.Command{coordinator.SetMode{Mode: device.FanModeLow}}},
		{"percentage", `{"percentage":55}`, http.StatusOK, []coordinator.Command{coordinator.SetPercentage{Percentage: 55}}},
		{"power off", `{"power":false}`, http.StatusOK, []coordinator.Command{coordinator.SetPower{On: false}}},
		{
			"ordered", `{"brightness":1,"mode":"auto","power":true}`, http.StatusOK,
			[]coordinator.Command{coordinator.SetPower{On: true}, coordinator.SetMode{Mode: device.FanModeAuto}, coordinator.SetBrightness{Level: 1}},
		},
		{"unknown mode", `{"mode":"turbo"}`, http.StatusBadRequest, nil},
		{"percentage above range", `{"percentage":101}`, http.StatusOK, []coordinator.Command{coordinator.SetPercentage{Percentage: 100}}},
		{"percentage below range", `{"percentage":-5}`, http.StatusOK, []coordinator.Command{coordinator.SetPercentage{Percentage: 0}}},
		{"brightness range", `{"brightness":4}`, http.StatusBadRequest, nil},
		{"empty", `{}`, http.StatusBadRequest, nil},
		{"bad json", `{`, http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t)
			w := env.do(t, "POST", "/api/fan", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			got := env.dev.commands()
			if len(got) != len(tt.want) {
				t.Fatalf("commands = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("cmd[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAPIButton(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "POST", "/api/button", `{"button":"brightness","long_press":true}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if len(env.buttons.events) != 1 || env.buttons.events[0] != (device.ButtonEvent{Source: device.ButtonBrightness, LongPress: true}) {
		t.Errorf("events = %v", env.buttons.events)
	}

	for _, body := range []string{`{}`, `{"button":"reset"}`, `{"button":1}`} {
		if w := env.do(t, "POST", "/api/button", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestAPIListAttributes(t *testing.T) {
	env := setupTestServer(t)
	w := env.do(t, "GET", "/api/attributes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var attrs []store.Attribute
	if err := json.Unmarshal(w.Body.Bytes(), &attrs); err != nil {
		t.Fatal(err)
	}
	if len(attrs) != len(env.store.Snapshot()) {
		t.Errorf("got %d attributes", len(attrs))
	}
}

func TestAPIWriteAttribute(t *testing.T) {
	env := setupTestServer(t)
	var hooked []store.Path
	env.store.OnUpdate(func(p store.Path, _ any) { hooked = append(hooked, p) })

	body := func(attr uint16, value string) string {
		return `{"endpoint":1,"cluster":514,"attribute":` + jsonInt(attr) + `,"value":` + value + `}`
	}
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"fan mode", body(clusters.AttrFanMode, "3"), http.StatusOK},
		{"null percent", body(clusters.AttrPercentSetting, "null"), http.StatusOK},
		{"read-only", body(clusters.AttrPercentCurrent, "10"), http.StatusForbidden},
		{"not nullable", body(clusters.AttrFanMode, "null"), http.StatusBadRequest},
		{"bad type", body(clusters.AttrFanMode, `"fast"`), http.StatusBadRequest},
		{"unknown path", `{"endpoint":9,"cluster":514,"attribute":0,"value":1}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(t, "POST", "/api/attributes", tt.body); w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
	if len(hooked) != 2 {
		t.Errorf("write hook called %d times, want 2", len(hooked))
	}
	if v, _ := env.store.Get(store.Path{Endpoint: 1, Cluster: clusters.FanControlID, Attribute: clusters.AttrFanMode}); v != uint8(3) {
		t.Errorf("FanMode = %v", v)
	}
}

func jsonInt(v uint16) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestMetricsRoute(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("purifier_fan_percent 10\n"))
	})
	env := setupTestServer(t, WithMetrics(h), WithAPIKey("secret"))

	w := env.do(t, "GET", "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "purifier_fan_percent") {
		t.Errorf("status = %d body = %q", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := setupTestServer(t, WithAPIKey("secret"))

	tests := []struct {
		name    string
		headers []string
		want    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", []string{"X-API-Key", "nope"}, http.StatusUnauthorized},
		{"correct", []string{"X-API-Key", "secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(t, "GET", "/api/state", "", tt.headers...); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	if w := env.do(t, "GET", "/", ""); w.Code != http.StatusOK {
		t.Errorf("index status = %d, want 200 without key", w.Code)
	}
}

func TestCORS(t *testing.T) {
	env := setupTestServer(t, WithAllowedOrigins([]string{"http://good.example"}))

	w := env.do(t, "OPTIONS", "/api/fan", "", "Origin", "http://good.example")
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "http://good.example" {
		t.Errorf("preflight status = %d headers = %v", w.Code, w.Header())
	}
	if w := env.do(t, "POST", "/api/fan", `{"mode":"high"}`, "Origin", "http://evil.example"); w.Code != http.StatusForbidden {
		t.Errorf("cross-origin POST status = %d, want 403", w.Code)
	}
	if len(env.dev.commands()) != 0 {
		t.Error("forbidden request reached the device")
	}
}
