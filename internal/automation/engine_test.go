//go:build !no_automation

package automation

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"

	"purifier-go-home/internal/coordinator"
	"purifier-go-home/internal/device"
	"purifier-go-home/internal/store"
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

func newTestEngine(t *testing.T, dev *fakeDevice) *Engine {
	t.Helper()
	return NewEngine(dev, coordinator.NewEventBus(testLogger()), newTestManager(t), testLogger())
}

func waitForCommands(t *testing.T, dev *fakeDevice, n int) []coordinator.Command {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cmds := dev.commands(); len(cmds) >= n {
			return cmds
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d commands, got %v", n, dev.commands())
	return nil
}

func TestGoToLua(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	tests := []struct {
		name string
		val  any
		want lua.LValueType
	}{
		{"nil", nil, lua.LTNil},
		{"bool", true, lua.LTBool},
		{"string", "hello", lua.LTString},
		{"int", 42, lua.LTNumber},
		{"uint8", uint8(255), lua.LTNumber},
		{"float32", float32(12.5), lua.LTNumber},
		{"map", map[string]any{"a": 1}, lua.LTTable},
		{"slice", []any{1, 2, 3}, lua.LTTable},
		{"unknown", struct{}{}, lua.LTString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := goToLua(L, tt.val).Type(); got != tt.want {
				t.Errorf("goToLua(%v) type = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}

func TestEventFields(t *testing.T) {
	tests := []struct {
		name  string
		event coordinator.Event
		key   string
		want  any
	}{
		{
			"state", coordinator.Event{Type: coordinator.EventStateChanged, Data: coordinator.DeviceState{Mode: device.FanModeAuto, Percentage: 30}},
			"mode", "auto",
		},
		{
			"reading", coordinator.Event{Type: coordinator.EventAirQuality, Data: device.Reading{PM25: 80, Level: device.QualityPoor}},
			"level", "poor",
		},
		{
			"button", coordinator.Event{Type: coordinator.EventButton, Data: device.ButtonEvent{Source: device.ButtonMode, LongPress: true}},
			"button", "mode",
		},
		{
			"change", coordinator.Event{Type: coordinator.EventAttributeReport, Data: store.Change{Name: "FanMode", Origin: store.OriginReport}},
			"origin", "report",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventFields(tt.event)[tt.key]; got != tt.want {
				t.Errorf("%s = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
	if f := eventFields(coordinator.Event{Type: coordinator.EventFactoryReset}); len(f) != 0 {
		t.Errorf("factory reset fields = %v, want empty", f)
	}
}

func TestMatchesHandler(t *testing.T) {
	fields := map[string]any{"level": "poor", "pm25": 80, "long_press": false}
	tests := []struct {
		name    string
		handler luaEventHandler
		evType  string
		want    bool
	}{
		{"no filter", luaEventHandler{eventType: "air_quality"}, "air_quality", true},
		{"wrong type", luaEventHandler{eventType: "button"}, "air_quality", false},
		{"string match", luaEventHandler{eventType: "air_quality", filter: map[string]string{"level": "poor"}}, "air_quality", true},
		{"string mismatch", luaEventHandler{eventType: "air_quality", filter: map[string]string{"level": "good"}}, "air_quality", false},
		{"number match", luaEventHandler{eventType: "air_quality", filter: map[string]string{"pm25": "80"}}, "air_quality", true},
		{"bool match", luaEventHandler{eventType: "air_quality", filter: map[string]string{"long_press": "false"}}, "air_quality", true},
		{"missing field", luaEventHandler{eventType: "air_quality", filter: map[string]string{"button": "power"}}, "air_quality", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesHandler(tt.handler, tt.evType, fields); got != tt.want {
				t.Errorf("matchesHandler() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngineDispatchesToScript(t *testing.T) {
	dev := &fakeDevice{}
	e := newTestEngine(t, dev)
	if _, err := e.manager.Save(&Script{
		ID:   "boost",
		Meta: ScriptMeta{Name: "Boost", Enabled: true},
		LuaCode: `purifier.on("air_quality", {level="very_poor"}, function(ev)
  purifier.set_mode("high")
end)`,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.manager.Save(&Script{
		ID:      "disabled",
		Meta:    ScriptMeta{Name: "Off"},
		LuaCode: `purifier.on("air_quality", function(ev) purifier.set_power(false) end)`,
	}); err != nil {
		t.Fatal(err)
	}

	e.Start()
	defer e.Stop()

	if !e.Running("boost") || e.Running("disabled") {
		t.Fatalf("running: boost=%v disabled=%v", e.Running("boost"), e.Running("disabled"))
	}

	e.events.Publish(coordinator.EventAirQuality, device.Reading{PM25: 20, Level: device.QualityGood})
	e.events.Publish(coordinator.EventAirQuality, device.Reading{PM25: 200, Level: device.QualityVeryPoor})

	cmds := waitForCommands(t, dev, 1)
	if cmds[0] != (coordinator.SetMode{Mode: device.FanModeHigh}) {
		t.Errorf("cmd = %+v", cmds[0])
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(dev.commands()); n != 1 {
		t.Errorf("executed %d commands, want 1", n)
	}
}

func TestEngineReloadAndStop(t *testing.T) {
	dev := &fakeDevice{}
	e := newTestEngine(t, dev)
	e.Start()
	defer e.Stop()

	if _, err := e.manager.Save(&Script{ID: "s", Meta: ScriptMeta{Enabled: true}, LuaCode: `purifier.log("x")`}); err != nil {
		t.Fatal(err)
	}
	if err := e.ReloadScript("s"); err != nil {
		t.Fatal(err)
	}
	if !e.Running("s") {
		t.Fatal("script not running after reload")
	}
	e.StopScript("s")
	if e.Running("s") {
		t.Fatal("script still running after stop")
	}

	if _, err := e.manager.Save(&Script{ID: "bad", Meta: ScriptMeta{Enabled: true}, LuaCode: `this is not lua`}); err != nil {
		t.Fatal(err)
	}
	if err := e.ReloadScript("bad"); err == nil {
		t.Error("expected syntax error")
	}
}

func TestRunLuaCode(t *testing.T) {
	dev := &fakeDevice{state: coordinator.DeviceState{Mode: device.FanModeLow, Percentage: 10}}
	e := newTestEngine(t, dev)

	res := e.RunLuaCode(`
local s = purifier.state()
purifier.log("mode=" .. s.mode)
purifier.on("button", {button="mode"}, function(ev)
  purifier.log("pressed " .. ev.button)
  purifier.set_percentage(42)
end)`)
	if !res.OK {
		t.Fatalf("run failed: %s", res.Error)
	}
	if len(res.Logs) != 2 || res.Logs[0] != "mode=low" || res.Logs[1] != "pressed mode" {
		t.Errorf("logs = %v", res.Logs)
	}
	cmds := dev.commands()
	if len(cmds) != 1 || cmds[0] != (coordinator.SetPercentage{Percentage: 42}) {
		t.Errorf("commands = %v", cmds)
	}
}

func TestRunLuaCodeErrors(t *testing.T) {
	e := newTestEngine(t, &fakeDevice{})

	tests := []struct {
		name string
		code string
	}{
		{"syntax", `purifier.log(`},
		{"bad mode", `purifier.set_mode("turbo")`},
		{"sandboxed os", `os.exit(1)`},
		{"timeout", `while true do end`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := e.RunLuaCode(tt.code); res.OK {
				t.Error("expected failure")
			}
		})
	}
}

func TestRunScriptNotFound(t *testing.T) {
	e := newTestEngine(t, &fakeDevice{})
	if res := e.RunScript("missing"); res.OK {
		t.Error("expected failure for missing script")
	}
}
