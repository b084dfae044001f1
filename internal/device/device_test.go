package device

import (
	"encoding/json"
	"testing"
)

func TestFanModeNormalize(t *testing.T) {
	tests := []struct {
		in   FanMode
		want FanMode
	}{
		{FanModeOff, FanModeOff},
		{FanModeLow, FanModeLow},
		{FanModeMedium, FanModeMedium},
		{FanModeHigh, FanModeHigh},
		{FanModeAuto, FanModeAuto},
		{FanModeOn, FanModeHigh},
		{FanModeSmart, FanModeAuto},
		{FanMode(42), FanModeOff},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("%v.Normalize() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFanMode(t *testing.T) {
	for _, m := range []FanMode{FanModeOff, FanModeLow, FanModeMedium, FanModeHigh, FanModeOn, FanModeAuto, FanModeSmart} {
		got, err := ParseFanMode(m.String())
		if err != nil {
			t.Fatalf("ParseFanMode(%q): %v", m.String(), err)
		}
		if got != m {
			t.Errorf("ParseFanMode(%q) = %v, want %v", m.String(), got, m)
		}
	}
	if got, err := ParseFanMode(" AUTO "); err != nil || got != FanModeAuto {
		t.Errorf("ParseFanMode(\" AUTO \") = %v, %v", got, err)
	}
	if _, err := ParseFanMode("turbo"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestParseButtonID(t *testing.T) {
	for _, b := range []ButtonID{ButtonPower, ButtonBrightness, ButtonMode} {
		got, err := ParseButtonID(b.String())
		if err != nil || got != b {
			t.Errorf("ParseButtonID(%q) = %v, %v", b.String(), got, err)
		}
	}
	if _, err := ParseButtonID("reset"); err == nil {
		t.Error("expected error for unknown button")
	}
}

func TestClampPercent(t *testing.T) {
	tests := []struct{ in, want int }{
		{-5, 0}, {0, 0}, {42, 42}, {100, 100}, {101, 100}, {255, 100},
	}
	for _, tt := range tests {
		if got := ClampPercent(tt.in); got != tt.want {
			t.Errorf("ClampPercent(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDeviceStateJSONNames(t *testing.T) {
	data, err := json.Marshal(struct {
		Mode   FanMode      `json:"mode"`
		Button ButtonID     `json:"button"`
		Level  QualityLevel `json:"level"`
	}{FanModeAuto, ButtonBrightness, QualityVeryPoor})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"mode":"auto","button":"brightness","level":"very_poor"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	var in struct {
		Mode   FanMode  `json:"mode"`
		Button ButtonID `json:"button"`
	}
	if err := json.Unmarshal([]byte(`{"mode":"High","button":"mode"}`), &in); err != nil {
		t.Fatal(err)
	}
	if in.Mode != FanModeHigh || in.Button != ButtonMode {
		t.Errorf("decoded %+v", in)
	}
	if err := json.Unmarshal([]byte(`{"mode":"turbo"}`), &in); err == nil {
		t.Error("expected error for unknown mode")
	}
}
