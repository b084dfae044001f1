package indicator

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"purifier-go-home/internal/device"
)

type fakeDriver struct {
	mu         sync.Mutex
	words      []uint8
	brightness []uint8
	colors     []RGB
}

func (f *fakeDriver) DriveWord(w uint8) {
	f.mu.Lock()
	f.words = append(f.words, w)
	f.mu.Unlock()
}

func (f *fakeDriver) SetIndicatorBrightness(l uint8) {
	f.mu.Lock()
	f.brightness = append(f.brightness, l)
	f.mu.Unlock()
}

func (f *fakeDriver) SetRGB(c RGB) {
	f.mu.Lock()
	f.colors = append(f.colors, c)
	f.mu.Unlock()
}

func (f *fakeDriver) lastColor() RGB {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.colors[len(f.colors)-1]
}

func (f *fakeDriver) wordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.words)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSetOnIdempotent(t *testing.T) {
	m := New(&fakeDriver{}, newTestLogger())
	m.SetOn(Wifi | Auto)
	on1, blink1 := m.Masks()
	m.SetOn(Wifi | Auto)
	on2, blink2 := m.Masks()
	if on1 != on2 || blink1 != blink2 {
		t.Errorf("masks changed: (%b,%b) -> (%b,%b)", on1, blink1, on2, blink2)
	}
	if on2 != Wifi|Auto {
		t.Errorf("on = %b, want %b", on2, Wifi|Auto)
	}
}

func TestMasksExclusive(t *testing.T) {
	m := New(&fakeDriver{}, newTestLogger())

	m.SetBlink(Wifi)
	m.SetOn(Wifi)
	on, blink := m.Masks()
	if on&Wifi == 0 || blink&Wifi != 0 {
		t.Errorf("after SetOn: on=%b blink=%b", on, blink)
	}

	m.SetBlink(Wifi)
	on, blink = m.Masks()
	if on&Wifi != 0 || blink&Wifi == 0 {
		t.Errorf("after SetBlink: on=%b blink=%b", on, blink)
	}

	m.SetOn(Wifi)
	m.SetOff(Wifi)
	on, blink = m.Masks()
	if on&Wifi != 0 || blink&Wifi != 0 {
		t.Errorf("after SetOff: on=%b blink=%b", on, blink)
	}
}

func TestBlinkPhase(t *testing.T) {
	m := New(&fakeDriver{}, newTestLogger())
	m.SetOn(Auto)
	m.SetBlink(Wifi)

	if w := m.Word(); w != uint8(Auto) {
		t.Errorf("phase off: word = %b, want %b", w, Auto)
	}
	m.Tick()
	if w := m.Word(); w != uint8(Auto|Wifi) {
		t.Errorf("phase on: word = %b, want %b", w, Auto|Wifi)
	}
	m.Tick()
	if w := m.Word(); w != uint8(Auto) {
		t.Errorf("phase off again: word = %b, want %b", w, Auto)
	}
}

func TestUnchangedWordNotResent(t *testing.T) {
	d := &fakeDriver{}
	m := New(d, newTestLogger())
	m.SetOn(Auto)
	before := d.wordCount()

	// No blinking flags: toggling the phase leaves the word unchanged.
	m.Tick()
	m.Tick()
	m.SetOn(Auto)
	if got := d.wordCount(); got != before {
		t.Errorf("driver writes = %d, want %d", got, before)
	}
}

func TestBrightnessGatesIndicators(t *testing.T) {
	tests := []struct {
		level       int
		wantEnabled bool
	}{
		{0, false}, {1, false}, {2, true}, {3, true}, {7, true}, {-1, false},
	}
	for _, tt := range tests {
		m := New(&fakeDriver{}, newTestLogger())
		m.SetOn(Auto)
		m.SetBrightness(tt.level)
		got := m.Word() != 0
		if got != tt.wantEnabled {
			t.Errorf("level %d: shown = %v, want %v", tt.level, got, tt.wantEnabled)
		}
	}
}

func TestBrightnessScalesRGB(t *testing.T) {
	d := &fakeDriver{}
	m := New(d, newTestLogger())
	m.SetAirQuality(device.QualityVeryPoor)
	if c := d.lastColor(); c != (RGB{255, 0, 0}) {
		t.Errorf("full: color = %+v", c)
	}
	m.SetBrightness(2)
	if c := d.lastColor(); c != (RGB{128, 0, 0}) {
		t.Errorf("level 2: color = %+v", c)
	}
	m.SetBrightness(0)
	if c := d.lastColor(); c != (RGB{}) {
		t.Errorf("level 0: color = %+v", c)
	}
}

func TestAirQualityWarning(t *testing.T) {
	d := &fakeDriver{}
	m := New(d, newTestLogger())

	m.SetAirQuality(device.QualityPoor)
	color := d.lastColor()

	m.SetAirQuality(device.QualityUnknown)
	on, _ := m.Masks()
	if on&Warning == 0 {
		t.Error("Warning not set for unknown level")
	}
	if d.lastColor() != color {
		t.Errorf("unknown level changed colour to %+v", d.lastColor())
	}

	m.SetAirQuality(device.QualityGood)
	on, _ = m.Masks()
	if on&Warning != 0 {
		t.Error("Warning not cleared for known level")
	}
}

func TestColorsDistinct(t *testing.T) {
	seen := map[RGB]device.QualityLevel{}
	for lvl := device.QualityGood; lvl <= device.QualityExtremelyPoor; lvl++ {
		c, ok := ColorFor(lvl)
		if !ok {
			t.Fatalf("no colour for %v", lvl)
		}
		if prev, dup := seen[c]; dup {
			t.Errorf("%v and %v share colour %+v", prev, lvl, c)
		}
		seen[c] = lvl
	}
	if _, ok := ColorFor(device.QualityUnknown); ok {
		t.Error("unknown level has a colour")
	}
}

func TestFlashRestoresWarning(t *testing.T) {
	m := New(&fakeDriver{}, newTestLogger())
	m.Flash(context.Background(), 10*time.Millisecond)
	on, blink := m.Masks()
	if on&Warning != 0 || blink&Warning != 0 {
		t.Errorf("after flash: on=%b blink=%b", on, blink)
	}

	m.SetOn(Warning)
	m.Flash(context.Background(), 10*time.Millisecond)
	on, _ = m.Masks()
	if on&Warning == 0 {
		t.Error("steady Warning not restored after flash")
	}
}
