// Package indicator multiplexes independently owned status flags and a
// shared blink phase onto the front-panel indicator driver.
package indicator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"purifier-go-home/internal/device"
)

// Flag is a bit in the indicator word.
type Flag uint8

const (
	Warning Flag = 1 << 0
	Wifi    Flag = 1 << 1
	Lock    Flag = 1 << 2
	Auto    Flag = 1 << 3
	Night   Flag = 1 << 4
	Heart   Flag = 1 << 5

	allFlags = Warning | Wifi | Lock | Auto | Night | Heart
)

// DefaultBlinkInterval is the half-period of the blink phase.
const DefaultBlinkInterval = 750 * time.Millisecond

// MaxBrightness is the highest display brightness level.
const MaxBrightness = 3

// RGB is one colour with 8-bit channels.
type RGB struct {
	R, G, B uint8
}

// Driver is the hardware side of the indicator panel.
type Driver interface {
	DriveWord(word uint8)
	SetIndicatorBrightness(level uint8)
	SetRGB(c RGB)
}

// brightness level -> indicator brightness, RGB scale (out of 255), enabled
var brightnessTable = [MaxBrightness + 1]struct {
	indicator uint8
	rgbScale  uint16
	enabled   bool
}{
	{0, 0, false},
	{1, 32, false},
	{2, 128, true},
	{3, 255, true},
}

var qualityColors = map[device.QualityLevel]RGB{
	device.QualityGood:          {0, 255, 0},
	device.QualityFair:          {128, 255, 0},
	device.QualityModerate:      {255, 255, 0},
	device.QualityPoor:          {255, 128, 0},
	device.QualityVeryPoor:      {255, 0, 0},
	device.QualityExtremelyPoor: {128, 0, 128},
}

// ColorFor returns the feedback colour for a quality level. ok is false for
// QualityUnknown.
func ColorFor(level device.QualityLevel) (RGB, bool) {
	c, ok := qualityColors[level]
	return c, ok
}

// Multiplexer owns the on and blink masks. A flag is in at most one of them.
type Multiplexer struct {
	mu         sync.Mutex
	driver     Driver
	onMask     Flag
	blinkMask  Flag
	enabled    bool
	phase      bool
	lastSent   int
	brightness int
	color      RGB
	logger     *slog.Logger
}

// New creates a multiplexer at full brightness with every flag off.
func New(driver Driver, logger *slog.Logger) *Multiplexer {
	m := &Multiplexer{
		driver:   driver,
		lastSent: -1,
		color:    qualityColors[device.QualityGood],
		logger:   logger,
	}
	m.SetBrightness(MaxBrightness)
	return m
}

// SetOn shows the flags steadily.
func (m *Multiplexer) SetOn(mask Flag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mask &= allFlags
	m.onMask |= mask
	m.blinkMask &^= mask
	m.refreshLocked()
}

// SetBlink makes the flags follow the blink phase.
func (m *Multiplexer) SetBlink(mask Flag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mask &= allFlags
	m.blinkMask |= mask
	m.onMask &^= mask
	m.refreshLocked()
}

// SetOff hides the flags.
func (m *Multiplexer) SetOff(mask Flag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMask &^= mask
	m.blinkMask &^= mask
	m.refreshLocked()
}

// Masks returns the current on and blink masks.
func (m *Multiplexer) Masks() (on, blink Flag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onMask, m.blinkMask
}

// Word returns the indicator word for the current phase.
func (m *Multiplexer) Word() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wordLocked()
}

func (m *Multiplexer) wordLocked() uint8 {
	if !m.enabled {
		return 0
	}
	w := m.onMask
	if m.phase {
		w |= m.blinkMask
	}
	return uint8(w)
}

func (m *Multiplexer) refreshLocked() {
	w := m.wordLocked()
	if int(w) == m.lastSent {
		return
	}
	m.lastSent = int(w)
	m.driver.DriveWord(w)
}

// Tick flips the blink phase and refreshes the driver.
func (m *Multiplexer) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = !m.phase
	m.refreshLocked()
}

// Run ticks the blink phase every interval until ctx is cancelled.
func (m *Multiplexer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultBlinkInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// SetBrightness applies a display brightness level (clamped to 0..3) to the
// indicator driver, the RGB dimming and the enabled gate.
func (m *Multiplexer) SetBrightness(level int) {
	if level < 0 {
		level = 0
	}
	if level > MaxBrightness {
		level = MaxBrightness
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := brightnessTable[level]
	m.brightness = level
	m.enabled = entry.enabled
	m.driver.SetIndicatorBrightness(entry.indicator)
	m.driver.SetRGB(m.scaledLocked())
	m.refreshLocked()
	m.logger.Debug("indicator brightness", "level", level, "enabled", entry.enabled)
}

// Brightness returns the applied brightness level.
func (m *Multiplexer) Brightness() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brightness
}

// SetAirQuality shows the colour for level. Unknown keeps the last colour
// and raises the Warning flag; any known level clears it.
func (m *Multiplexer) SetAirQuality(level device.QualityLevel) {
	c, ok := ColorFor(level)
	if !ok {
		m.SetOn(Warning)
		return
	}
	m.mu.Lock()
	m.color = c
	m.driver.SetRGB(m.scaledLocked())
	m.mu.Unlock()
	m.SetOff(Warning)
}

func (m *Multiplexer) scaledLocked() RGB {
	s := brightnessTable[m.brightness].rgbScale
	return RGB{
		R: uint8(uint16(m.color.R) * s / 255),
		G: uint8(uint16(m.color.G) * s / 255),
		B: uint8(uint16(m.color.B) * s / 255),
	}
}

// Flash blinks the Warning flag for d, then restores the
// previous Warning state. It blocks for d.
func (m *Multiplexer) Flash(ctx context.Context, d time.Duration) {
	on, blink := m.Masks()
	m.SetBlink(Warning)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	switch {
	case on&Warning != 0:
		m.SetOn(Warning)
	case blink&Warning != 0:
		m.SetBlink(Warning)
	default:
		m.SetOff(Warning)
	}
}
