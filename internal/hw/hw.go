// Package hw provides the actuator backends: a log-only backend for
// development, sysfs PWM and LED drivers, and a GPIO buzzer.
package hw

import (
	"log/slog"
	"sync"

	"purifier-go-home/internal/indicator"
)

// LogBackend implements the fan, buzzer and indicator driver by logging
// every call. It remembers the last values for inspection.
type LogBackend struct {
	mu         sync.Mutex
	percentage int
	word       uint8
	brightness uint8
	rgb        indicator.RGB
	beeps      int
	logger     *slog.Logger
}

func NewLogBackend(logger *slog.Logger) *LogBackend {
	return &LogBackend{logger: logger}
}

func (b *LogBackend) SetPercentage(p int) {
	b.mu.Lock()
	b.percentage = p
	b.mu.Unlock()
	b.logger.Info("fan", "percentage", p)
}

func (b *LogBackend) Beep() {
	b.mu.Lock()
	b.beeps++
	b.mu.Unlock()
	b.logger.Debug("beep")
}

func (b *LogBackend) DriveWord(w uint8) {
	b.mu.Lock()
	b.word = w
	b.mu.Unlock()
	b.logger.Debug("indicator word", "word", w)
}

func (b *LogBackend) SetIndicatorBrightness(level uint8) {
	b.mu.Lock()
	b.brightness = level
	b.mu.Unlock()
	b.logger.Debug("indicator brightness", "level", level)
}

func (b *LogBackend) SetRGB(c indicator.RGB) {
	b.mu.Lock()
	b.rgb = c
	b.mu.Unlock()
	b.logger.Debug("rgb", "r", c.R, "g", c.G, "b", c.B)
}

// Percentage returns the last fan percentage.
func (b *LogBackend) Percentage() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.percentage
}

// Word returns the last indicator word.
func (b *LogBackend) Word() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.word
}

// Beeps returns the number of beeps sounded.
func (b *LogBackend) Beeps() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.beeps
}
