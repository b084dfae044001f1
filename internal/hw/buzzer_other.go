//go:build !linux

package hw

import (
	"errors"
	"log/slog"
	"time"
)

// GPIOBuzzer is not available on non-Linux platforms.
type GPIOBuzzer struct{}

// NewGPIOBuzzer returns an error on non-Linux platforms.
func NewGPIOBuzzer(chipName string, pin int, duration time.Duration, logger *slog.Logger) (*GPIOBuzzer, error) {
	return nil, errors.New("hw: gpio buzzer not supported on this platform (requires Linux)")
}

func (b *GPIOBuzzer) Beep() {}

func (b *GPIOBuzzer) Close() error {
	return nil
}
