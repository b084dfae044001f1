//go:build linux

package hw

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOBuzzer drives an active buzzer from a GPIO output line.
type GPIOBuzzer struct {
	chip     *gpiocdev.Chip
	line     *gpiocdev.Line
	duration time.Duration
	busy     atomic.Bool
	logger   *slog.Logger
}

// NewGPIOBuzzer requests pin on chipName as an output driven low.
func NewGPIOBuzzer(chipName string, pin int, duration time.Duration, logger *slog.Logger) (*GPIOBuzzer, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request buzzer pin %d: %w", pin, err)
	}
	return &GPIOBuzzer{chip: chip, line: line, duration: duration, logger: logger}, nil
}

// Beep sounds the buzzer for the configured duration without blocking the
// caller. A beep requested while one is sounding is dropped.
func (b *GPIOBuzzer) Beep() {
	if !b.busy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer b.busy.Store(false)
		if err := b.line.SetValue(1); err != nil {
			b.logger.Error("buzzer on failed", "err", err)
			return
		}
		time.Sleep(b.duration)
		if err := b.line.SetValue(0); err != nil {
			b.logger.Error("buzzer off failed", "err", err)
		}
	}()
}

// Close drives the line low and releases it.
func (b *GPIOBuzzer) Close() error {
	_ = b.line.SetValue(0)
	if err := b.line.Close(); err != nil {
		b.chip.Close()
		return fmt.Errorf("close buzzer line: %w", err)
	}
	return b.chip.Close()
}
