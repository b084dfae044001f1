//go:build !linux

package button

import (
	"errors"

	"purifier-go-home/internal/device"
)

// Pins maps each button to its line offset on the GPIO chip.
type Pins map[device.ButtonID]int

// Watcher is not available on non-Linux platforms.
type Watcher struct{}

// WatchGPIO returns an error on non-Linux platforms.
func WatchGPIO(chipName string, pins Pins, c *Classifier) (*Watcher, error) {
	return nil, errors.New("button: gpio not supported on this platform (requires Linux)")
}

func (w *Watcher) Close() error {
	return nil
}
