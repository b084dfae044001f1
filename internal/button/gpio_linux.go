//go:build linux

package button

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"purifier-go-home/internal/device"
)

// Pins maps each button to its line offset on the GPIO chip.
type Pins map[device.ButtonID]int

// Watcher holds the requested button lines.
type Watcher struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// WatchGPIO requests the button lines as pulled-up inputs with edge
// detection and forwards every edge to c. Buttons are active-low.
func WatchGPIO(chipName string, pins Pins, c *Classifier) (*Watcher, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	w := &Watcher{chip: chip}
	for id, offset := range pins {
		line, err := chip.RequestLine(offset,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				c.Edge(id, evt.Type == gpiocdev.LineEventFallingEdge, evt.Timestamp)
			}),
		)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("request %s button pin %d: %w", id, offset, err)
		}
		w.lines = append(w.lines, line)
	}
	return w, nil
}

// Close releases the lines and the chip.
func (w *Watcher) Close() error {
	var errs []error
	for _, l := range w.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := w.chip.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close button lines: %v", errs)
	}
	return nil
}
