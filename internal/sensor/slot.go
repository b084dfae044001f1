package sensor

import (
	"context"
	"sync/atomic"

	"purifier-go-home/internal/device"
)

// Slot is a single-entry, latest-wins handoff between the poller and the
// consumer. Publishing never blocks; an unconsumed reading is replaced.
type Slot struct {
	ch          chan device.Reading
	overwritten atomic.Uint64
}

func NewSlot() *Slot {
	return &Slot{ch: make(chan device.Reading, 1)}
}

// Publish stores r, replacing any reading that has not been taken yet.
func (s *Slot) Publish(r device.Reading) {
	for {
		select {
		case s.ch <- r:
			return
		default:
		}
		select {
		case <-s.ch:
			s.overwritten.Add(1)
		default:
		}
	}
}

// Wait blocks until a reading is available or ctx is done.
func (s *Slot) Wait(ctx context.Context) (device.Reading, error) {
	select {
	case r := <-s.ch:
		return r, nil
	case <-ctx.Done():
		return device.Reading{}, ctx.Err()
	}
}

// Overwritten returns how many readings were replaced before being consumed.
func (s *Slot) Overwritten() uint64 {
	return s.overwritten.Load()
}
