// Package button turns raw button edges into classified short and long
// presses and delivers them, in order, to a single consumer.
package button

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"purifier-go-home/internal/device"
)

// ErrCapacity is returned when a queue cannot hold one event per button.
var ErrCapacity = errors.New("button: queue capacity too small")

// DefaultQueueSize is the default event queue capacity.
const DefaultQueueSize = 4

// Queue is a bounded FIFO of button events. Push never blocks: when the
// queue is full the oldest pending event is discarded.
type Queue struct {
	ch      chan device.ButtonEvent
	dropped atomic.Uint64
}

func NewQueue(capacity int) (*Queue, error) {
	if capacity < device.NumButtons {
		return nil, fmt.Errorf("%w: %d < %d", ErrCapacity, capacity, device.NumButtons)
	}
	return &Queue{ch: make(chan device.ButtonEvent, capacity)}, nil
}

// Push enqueues ev without blocking.
func (q *Queue) Push(ev device.ButtonEvent) {
	for {
		select {
		case q.ch <- ev:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// Dropped returns the number of events discarded on overflow.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Run delivers events to handle one at a time in arrival order until ctx
// is cancelled.
func (q *Queue) Run(ctx context.Context, handle func(device.ButtonEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-q.ch:
			handle(ev)
		}
	}
}
