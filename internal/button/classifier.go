package button

import (
	"sync/atomic"
	"time"

	"purifier-go-home/internal/device"
)

const (
	DefaultLongPress = 7 * time.Second
	DefaultDebounce  = 30 * time.Millisecond
)

// Classifier tracks edge state per button. Edge is safe to call from the
// GPIO event goroutines: it takes no locks and does not allocate.
type Classifier struct {
	queue     *Queue
	longPress time.Duration
	debounce  time.Duration
	buttons   [device.NumButtons]buttonState
}

type buttonState struct {
	pressed   atomic.Bool
	longFired atomic.Bool
	lastEdge  atomic.Int64
	timer     *time.Timer
}

// NewClassifier creates a classifier feeding q. Each button gets its own
// long-press timer, created stopped.
func NewClassifier(q *Queue, longPress, debounce time.Duration) *Classifier {
	if longPress <= 0 {
		longPress = DefaultLongPress
	}
	if debounce < 0 {
		debounce = 0
	}
	c := &Classifier{queue: q, longPress: longPress, debounce: debounce}
	for i := range c.buttons {
		id := device.ButtonID(i)
		b := &c.buttons[i]
		b.lastEdge.Store(-int64(debounce))
		b.timer = time.AfterFunc(time.Hour, func() { c.expire(id) })
		b.timer.Stop()
	}
	return c
}

// Edge reports a transition on button id. pressed is true for the active
// (falling) edge. ts is the edge timestamp from a monotonic source.
// A release always cancels the pending long press; a press closer than the
// debounce interval to the previous edge is treated as contact bounce.
func (c *Classifier) Edge(id device.ButtonID, pressed bool, ts time.Duration) {
	if int(id) >= len(c.buttons) {
		return
	}
	b := &c.buttons[id]
	if b.pressed.Load() == pressed {
		return
	}
	if !pressed {
		b.pressed.Store(false)
		b.lastEdge.Store(int64(ts))
		b.timer.Stop()
		return
	}
	if int64(ts)-b.lastEdge.Load() < int64(c.debounce) {
		return
	}
	b.lastEdge.Store(int64(ts))
	b.pressed.Store(true)
	b.longFired.Store(false)
	c.queue.Push(device.ButtonEvent{Source: id})
	b.timer.Reset(c.longPress)
}

func (c *Classifier) expire(id device.ButtonID) {
	b := &c.buttons[id]
	if !b.pressed.Load() || b.longFired.Swap(true) {
		return
	}
	c.queue.Push(device.ButtonEvent{Source: id, LongPress: true})
}

// Stop cancels all pending long-press timers.
func (c *Classifier) Stop() {
	for i := range c.buttons {
		c.buttons[i].timer.Stop()
	}
}
