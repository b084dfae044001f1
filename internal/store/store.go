package store

import "errors"

var (
	// ErrNotFound is returned when a path does not name a hosted attribute.
	ErrNotFound = errors.New("not found")
	// ErrReadOnly is returned by Update for attributes the protocol side may not write.
	ErrReadOnly = errors.New("attribute is read-only")
)

// WriteHook is invoked after an authoritative write has been committed.
type WriteHook func(p Path, value any)

// Listener is invoked for every committed change.
type Listener func(c Change)

// Store holds the protocol-visible attribute values of the device.
type Store interface {
	Get(p Path) (any, error)

	// Update is the entry point for protocol-driven writes. The value is
	// validated against the attribute definition, committed, and then
	// passed to the write hook.
	Update(p Path, value any) error

	// Report records a value computed by the device itself. It never
	// invokes the write hook.
	Report(p Path, value any) error

	Snapshot() []Attribute

	// OnUpdate installs the write hook, replacing any previous one.
	OnUpdate(hook WriteHook)

	// OnChange registers a change listener and returns an unsubscribe function.
	OnChange(l Listener) func()
}
