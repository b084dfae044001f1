package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"purifier-go-home/internal/zcl"
)

type entry struct {
	def   zcl.AttributeDef
	value any
}

// MemoryStore implements Store in memory. Values are lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[Path]*entry
	hook      WriteHook
	listeners map[uint64]Listener
	nextID    uint64
	logger    *slog.Logger
}

// NewMemoryStore creates an attribute for every attribute of every cluster
// listed in layout. Nullable attributes start as null, others as their
// zero value.
func NewMemoryStore(registry *zcl.Registry, layout map[uint8][]uint16, logger *slog.Logger) (*MemoryStore, error) {
	s := &MemoryStore{
		entries:   make(map[Path]*entry),
		listeners: make(map[uint64]Listener),
		logger:    logger,
	}
	for ep, ids := range layout {
		for _, id := range ids {
			c := registry.Get(id)
			if c == nil {
				return nil, fmt.Errorf("store: endpoint %d: cluster 0x%04X not registered", ep, id)
			}
			for _, a := range c.Attributes {
				s.entries[Path{Endpoint: ep, Cluster: id, Attribute: a.ID}] = &entry{def: a, value: zeroValue(a)}
			}
		}
	}
	return s, nil
}

func zeroValue(a zcl.AttributeDef) any {
	if a.Nullable {
		return nil
	}
	v, err := zcl.Coerce(&a, 0)
	if err != nil {
		return nil
	}
	return v
}

func (s *MemoryStore) Get(p Path) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[p]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", p, ErrNotFound)
	}
	return e.value, nil
}

func (s *MemoryStore) Update(p Path, value any) error {
	c, err := s.commit(p, value, OriginUpdate)
	if err != nil {
		return err
	}
	s.mu.RLock()
	hook := s.hook
	s.mu.RUnlock()
	if hook != nil {
		hook(p, c.Value)
	}
	return nil
}

func (s *MemoryStore) Report(p Path, value any) error {
	_, err := s.commit(p, value, OriginReport)
	return err
}

func (s *MemoryStore) commit(p Path, value any, origin Origin) (Change, error) {
	s.mu.Lock()
	e, ok := s.entries[p]
	if !ok {
		s.mu.Unlock()
		return Change{}, fmt.Errorf("%s %s: %w", origin, p, ErrNotFound)
	}
	if origin == OriginUpdate && !e.def.IsWritable() {
		s.mu.Unlock()
		return Change{}, fmt.Errorf("update %s (%s): %w", p, e.def.Name, ErrReadOnly)
	}
	v, err := zcl.Coerce(&e.def, value)
	if err != nil {
		s.mu.Unlock()
		return Change{}, fmt.Errorf("%s %s: %w", origin, p, err)
	}
	e.value = v
	change := Change{Path: p, Name: e.def.Name, Value: v, Origin: origin}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.logger.Debug("attribute committed", "path", p.String(), "name", change.Name, "value", v, "origin", origin)
	s.notify(listeners, change)
	return change, nil
}

func (s *MemoryStore) listenersLocked() []Listener {
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	return listeners
}

func (s *MemoryStore) notify(listeners []Listener, change Change) {
	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("change listener panic", "path", change.Path.String(), "panic", r)
				}
			}()
			l(change)
		}()
	}
}

// FactoryReset returns every attribute to its initial value. Listeners see
// one change per attribute whose value actually moved.
func (s *MemoryStore) FactoryReset() error {
	s.mu.Lock()
	var changes []Change
	for p, e := range s.entries {
		v := zeroValue(e.def)
		if v == e.value {
			continue
		}
		e.value = v
		changes = append(changes, Change{Path: p, Name: e.def.Name, Value: v, Origin: OriginReset})
	}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.logger.Info("attribute store reset", "changed", len(changes))
	for _, c := range changes {
		s.notify(listeners, c)
	}
	return nil
}

func (s *MemoryStore) Snapshot() []Attribute {
	s.mu.RLock()
	out := make([]Attribute, 0, len(s.entries))
	for p, e := range s.entries {
		out = append(out, Attribute{
			Path:     p,
			Name:     e.def.Name,
			Type:     zcl.TypeName(e.def.Type),
			Writable: e.def.IsWritable(),
			Value:    e.value,
		})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Path, out[j].Path
		if a.Endpoint != b.Endpoint {
			return a.Endpoint < b.Endpoint
		}
		if a.Cluster != b.Cluster {
			return a.Cluster < b.Cluster
		}
		return a.Attribute < b.Attribute
	})
	return out
}

func (s *MemoryStore) OnUpdate(hook WriteHook) {
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
}

func (s *MemoryStore) OnChange(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
